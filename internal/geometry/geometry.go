// Package geometry provides the polygon operations shared by the
// aggregation pipeline: union folds, validity repair, boundary distance,
// and a county-local meter projection. orb is the in-memory geometry
// model throughout the engine; simplefeatures performs the boolean and
// distance operations orb does not implement, bridged through GeoJSON.
package geometry

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	sf "github.com/peterstace/simplefeatures/geom"
)

// metersPerDegree is the length of one degree of latitude. Longitude is
// scaled by cos(latitude) in the local projection.
const metersPerDegree = 111320.0

// toSF converts an orb multi-polygon to a simplefeatures geometry.
// Validation is skipped here; callers decide when validity matters.
func toSF(mp orb.MultiPolygon) (sf.Geometry, error) {
	data, err := geojson.NewGeometry(mp).MarshalJSON()
	if err != nil {
		return sf.Geometry{}, fmt.Errorf("marshal geometry: %w", err)
	}
	g, err := sf.UnmarshalGeoJSON(data, sf.NoValidate{})
	if err != nil {
		return sf.Geometry{}, fmt.Errorf("convert geometry: %w", err)
	}
	return g, nil
}

// fromSF converts a simplefeatures geometry back to an orb multi-polygon.
// Non-area results (points, lines, empties) map to an empty multi-polygon.
func fromSF(g sf.Geometry) (orb.MultiPolygon, error) {
	if g.IsEmpty() {
		return orb.MultiPolygon{}, nil
	}

	data, err := g.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal geometry: %w", err)
	}
	parsed, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("convert geometry: %w", err)
	}

	switch geom := parsed.Geometry().(type) {
	case orb.MultiPolygon:
		return geom, nil
	case orb.Polygon:
		return orb.MultiPolygon{geom}, nil
	case orb.Collection:
		var out orb.MultiPolygon
		for _, member := range geom {
			switch m := member.(type) {
			case orb.Polygon:
				out = append(out, m)
			case orb.MultiPolygon:
				out = append(out, m...)
			}
		}
		return out, nil
	default:
		return orb.MultiPolygon{}, nil
	}
}

// Validate reports whether the multi-polygon is valid (closed,
// non-self-intersecting rings).
func Validate(mp orb.MultiPolygon) error {
	if len(mp) == 0 {
		return fmt.Errorf("empty geometry")
	}
	g, err := toSF(mp)
	if err != nil {
		return err
	}
	return g.Validate()
}

// Repair attempts a one-shot repair of an invalid multi-polygon by
// unioning it with itself, which renodes crossing rings. Callers isolate
// the geometry if the repair fails.
func Repair(mp orb.MultiPolygon) (orb.MultiPolygon, error) {
	g, err := toSF(mp)
	if err != nil {
		return nil, err
	}

	repaired, err := sf.Union(g, g)
	if err != nil {
		return nil, fmt.Errorf("repair union: %w", err)
	}
	if err := repaired.Validate(); err != nil {
		return nil, fmt.Errorf("still invalid after repair: %w", err)
	}

	out, err := fromSF(repaired)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("repair produced empty geometry")
	}
	return out, nil
}

// Union computes the geometric union of two multi-polygons. The
// operation is associative and commutative (within floating-point
// tolerance), so folds over it may regroup or parallelize freely.
func Union(a, b orb.MultiPolygon) (orb.MultiPolygon, error) {
	if len(a) == 0 {
		return b, nil
	}
	if len(b) == 0 {
		return a, nil
	}

	ga, err := toSF(a)
	if err != nil {
		return nil, err
	}
	gb, err := toSF(b)
	if err != nil {
		return nil, err
	}

	u, err := sf.Union(ga, gb)
	if err != nil {
		return nil, fmt.Errorf("union: %w", err)
	}
	return fromSF(u)
}

// UnionAll folds Union over the given geometries in order.
func UnionAll(geoms []orb.MultiPolygon) (orb.MultiPolygon, error) {
	var acc orb.MultiPolygon
	for _, g := range geoms {
		u, err := Union(acc, g)
		if err != nil {
			return nil, err
		}
		acc = u
	}
	return acc, nil
}

// BoundaryDistance returns the minimum distance between two
// multi-polygons in the units of their coordinates. Touching or
// overlapping geometries return 0. Either geometry being empty returns
// +Inf.
func BoundaryDistance(a, b orb.MultiPolygon) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return math.Inf(1), nil
	}

	ga, err := toSF(a)
	if err != nil {
		return 0, err
	}
	gb, err := toSF(b)
	if err != nil {
		return 0, err
	}

	d, ok := sf.Distance(ga, gb)
	if !ok {
		return math.Inf(1), nil
	}
	return d, nil
}

// IntersectsBound reports whether the multi-polygon intersects the
// axis-aligned bounding box. Conversion failures fall back to the
// bounding-box answer.
func IntersectsBound(mp orb.MultiPolygon, bound orb.Bound) bool {
	if len(mp) == 0 {
		return false
	}
	g, err := toSF(mp)
	if err != nil {
		return true
	}
	box, err := toSF(orb.MultiPolygon{bound.ToPolygon()})
	if err != nil {
		return true
	}
	return sf.Intersects(g, box)
}

// AreaSqm returns the geodetic area of a lon/lat multi-polygon in
// square meters.
func AreaSqm(mp orb.MultiPolygon) float64 {
	return math.Abs(geo.Area(mp))
}

// ProjectLocal maps a lon/lat multi-polygon onto a county-local
// equirectangular plane with meter units, anchored at originLat. Good to
// well under the adjacency tolerance at parcel scale, and cheap enough
// to run per partition.
func ProjectLocal(mp orb.MultiPolygon, originLat float64) orb.MultiPolygon {
	scaleX := metersPerDegree * math.Cos(originLat*math.Pi/180)

	out := make(orb.MultiPolygon, len(mp))
	for i, poly := range mp {
		projected := make(orb.Polygon, len(poly))
		for j, ring := range poly {
			pr := make(orb.Ring, len(ring))
			for k, pt := range ring {
				pr[k] = orb.Point{pt[0] * scaleX, pt[1] * metersPerDegree}
			}
			projected[j] = pr
		}
		out[i] = projected
	}
	return out
}
