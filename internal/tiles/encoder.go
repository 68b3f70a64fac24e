package tiles

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/simplify"

	"github.com/landview/parcel-engine/internal/models"
)

// FeatureSource supplies candidate features intersecting a geographic
// bound. Backed by the in-memory spatial index.
type FeatureSource interface {
	BBoxQuery(bound orb.Bound, limit int) []models.Parcel
	ClustersInBound(bound orb.Bound, limit int) []models.AggregatedCluster
}

// Encoder converts tile requests into MVT payloads: envelope, index
// query, tile projection, zoom-dependent simplification, buffered clip,
// binary encode. An empty tile is a valid (and cacheable) result.
type Encoder struct {
	source         FeatureSource
	rules          Rules
	bufferFraction float64
}

// NewEncoder creates a tile encoder over the given feature source.
func NewEncoder(source FeatureSource, rules Rules, bufferFraction float64) *Encoder {
	return &Encoder{
		source:         source,
		rules:          rules,
		bufferFraction: bufferFraction,
	}
}

// EncodeTile encodes one tile. The layer rule table picks the dataset
// for the zoom; encoding cost is bounded by simplification rather than
// cancellation, but the context is still honored between pipeline
// stages so a timed-out request stops doing work.
func (e *Encoder) EncodeTile(ctx context.Context, z, x, y int) ([]byte, error) {
	rule, ok := e.rules.ForZoom(z)
	if !ok {
		return nil, fmt.Errorf("no layer rule covers zoom %d", z)
	}

	tile := maptile.New(uint32(x), uint32(y), maptile.Zoom(z))
	// Query with a buffered envelope so features straddling the tile
	// edge render without seams.
	bound := tile.Bound(e.bufferFraction)

	fc := geojson.NewFeatureCollection()
	switch rule.Source {
	case SourceClusters:
		for _, c := range e.source.ClustersInBound(bound, 0) {
			f := geojson.NewFeature(c.Geometry.MultiPolygon)
			f.ID = uint64(c.ID)
			f.Properties = geojson.Properties{
				"id":           c.ID,
				"owner":        c.OwnerKey,
				"county":       c.County,
				"area_sqm":     c.TotalAreaSqm,
				"parcel_count": c.ParcelCount,
			}
			fc.Append(f)
		}
	case SourceParcels:
		for _, p := range e.source.BBoxQuery(bound, 0) {
			f := geojson.NewFeature(p.Geometry.MultiPolygon)
			f.ID = uint64(p.ID)
			f.Properties = geojson.Properties{
				"id":            p.ID,
				"owner":         p.OwnerKey,
				"county":        p.County,
				"area_sqm":      p.AreaSqm,
				"parcel_number": p.ExternalParcelNumber,
			}
			fc.Append(f)
		}
	default:
		return nil, fmt.Errorf("unknown layer source %q", rule.Source)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	layers := mvt.NewLayers(map[string]*geojson.FeatureCollection{rule.Name: fc})
	layers.ProjectToTile(tile)
	layers.Simplify(simplify.DouglasPeucker(simplifyThreshold(z)))
	layers.Clip(mvt.MapboxGLDefaultExtentBound)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := mvt.Marshal(layers)
	if err != nil {
		return nil, fmt.Errorf("marshal tile %d/%d/%d: %w", z, x, y, err)
	}
	return data, nil
}

// simplifyThreshold returns the DouglasPeucker threshold in tile units
// for a zoom level. Low zooms simplify aggressively to bound payload
// size; high zooms keep surveyed boundaries crisp.
func simplifyThreshold(z int) float64 {
	switch {
	case z >= 15:
		return 1.0
	case z >= 12:
		return 2.0
	case z >= 9:
		return 4.0
	default:
		return 8.0
	}
}
