package models

import (
	"database/sql/driver"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// MultiPolygon wraps orb.MultiPolygon with database and JSON codecs.
// Geometry is stored as GeoJSON (jsonb) in SRID 4326 (WGS84); single
// polygons are promoted to a one-element multi-polygon on read so the
// rest of the engine only ever deals with one geometry type.
type MultiPolygon struct {
	orb.MultiPolygon
}

// NewMultiPolygon wraps an orb geometry, promoting Polygon to MultiPolygon.
// Returns an error for non-polygonal geometry.
func NewMultiPolygon(g orb.Geometry) (MultiPolygon, error) {
	switch geom := g.(type) {
	case orb.MultiPolygon:
		return MultiPolygon{geom}, nil
	case orb.Polygon:
		return MultiPolygon{orb.MultiPolygon{geom}}, nil
	default:
		return MultiPolygon{}, fmt.Errorf("expected polygonal geometry, got %s", g.GeoJSONType())
	}
}

// IsEmpty reports whether the geometry has no rings.
func (mp MultiPolygon) IsEmpty() bool {
	return len(mp.MultiPolygon) == 0
}

// Scan implements sql.Scanner for reading GeoJSON geometry from the database.
func (mp *MultiPolygon) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("failed to scan MultiPolygon: expected []byte or string, got %T", value)
	}

	geom, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return fmt.Errorf("failed to unmarshal geometry: %w", err)
	}

	parsed, err := NewMultiPolygon(geom.Geometry())
	if err != nil {
		return fmt.Errorf("failed to scan MultiPolygon: %w", err)
	}
	*mp = parsed
	return nil
}

// Value implements driver.Valuer for writing GeoJSON geometry to the database.
func (mp MultiPolygon) Value() (driver.Value, error) {
	if mp.IsEmpty() {
		return nil, nil
	}

	data, err := geojson.NewGeometry(mp.MultiPolygon).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal multipolygon to GeoJSON: %w", err)
	}
	return string(data), nil
}

// MarshalJSON implements json.Marshaler for API responses (GeoJSON geometry).
func (mp MultiPolygon) MarshalJSON() ([]byte, error) {
	return geojson.NewGeometry(mp.MultiPolygon).MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler for parsing GeoJSON input.
func (mp *MultiPolygon) UnmarshalJSON(data []byte) error {
	geom, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return fmt.Errorf("failed to unmarshal multipolygon: %w", err)
	}

	parsed, err := NewMultiPolygon(geom.Geometry())
	if err != nil {
		return err
	}
	*mp = parsed
	return nil
}
