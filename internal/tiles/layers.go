// Package tiles turns tile requests into encoded Mapbox vector tiles,
// with a TTL cache in front of the encoder.
package tiles

import "fmt"

// Source selects which derived dataset feeds a tile layer.
type Source string

const (
	// SourceClusters serves aggregated same-owner clusters (coarse).
	SourceClusters Source = "clusters"
	// SourceParcels serves raw parcels (fine detail).
	SourceParcels Source = "parcels"
)

// LayerRule maps one zoom range to a tile layer. The rule table is the
// single place that decides which dataset a zoom level serves; the
// encoder and the cache key both consume it, so there is no scattered
// zoom conditional to drift out of sync.
type LayerRule struct {
	Name    string
	Source  Source
	MinZoom int
	MaxZoom int
}

// Rules is an ordered set of layer rules covering the zoom range.
type Rules []LayerRule

// DefaultRules builds the standard two-band table: aggregated clusters
// below parcelMinZoom, raw parcels from parcelMinZoom up.
func DefaultRules(parcelMinZoom int) Rules {
	return Rules{
		{Name: "clusters", Source: SourceClusters, MinZoom: 0, MaxZoom: parcelMinZoom - 1},
		{Name: "parcels", Source: SourceParcels, MinZoom: parcelMinZoom, MaxZoom: 22},
	}
}

// ForZoom returns the rule covering the zoom level.
func (r Rules) ForZoom(z int) (LayerRule, bool) {
	for _, rule := range r {
		if z >= rule.MinZoom && z <= rule.MaxZoom {
			return rule, true
		}
	}
	return LayerRule{}, false
}

// CacheKey builds the tile cache key from the layer selector and tile
// coordinates.
func CacheKey(rule LayerRule, z, x, y int) string {
	return fmt.Sprintf("%s:%d/%d/%d", rule.Name, z, x, y)
}
