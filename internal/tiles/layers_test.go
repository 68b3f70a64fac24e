package tiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRules_ForZoom(t *testing.T) {
	rules := DefaultRules(13)

	tests := []struct {
		zoom   int
		source Source
		name   string
	}{
		{0, SourceClusters, "clusters"},
		{8, SourceClusters, "clusters"},
		{12, SourceClusters, "clusters"},
		{13, SourceParcels, "parcels"},
		{16, SourceParcels, "parcels"},
		{22, SourceParcels, "parcels"},
	}

	for _, tt := range tests {
		rule, ok := rules.ForZoom(tt.zoom)
		require.Truef(t, ok, "zoom %d should be covered", tt.zoom)
		assert.Equal(t, tt.source, rule.Source, "zoom %d", tt.zoom)
		assert.Equal(t, tt.name, rule.Name, "zoom %d", tt.zoom)
	}
}

func TestRules_ForZoom_Uncovered(t *testing.T) {
	rules := Rules{
		{Name: "parcels", Source: SourceParcels, MinZoom: 10, MaxZoom: 14},
	}

	_, ok := rules.ForZoom(9)
	assert.False(t, ok)
	_, ok = rules.ForZoom(15)
	assert.False(t, ok)
}

func TestCacheKey(t *testing.T) {
	rule := LayerRule{Name: "parcels", Source: SourceParcels}
	assert.Equal(t, "parcels:14/8192/8191", CacheKey(rule, 14, 8192, 8191))

	other := LayerRule{Name: "clusters", Source: SourceClusters}
	assert.NotEqual(t, CacheKey(rule, 14, 8192, 8191), CacheKey(other, 14, 8192, 8191))
}
