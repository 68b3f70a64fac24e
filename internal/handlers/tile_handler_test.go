package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landview/parcel-engine/internal/logger"
	"github.com/landview/parcel-engine/internal/tiles"
)

func setupTileRouter(t *testing.T) (*gin.Engine, *tiles.Cache) {
	t.Helper()

	log := logger.New("test")
	rules := tiles.DefaultRules(13)
	encoder := tiles.NewEncoder(fixtureIndex(t), rules, 0.0625)
	cache := tiles.NewCache(64, time.Minute)
	handler := NewTileHandler(encoder, cache, rules, time.Minute, 5*time.Second)

	router := newTestRouter(log)
	router.GET("/tiles/:z/:x/:y", handler.Tile)
	router.POST("/tiles/cache/clear", handler.CacheClear)
	return router, cache
}

// parcelTilePath returns the tile URL covering fixture parcel 1 at the
// given zoom.
func parcelTilePath(z int) string {
	tile := maptile.At(orb.Point{-99.995, 41.005}, maptile.Zoom(z))
	return fmt.Sprintf("/tiles/%d/%d/%d.mvt", z, tile.X, tile.Y)
}

func TestTile_ParcelZoom(t *testing.T) {
	router, _ := setupTileRouter(t)

	req := httptest.NewRequest(http.MethodGet, parcelTilePath(14), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-protobuf", w.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=60", w.Header().Get("Cache-Control"))
	assert.Equal(t, "miss", w.Header().Get("X-Tile-Cache"))

	layers, err := mvt.Unmarshal(w.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, "parcels", layers[0].Name)
	assert.NotEmpty(t, layers[0].Features)
}

func TestTile_ClusterZoom(t *testing.T) {
	router, _ := setupTileRouter(t)

	tile := maptile.At(orb.Point{-100.995, 42.005}, 8)
	req := httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/tiles/8/%d/%d.mvt", tile.X, tile.Y), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	layers, err := mvt.Unmarshal(w.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, "clusters", layers[0].Name)
	assert.NotEmpty(t, layers[0].Features)
}

func TestTile_CacheHitOnSecondRequest(t *testing.T) {
	router, _ := setupTileRouter(t)
	path := parcelTilePath(14)

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "miss", first.Header().Get("X-Tile-Cache"))

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "hit", second.Header().Get("X-Tile-Cache"))
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
}

func TestTile_EmptyTileIsOK(t *testing.T) {
	router, _ := setupTileRouter(t)

	// Middle of the Pacific: valid empty tile, not an error.
	tile := maptile.At(orb.Point{-150.0, 0.0}, 14)
	req := httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/tiles/14/%d/%d.mvt", tile.X, tile.Y), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTile_InvalidCoordinates(t *testing.T) {
	router, _ := setupTileRouter(t)

	tests := []struct {
		name string
		path string
	}{
		{"zoom above range", "/tiles/23/0/0.mvt"},
		{"negative zoom", "/tiles/-1/0/0.mvt"},
		{"x out of range for zoom", "/tiles/2/4/0.mvt"},
		{"y out of range for zoom", "/tiles/2/0/4.mvt"},
		{"non-numeric x", "/tiles/10/abc/0.mvt"},
		{"non-numeric y", "/tiles/10/0/abc.mvt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			// The .mvt route never writes a JSON error body.
			assert.Empty(t, w.Body.Bytes())
		})
	}
}

func TestCacheClear(t *testing.T) {
	router, cache := setupTileRouter(t)

	// Warm the cache.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, parcelTilePath(14), nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, cache.Len())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/tiles/cache/clear", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success": true}`, w.Body.String())
	assert.Equal(t, 0, cache.Len())

	// Next tile request re-encodes.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, parcelTilePath(14), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "miss", w.Header().Get("X-Tile-Cache"))
}
