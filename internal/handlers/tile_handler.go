package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/landview/parcel-engine/internal/middleware"
	"github.com/landview/parcel-engine/internal/tiles"
)

// TileHandler serves encoded vector tiles and the cache-clear endpoint.
// The .mvt route never returns a JSON body: client errors are bare
// status codes so map clients do not try to decode an error envelope as
// a tile.
type TileHandler struct {
	encoder *tiles.Encoder
	cache   *tiles.Cache
	rules   tiles.Rules
	ttl     time.Duration
	timeout time.Duration
}

// NewTileHandler creates a new TileHandler instance.
func NewTileHandler(encoder *tiles.Encoder, cache *tiles.Cache, rules tiles.Rules, ttl, timeout time.Duration) *TileHandler {
	return &TileHandler{
		encoder: encoder,
		cache:   cache,
		rules:   rules,
		ttl:     ttl,
		timeout: timeout,
	}
}

// Tile handles GET /tiles/:z/:x/:y.mvt.
// A tile outside data coverage is a valid empty tile with 200 status,
// so clients render "no data" instead of an error.
func (h *TileHandler) Tile(c *gin.Context) {
	z, x, y, ok := parseTileCoords(c.Param("z"), c.Param("x"), c.Param("y"))
	if !ok {
		c.Status(http.StatusBadRequest)
		return
	}

	rule, ok := h.rules.ForZoom(z)
	if !ok {
		c.Status(http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	key := tiles.CacheKey(rule, z, x, y)
	data, cached, err := h.cache.GetOrEncode(key, func() ([]byte, error) {
		return h.encoder.EncodeTile(ctx, z, x, y)
	})
	if err != nil {
		log := middleware.GetLogger(c)
		if log != nil {
			log.Error("Tile encode failed", err, map[string]interface{}{
				"z": z, "x": x, "y": y,
			})
		}
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", int(h.ttl.Seconds())))
	c.Header("X-Tile-Cache", cacheStatus(cached))
	c.Data(http.StatusOK, "application/x-protobuf", data)
}

// CacheClear handles POST /tiles/cache/clear.
func (h *TileHandler) CacheClear(c *gin.Context) {
	h.cache.InvalidateAll()

	log := middleware.GetLogger(c)
	if log != nil {
		log.Info("Tile cache cleared", nil)
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// parseTileCoords parses and range-checks z/x/y path segments. The y
// segment carries the .mvt extension.
func parseTileCoords(zs, xs, ys string) (z, x, y int, ok bool) {
	ys = strings.TrimSuffix(ys, ".mvt")

	z, err := strconv.Atoi(zs)
	if err != nil || z < 0 || z > 22 {
		return 0, 0, 0, false
	}
	x, err = strconv.Atoi(xs)
	if err != nil {
		return 0, 0, 0, false
	}
	y, err = strconv.Atoi(ys)
	if err != nil {
		return 0, 0, 0, false
	}

	max := 1 << uint(z)
	if x < 0 || x >= max || y < 0 || y >= max {
		return 0, 0, 0, false
	}
	return z, x, y, true
}

func cacheStatus(cached bool) string {
	if cached {
		return "hit"
	}
	return "miss"
}
