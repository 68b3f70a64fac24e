package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/landview/parcel-engine/internal/database"
	"github.com/landview/parcel-engine/internal/middleware"
	"github.com/landview/parcel-engine/internal/spatial"
)

const (
	// APIVersion is the current version of the API
	APIVersion = "0.1.0"
	// HealthCheckTimeout is the timeout for database health checks
	HealthCheckTimeout = 2 * time.Second
)

// HealthHandler handles health check and readiness endpoints.
type HealthHandler struct {
	db        *database.Database
	index     *spatial.Index
	startTime time.Time
	env       string
}

// NewHealthHandler creates a new HealthHandler instance.
func NewHealthHandler(db *database.Database, index *spatial.Index, env string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		index:     index,
		startTime: time.Now(),
		env:       env,
	}
}

// HealthResponse represents the basic health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// InfoResponse represents the API information response.
type InfoResponse struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Uptime      string `json:"uptime"`
	Parcels     int    `json:"parcels"`
	Clusters    int    `json:"clusters"`
}

// Health handles GET /health. Basic liveness check: no dependencies.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy"})
}

// Ready handles GET /health/ready. Verifies database connectivity so a
// load balancer only routes traffic once the store is reachable.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), HealthCheckTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		log := middleware.GetLogger(c)
		if log != nil {
			log.Error("Readiness check failed", err, nil)
		}
		c.JSON(http.StatusServiceUnavailable, ReadyResponse{
			Status:   "not ready",
			Database: "unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, ReadyResponse{
		Status:   "ready",
		Database: "connected",
	})
}

// Info handles GET /api/v1/info. Reports version, uptime and the size
// of the loaded spatial snapshot.
func (h *HealthHandler) Info(c *gin.Context) {
	resp := InfoResponse{
		Version:     APIVersion,
		Environment: h.env,
		Uptime:      fmt.Sprintf("%.0fs", time.Since(h.startTime).Seconds()),
	}
	if h.index != nil {
		resp.Parcels = h.index.ParcelCount()
		resp.Clusters = h.index.ClusterCount()
	}
	c.JSON(http.StatusOK, resp)
}
