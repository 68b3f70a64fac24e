package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/landview/parcel-engine/internal/config"
	"github.com/landview/parcel-engine/internal/database"
	apierrors "github.com/landview/parcel-engine/internal/errors"
	"github.com/landview/parcel-engine/internal/handlers"
	"github.com/landview/parcel-engine/internal/logger"
	"github.com/landview/parcel-engine/internal/middleware"
	"github.com/landview/parcel-engine/internal/repository"
	"github.com/landview/parcel-engine/internal/services"
	"github.com/landview/parcel-engine/internal/spatial"
	"github.com/landview/parcel-engine/internal/tiles"
)

const (
	shutdownTimeout  = 30 * time.Second
	snapshotPageSize = 5000
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.Server.Env)
	log.Info("Starting parcel engine API", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
	})

	// Create database connection pool
	ctx := context.Background()
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	log.Info("Database connection established", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})

	// Load the derived tables into the in-memory spatial index. Every
	// read endpoint serves from this snapshot; a tile cache flush after
	// the next batch run is the signal to restart and reload.
	index, err := loadIndex(ctx, db, log)
	if err != nil {
		log.Fatal("Failed to build spatial index", err, nil)
	}

	// Query service over the snapshot
	queryService := services.NewQueryService(index, log)

	// Tile pipeline: rule table, encoder over the index, TTL cache
	rules := tiles.DefaultRules(cfg.Tiles.ParcelMinZoom)
	encoder := tiles.NewEncoder(index, rules, cfg.Tiles.BufferFraction)
	tileCache := tiles.NewCache(cfg.Tiles.CacheSize, cfg.Tiles.CacheTTL)

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))

	// Register health check routes
	healthHandler := handlers.NewHealthHandler(db, index, cfg.Server.Env)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)

	// Initialize handlers
	parcelHandler := handlers.NewParcelHandler(queryService)
	ownershipHandler := handlers.NewOwnershipHandler(queryService)
	tileHandler := handlers.NewTileHandler(encoder, tileCache, rules, cfg.Tiles.CacheTTL, cfg.Tiles.EncodeTimeout)

	// Register routes
	parcels := router.Group("/parcels")
	{
		parcels.GET("/search", parcelHandler.Search)
		parcels.GET("/bounds", parcelHandler.Bounds)
		parcels.GET("/county/:county", parcelHandler.ByCounty)
	}

	ownership := router.Group("/ownership")
	{
		ownership.GET("/search", ownershipHandler.Search)
		ownership.GET("/top", ownershipHandler.Top)
		ownership.GET("/group/:key", ownershipHandler.Group)
	}

	router.GET("/tiles/:z/:x/:y", tileHandler.Tile)
	router.POST("/tiles/cache/clear", tileHandler.CacheClear)

	router.NoRoute(func(c *gin.Context) {
		apierrors.NotFound(c, "Route not found")
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}

// loadIndex drains the parcel, cluster and group tables and builds the
// R-tree-backed snapshot all read endpoints serve from.
func loadIndex(ctx context.Context, db *database.Database, log *logger.Logger) (*spatial.Index, error) {
	start := time.Now()

	parcelRepo := repository.NewParcelRepository(db)
	clusterRepo := repository.NewClusterRepository(db)
	groupRepo := repository.NewGroupRepository(db)

	parcels, err := repository.LoadAllParcels(ctx, parcelRepo, snapshotPageSize)
	if err != nil {
		return nil, fmt.Errorf("load parcels: %w", err)
	}
	clusters, err := clusterRepo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load clusters: %w", err)
	}
	groups, err := groupRepo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ownership groups: %w", err)
	}

	index := spatial.NewIndex(parcels, clusters, groups)
	log.Info("Spatial index built", map[string]interface{}{
		"parcels":     len(parcels),
		"clusters":    len(clusters),
		"groups":      len(groups),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return index, nil
}
