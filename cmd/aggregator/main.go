package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/landview/parcel-engine/internal/aggregation"
	"github.com/landview/parcel-engine/internal/config"
	"github.com/landview/parcel-engine/internal/database"
	"github.com/landview/parcel-engine/internal/logger"
	"github.com/landview/parcel-engine/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Server.Env)
	log.Info("Starting aggregation batch", map[string]interface{}{
		"environment": cfg.Server.Env,
		"tolerance_m": cfg.Batch.AdjacencyToleranceM,
		"workers":     cfg.Batch.Workers,
		"page_size":   cfg.Batch.PageSize,
	})

	// SIGINT/SIGTERM cancels the run; per-county markers make the next
	// invocation pick up where this one stopped.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	runner := aggregation.NewRunner(aggregation.RunnerConfig{
		Parcels:   repository.NewParcelRepository(db),
		Clusters:  repository.NewClusterRepository(db),
		Groups:    repository.NewGroupRepository(db),
		Runs:      repository.NewCountyRunRepository(db),
		Engine:    aggregation.NewEngine(cfg.Batch.AdjacencyToleranceM, log),
		Grouper:   aggregation.NewGrouper(log),
		Workers:   cfg.Batch.Workers,
		PageSize:  cfg.Batch.PageSize,
		ServerURL: cfg.Batch.ServerURL,
		Logger:    log,
	})

	report, err := runner.Run(ctx)
	if err != nil {
		log.Error("Aggregation run aborted", err, map[string]interface{}{
			"counties": report.Counties,
			"failed":   report.Failed,
		})
		os.Exit(1)
	}

	log.Info("Aggregation batch finished", map[string]interface{}{
		"counties":          report.Counties,
		"skipped":           report.Skipped,
		"failed":            report.Failed,
		"parcels_clustered": report.ClusterStats.Parcels,
		"clusters_written":  report.ClusterStats.Clusters,
		"parcels_repaired":  report.ClusterStats.Repaired,
		"parcels_isolated":  report.ClusterStats.Isolated,
		"groups_written":    report.GroupStats.Groups,
		"parcels_excluded":  report.GroupStats.Excluded,
		"cache_invalidated": report.CacheInvalidate,
		"duration_ms":       report.Duration.Milliseconds(),
	})

	if report.Failed > 0 {
		os.Exit(2)
	}
}
