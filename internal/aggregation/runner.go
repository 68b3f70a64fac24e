package aggregation

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/landview/parcel-engine/internal/logger"
	"github.com/landview/parcel-engine/internal/models"
	"github.com/landview/parcel-engine/internal/repository"
)

// RunReport summarizes one full batch pass.
type RunReport struct {
	Counties        int
	Skipped         int
	Failed          int
	ClusterStats    Stats
	GroupStats      Stats
	Duration        time.Duration
	CacheInvalidate bool
}

// Runner drives a full aggregation pass: adjacency clustering county by
// county (resumable, bounded parallelism) followed by statewide
// ownership grouping. Each county is an atomic unit: its derived rows
// are replaced in one transaction and its completion marker is written
// before the runner considers it done.
type Runner struct {
	parcels  repository.ParcelRepository
	clusters repository.ClusterRepository
	groups   repository.GroupRepository
	runs     repository.CountyRunRepository
	engine   *Engine
	grouper  *Grouper

	workers   int
	pageSize  int
	serverURL string
	log       *logger.Logger
}

// RunnerConfig bundles the Runner collaborators and settings.
type RunnerConfig struct {
	Parcels   repository.ParcelRepository
	Clusters  repository.ClusterRepository
	Groups    repository.GroupRepository
	Runs      repository.CountyRunRepository
	Engine    *Engine
	Grouper   *Grouper
	Workers   int
	PageSize  int
	ServerURL string
	Logger    *logger.Logger
}

// NewRunner creates a batch runner.
func NewRunner(cfg RunnerConfig) *Runner {
	return &Runner{
		parcels:   cfg.Parcels,
		clusters:  cfg.Clusters,
		groups:    cfg.Groups,
		runs:      cfg.Runs,
		engine:    cfg.Engine,
		grouper:   cfg.Grouper,
		workers:   cfg.Workers,
		pageSize:  cfg.PageSize,
		serverURL: cfg.ServerURL,
		log:       cfg.Logger.Component("runner"),
	}
}

// Run executes the full pass. A failure in one county is contained:
// the county's marker is reset to pending, the failure is counted, and
// the other counties proceed. Only unrecoverable setup errors (listing
// counties, reading markers) abort the run, leaving prior derived state
// untouched.
func (r *Runner) Run(ctx context.Context) (RunReport, error) {
	start := time.Now()
	report := RunReport{}

	counties, err := r.parcels.ListCounties(ctx)
	if err != nil {
		return report, fmt.Errorf("list counties: %w", err)
	}
	report.Counties = len(counties)

	completed, err := r.runs.CompletedCounties(ctx)
	if err != nil {
		return report, fmt.Errorf("read county markers: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	results := make([]countyResult, len(counties))
	for i, county := range counties {
		if completed[county] {
			report.Skipped++
			r.log.Debug("County already completed, skipping", map[string]interface{}{
				"county": county,
			})
			continue
		}

		i, county := i, county
		g.Go(func() error {
			stats, err := r.processCounty(gctx, county)
			results[i] = countyResult{county: county, stats: stats, err: err}
			// County failures are contained; only context cancellation
			// stops the group.
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		report.Duration = time.Since(start)
		return report, err
	}

	for _, res := range results {
		if res.county == "" {
			continue
		}
		if res.err != nil {
			report.Failed++
			r.log.Error("County run failed", res.err, map[string]interface{}{
				"county": res.county,
			})
			continue
		}
		report.ClusterStats.Add(res.stats)
	}

	groupStats, err := r.regroupOwnership(ctx)
	if err != nil {
		report.Duration = time.Since(start)
		return report, err
	}
	report.GroupStats = groupStats

	report.CacheInvalidate = r.invalidateTileCache(ctx)
	report.Duration = time.Since(start)

	r.log.Info("Aggregation run complete", map[string]interface{}{
		"counties":    report.Counties,
		"skipped":     report.Skipped,
		"failed":      report.Failed,
		"clusters":    report.ClusterStats.Clusters,
		"groups":      report.GroupStats.Groups,
		"duration_ms": report.Duration.Milliseconds(),
	})
	return report, nil
}

type countyResult struct {
	county string
	stats  Stats
	err    error
}

// processCounty runs one county end to end: marker to processing, load,
// cluster, transactional replace, marker to completed. Any failure
// resets the marker to pending so the next run retries the county.
func (r *Runner) processCounty(ctx context.Context, county string) (Stats, error) {
	if err := r.runs.MarkProcessing(ctx, county); err != nil {
		return Stats{}, err
	}

	stats, err := r.clusterAndStore(ctx, county)
	if err != nil {
		if resetErr := r.runs.ResetToPending(ctx, county); resetErr != nil {
			r.log.Error("Failed to reset county marker", resetErr, map[string]interface{}{
				"county": county,
			})
		}
		return Stats{}, err
	}

	err = r.runs.MarkCompleted(ctx, models.CountyRun{
		County:           county,
		Status:           models.RunCompleted,
		ParcelsProcessed: stats.Parcels,
		ClustersWritten:  stats.Clusters,
		ParcelsRepaired:  stats.Repaired,
		ParcelsIsolated:  stats.Isolated,
	})
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (r *Runner) clusterAndStore(ctx context.Context, county string) (Stats, error) {
	parcels, err := repository.LoadCountyParcels(ctx, r.parcels, county, r.pageSize)
	if err != nil {
		return Stats{}, fmt.Errorf("load parcels for county %q: %w", county, err)
	}

	clusters, stats, err := r.engine.ClusterCounty(ctx, county, parcels)
	if err != nil {
		return stats, err
	}

	if err := r.clusters.ReplaceCounty(ctx, county, clusters); err != nil {
		return stats, err
	}
	return stats, nil
}

func (r *Runner) regroupOwnership(ctx context.Context) (Stats, error) {
	source := func(ctx context.Context, afterID int64, limit int) ([]models.Parcel, error) {
		return r.parcels.Page(ctx, afterID, limit)
	}

	groups, stats, err := r.grouper.GroupAll(ctx, source, r.pageSize)
	if err != nil {
		return stats, fmt.Errorf("ownership grouping: %w", err)
	}

	if err := r.groups.ReplaceAll(ctx, groups); err != nil {
		return stats, fmt.Errorf("store ownership groups: %w", err)
	}
	return stats, nil
}

// invalidateTileCache asks the serving process to drop its tile cache
// after a reprocessing batch. Best-effort: a missing or unreachable
// server only logs a warning.
func (r *Runner) invalidateTileCache(ctx context.Context) bool {
	if r.serverURL == "" {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.serverURL+"/tiles/cache/clear", nil)
	if err != nil {
		r.log.Warn("Failed to build cache clear request", map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		r.log.Warn("Tile cache clear request failed", map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.log.Warn("Tile cache clear returned non-OK status", map[string]interface{}{
			"status": resp.StatusCode,
		})
		return false
	}
	return true
}
