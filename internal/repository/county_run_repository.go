package repository

import (
	"context"
	"fmt"

	"github.com/landview/parcel-engine/internal/database"
	"github.com/landview/parcel-engine/internal/models"
)

// CountyRunRepository persists the per-county batch progress markers
// that make statewide runs resumable. Completion is recorded durably
// before the runner moves on, so a crash mid-run never reprocesses a
// finished county and never trusts a half-written one.
type CountyRunRepository interface {
	// CompletedCounties returns the set of counties whose last run
	// finished.
	CompletedCounties(ctx context.Context) (map[string]bool, error)

	// MarkProcessing upserts the county marker into the processing state.
	MarkProcessing(ctx context.Context, county string) error

	// MarkCompleted records completion together with run statistics.
	MarkCompleted(ctx context.Context, run models.CountyRun) error

	// ResetToPending returns a failed county to the pending state so the
	// next run picks it up again.
	ResetToPending(ctx context.Context, county string) error
}

type countyRunRepository struct {
	db *database.Database
}

// NewCountyRunRepository creates a new instance of CountyRunRepository.
func NewCountyRunRepository(db *database.Database) CountyRunRepository {
	return &countyRunRepository{db: db}
}

func (r *countyRunRepository) CompletedCounties(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT county FROM county_runs WHERE status = $1`, models.RunCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed counties: %w", err)
	}
	defer rows.Close()

	completed := make(map[string]bool)
	for rows.Next() {
		var county string
		if err := rows.Scan(&county); err != nil {
			return nil, fmt.Errorf("failed to scan county run row: %w", err)
		}
		completed[county] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating county run rows: %w", err)
	}
	return completed, nil
}

func (r *countyRunRepository) MarkProcessing(ctx context.Context, county string) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO county_runs (county, status, started_at)
		VALUES ($1, $2, now())
		ON CONFLICT (county) DO UPDATE SET
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			completed_at = NULL`,
		county, models.RunProcessing)
	if err != nil {
		return fmt.Errorf("failed to mark county %q processing: %w", county, err)
	}
	return nil
}

func (r *countyRunRepository) MarkCompleted(ctx context.Context, run models.CountyRun) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE county_runs SET
			status = $2,
			completed_at = now(),
			parcels_processed = $3,
			clusters_written = $4,
			parcels_repaired = $5,
			parcels_isolated = $6
		WHERE county = $1`,
		run.County, models.RunCompleted,
		run.ParcelsProcessed, run.ClustersWritten, run.ParcelsRepaired, run.ParcelsIsolated)
	if err != nil {
		return fmt.Errorf("failed to mark county %q completed: %w", run.County, err)
	}
	return nil
}

func (r *countyRunRepository) ResetToPending(ctx context.Context, county string) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE county_runs SET status = $2, completed_at = NULL WHERE county = $1`,
		county, models.RunPending)
	if err != nil {
		return fmt.Errorf("failed to reset county %q to pending: %w", county, err)
	}
	return nil
}
