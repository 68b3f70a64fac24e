package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/landview/parcel-engine/internal/database"
	"github.com/landview/parcel-engine/internal/models"
)

// ClusterRepository persists aggregated clusters. A county's clusters
// are only ever replaced wholesale, inside one transaction, so readers
// never observe a partially-written county.
type ClusterRepository interface {
	// ReplaceCounty atomically deletes and re-inserts all clusters for
	// one county.
	ReplaceCounty(ctx context.Context, county string, clusters []models.AggregatedCluster) error

	// All returns every aggregated cluster, ordered by id.
	All(ctx context.Context) ([]models.AggregatedCluster, error)
}

type clusterRepository struct {
	db *database.Database
}

// NewClusterRepository creates a new instance of ClusterRepository.
func NewClusterRepository(db *database.Database) ClusterRepository {
	return &clusterRepository{db: db}
}

func (r *clusterRepository) ReplaceCounty(ctx context.Context, county string, clusters []models.AggregatedCluster) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for county %q: %w", county, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM aggregated_clusters WHERE county = $1`, county); err != nil {
		return fmt.Errorf("failed to delete clusters for county %q: %w", county, err)
	}

	batch := &pgx.Batch{}
	for _, c := range clusters {
		geomJSON, err := c.Geometry.Value()
		if err != nil {
			return fmt.Errorf("failed to encode geometry for cluster (county=%q owner=%q): %w", county, c.OwnerKey, err)
		}
		batch.Queue(`
			INSERT INTO aggregated_clusters
				(owner_key, county, parcel_ids, parcel_count, total_area_sqm, geometry, computed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			c.OwnerKey, c.County, c.ParcelIDs, c.ParcelCount, c.TotalAreaSqm, geomJSON, c.ComputedAt,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range clusters {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to insert cluster for county %q: %w", county, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close insert batch for county %q: %w", county, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit clusters for county %q: %w", county, err)
	}
	return nil
}

func (r *clusterRepository) All(ctx context.Context) ([]models.AggregatedCluster, error) {
	query := `
		SELECT id, owner_key, county, parcel_ids, parcel_count, total_area_sqm, geometry, computed_at
		FROM aggregated_clusters
		ORDER BY id`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query aggregated clusters: %w", err)
	}
	defer rows.Close()

	clusters := []models.AggregatedCluster{}
	for rows.Next() {
		var c models.AggregatedCluster
		var geomJSON []byte

		err := rows.Scan(
			&c.ID,
			&c.OwnerKey,
			&c.County,
			&c.ParcelIDs,
			&c.ParcelCount,
			&c.TotalAreaSqm,
			&geomJSON,
			&c.ComputedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cluster row: %w", err)
		}

		if err := c.Geometry.Scan(geomJSON); err != nil {
			return nil, fmt.Errorf("failed to parse geometry for cluster %d: %w", c.ID, err)
		}
		clusters = append(clusters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cluster rows: %w", err)
	}
	return clusters, nil
}
