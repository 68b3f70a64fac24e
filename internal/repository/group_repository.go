package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/landview/parcel-engine/internal/database"
	"github.com/landview/parcel-engine/internal/models"
)

// GroupRepository persists statewide ownership groups. The whole table
// is superseded in one transaction per batch run; groups are never
// patched row by row.
type GroupRepository interface {
	// ReplaceAll atomically swaps the ownership_groups table contents.
	ReplaceAll(ctx context.Context, groups []models.OwnershipGroup) error

	// All returns every ownership group, ordered by owner key.
	All(ctx context.Context) ([]models.OwnershipGroup, error)

	// ByKey returns the group for one canonical owner key.
	// Returns nil, nil when no group exists (not an error).
	ByKey(ctx context.Context, ownerKey string) (*models.OwnershipGroup, error)
}

type groupRepository struct {
	db *database.Database
}

// NewGroupRepository creates a new instance of GroupRepository.
func NewGroupRepository(db *database.Database) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) ReplaceAll(ctx context.Context, groups []models.OwnershipGroup) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin ownership group transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM ownership_groups`); err != nil {
		return fmt.Errorf("failed to clear ownership groups: %w", err)
	}

	batch := &pgx.Batch{}
	for _, g := range groups {
		geomJSON, err := g.CombinedGeometry.Value()
		if err != nil {
			return fmt.Errorf("failed to encode geometry for owner %q: %w", g.OwnerKey, err)
		}
		batch.Queue(`
			INSERT INTO ownership_groups
				(owner_key, parcel_ids, parcel_count, total_area_sqm, combined_geometry, rules_version, computed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			g.OwnerKey, g.ParcelIDs, g.ParcelCount, g.TotalAreaSqm, geomJSON, g.RulesVersion, g.ComputedAt,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range groups {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to insert ownership group: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close ownership group batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit ownership groups: %w", err)
	}
	return nil
}

const groupColumns = `
	owner_key,
	parcel_ids,
	parcel_count,
	total_area_sqm,
	combined_geometry,
	rules_version,
	computed_at
`

func (r *groupRepository) All(ctx context.Context) ([]models.OwnershipGroup, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+groupColumns+` FROM ownership_groups ORDER BY owner_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ownership groups: %w", err)
	}
	defer rows.Close()

	groups := []models.OwnershipGroup{}
	for rows.Next() {
		g, err := scanGroup(rows.Scan)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ownership group rows: %w", err)
	}
	return groups, nil
}

func (r *groupRepository) ByKey(ctx context.Context, ownerKey string) (*models.OwnershipGroup, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+groupColumns+` FROM ownership_groups WHERE owner_key = $1`, ownerKey)

	g, err := scanGroup(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query ownership group %q: %w", ownerKey, err)
	}
	return &g, nil
}

func scanGroup(scan func(dest ...any) error) (models.OwnershipGroup, error) {
	var g models.OwnershipGroup
	var geomJSON []byte

	err := scan(
		&g.OwnerKey,
		&g.ParcelIDs,
		&g.ParcelCount,
		&g.TotalAreaSqm,
		&geomJSON,
		&g.RulesVersion,
		&g.ComputedAt,
	)
	if err != nil {
		return models.OwnershipGroup{}, err
	}

	if err := g.CombinedGeometry.Scan(geomJSON); err != nil {
		return models.OwnershipGroup{}, fmt.Errorf("failed to parse geometry for owner %q: %w", g.OwnerKey, err)
	}
	return g, nil
}
