package repository

import (
	"context"
	"fmt"

	"github.com/landview/parcel-engine/internal/database"
	"github.com/landview/parcel-engine/internal/models"
)

// parcelColumns is the select list shared by every parcel query.
const parcelColumns = `
	id,
	county,
	external_parcel_number,
	owner_raw,
	owner_key,
	area_sqm,
	geometry,
	created_at,
	updated_at
`

// ParcelRepository defines read access to the raw parcel table. Parcels
// are written only by ingestion; everything in this engine treats them
// as read-only source of truth.
type ParcelRepository interface {
	// ListCounties returns the distinct county names present in the
	// parcel table, sorted.
	ListCounties(ctx context.Context) ([]string, error)

	// Page returns up to limit parcels with id greater than afterID,
	// ordered by id. An empty slice means the stream is exhausted.
	Page(ctx context.Context, afterID int64, limit int) ([]models.Parcel, error)

	// CountyPage is Page restricted to one county.
	CountyPage(ctx context.Context, county string, afterID int64, limit int) ([]models.Parcel, error)
}

type parcelRepository struct {
	db *database.Database
}

// NewParcelRepository creates a new instance of ParcelRepository.
func NewParcelRepository(db *database.Database) ParcelRepository {
	return &parcelRepository{db: db}
}

func (r *parcelRepository) ListCounties(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT DISTINCT county FROM parcels ORDER BY county`)
	if err != nil {
		return nil, fmt.Errorf("failed to list counties: %w", err)
	}
	defer rows.Close()

	var counties []string
	for rows.Next() {
		var county string
		if err := rows.Scan(&county); err != nil {
			return nil, fmt.Errorf("failed to scan county row: %w", err)
		}
		counties = append(counties, county)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating county rows: %w", err)
	}
	return counties, nil
}

func (r *parcelRepository) Page(ctx context.Context, afterID int64, limit int) ([]models.Parcel, error) {
	query := `SELECT ` + parcelColumns + `
		FROM parcels
		WHERE id > $1
		ORDER BY id
		LIMIT $2`

	rows, err := r.db.Pool.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query parcel page (after=%d): %w", afterID, err)
	}
	defer rows.Close()

	return scanParcels(rows)
}

func (r *parcelRepository) CountyPage(ctx context.Context, county string, afterID int64, limit int) ([]models.Parcel, error) {
	query := `SELECT ` + parcelColumns + `
		FROM parcels
		WHERE county = $1 AND id > $2
		ORDER BY id
		LIMIT $3`

	rows, err := r.db.Pool.Query(ctx, query, county, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query parcel page for county %q (after=%d): %w", county, afterID, err)
	}
	defer rows.Close()

	return scanParcels(rows)
}

// rowScanner is the subset of pgx.Rows used by the scan helpers.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanParcels(rows rowScanner) ([]models.Parcel, error) {
	parcels := []models.Parcel{}
	for rows.Next() {
		var p models.Parcel
		var geomJSON []byte

		err := rows.Scan(
			&p.ID,
			&p.County,
			&p.ExternalParcelNumber,
			&p.OwnerRaw,
			&p.OwnerKey,
			&p.AreaSqm,
			&geomJSON,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan parcel row: %w", err)
		}

		if err := p.Geometry.Scan(geomJSON); err != nil {
			return nil, fmt.Errorf("failed to parse geometry for parcel %d: %w", p.ID, err)
		}
		parcels = append(parcels, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parcel rows: %w", err)
	}
	return parcels, nil
}

// LoadAllParcels drains the repository page by page. Used to build the
// in-memory spatial index at server startup.
func LoadAllParcels(ctx context.Context, repo ParcelRepository, pageSize int) ([]models.Parcel, error) {
	var all []models.Parcel
	var afterID int64
	for {
		page, err := repo.Page(ctx, afterID, pageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return all, nil
		}
		all = append(all, page...)
		afterID = page[len(page)-1].ID
	}
}

// LoadCountyParcels drains one county page by page.
func LoadCountyParcels(ctx context.Context, repo ParcelRepository, county string, pageSize int) ([]models.Parcel, error) {
	var all []models.Parcel
	var afterID int64
	for {
		page, err := repo.CountyPage(ctx, county, afterID, pageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return all, nil
		}
		all = append(all, page...)
		afterID = page[len(page)-1].ID
	}
}
