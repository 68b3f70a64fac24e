package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/paulmach/orb"

	"github.com/landview/parcel-engine/internal/logger"
	"github.com/landview/parcel-engine/internal/models"
	"github.com/landview/parcel-engine/internal/owner"
	"github.com/landview/parcel-engine/internal/spatial"
)

// Coordinate validation constants
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// Result limit bounds
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// DefaultOwnerEditDistance is the edit distance used by the fuzzy
// owner search.
const DefaultOwnerEditDistance = 2

// Service-level errors
var (
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrInvalidBounds      = errors.New("invalid bounding box")
	ErrInvalidLimit       = errors.New("limit must be between 1 and 1000")
	ErrEmptyQuery         = errors.New("search query must not be empty")
)

// OwnerSummary is the ownership-group view returned by the search and
// top-owners endpoints: everything but the combined geometry, which is
// too heavy for list responses.
type OwnerSummary struct {
	OwnerKey     string  `json:"owner_key"`
	ParcelCount  int     `json:"parcel_count"`
	TotalAreaSqm float64 `json:"total_area_sqm"`
}

// QueryService defines the read-side business logic over the spatial
// index snapshot. All spatial lookups are index-backed; invalid input
// is rejected here and never reaches the index.
type QueryService interface {
	// ParcelAtPoint returns the parcel containing the point, or nil
	// when no parcel does (not an error).
	ParcelAtPoint(ctx context.Context, lat, lng float64) (*models.Parcel, error)

	// ParcelsInBounds returns up to limit parcels intersecting the box.
	ParcelsInBounds(ctx context.Context, minLng, minLat, maxLng, maxLat float64, limit int) ([]models.Parcel, error)

	// ParcelsByCounty returns up to limit parcels in the county.
	ParcelsByCounty(ctx context.Context, county string, limit int) ([]models.Parcel, error)

	// GroupByOwnerKey returns the statewide group for a canonical owner
	// key, or nil when none exists.
	GroupByOwnerKey(ctx context.Context, key string) (*models.OwnershipGroup, error)

	// SearchOwners returns group summaries whose owner key matches the
	// query, normalized first, substring matches ranked before fuzzy
	// edit-distance matches.
	SearchOwners(ctx context.Context, query string, limit int) ([]OwnerSummary, error)

	// TopOwners returns the largest groups by total area.
	TopOwners(ctx context.Context, limit int) ([]OwnerSummary, error)
}

type queryService struct {
	index *spatial.Index
	log   *logger.Logger
}

// NewQueryService creates a QueryService over an index snapshot.
func NewQueryService(index *spatial.Index, log *logger.Logger) QueryService {
	return &queryService{
		index: index,
		log:   log.Component("query"),
	}
}

func (s *queryService) ParcelAtPoint(ctx context.Context, lat, lng float64) (*models.Parcel, error) {
	if err := validateCoordinates(lat, lng); err != nil {
		s.log.Warn("Invalid point query coordinates", map[string]interface{}{
			"lat": lat,
			"lng": lng,
		})
		return nil, err
	}

	parcel := s.index.PointQuery(lng, lat)
	if parcel == nil {
		s.log.Debug("No parcel at point", map[string]interface{}{
			"lat": lat,
			"lng": lng,
		})
		return nil, nil
	}

	return parcel, nil
}

func (s *queryService) ParcelsInBounds(ctx context.Context, minLng, minLat, maxLng, maxLat float64, limit int) ([]models.Parcel, error) {
	if err := validateCoordinates(minLat, minLng); err != nil {
		return nil, err
	}
	if err := validateCoordinates(maxLat, maxLng); err != nil {
		return nil, err
	}
	if minLng > maxLng || minLat > maxLat {
		return nil, fmt.Errorf("%w: min corner must not exceed max corner", ErrInvalidBounds)
	}

	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	bound := orb.Bound{
		Min: orb.Point{minLng, minLat},
		Max: orb.Point{maxLng, maxLat},
	}
	return s.index.BBoxQuery(bound, limit), nil
}

func (s *queryService) ParcelsByCounty(ctx context.Context, county string, limit int) ([]models.Parcel, error) {
	if county == "" {
		return nil, fmt.Errorf("%w: county is required", ErrEmptyQuery)
	}

	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}
	return s.index.ByCounty(county, limit), nil
}

func (s *queryService) GroupByOwnerKey(ctx context.Context, key string) (*models.OwnershipGroup, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: owner key is required", ErrEmptyQuery)
	}
	return s.index.ByOwnerKey(key), nil
}

func (s *queryService) SearchOwners(ctx context.Context, query string, limit int) ([]OwnerSummary, error) {
	normalized := owner.Normalize(query)
	if normalized == "" {
		return nil, ErrEmptyQuery
	}

	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	keys := s.index.MatchOwners(normalized, limit, func(key string) bool {
		return owner.Similar(key, normalized, DefaultOwnerEditDistance)
	})

	summaries := make([]OwnerSummary, 0, len(keys))
	for _, key := range keys {
		if g := s.index.ByOwnerKey(key); g != nil {
			summaries = append(summaries, summarize(g))
		}
	}

	s.log.Debug("Owner search", map[string]interface{}{
		"query":   query,
		"matches": len(summaries),
	})
	return summaries, nil
}

func (s *queryService) TopOwners(ctx context.Context, limit int) ([]OwnerSummary, error) {
	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	keys := s.index.OwnerKeys()
	summaries := make([]OwnerSummary, 0, len(keys))
	for _, key := range keys {
		if g := s.index.ByOwnerKey(key); g != nil {
			summaries = append(summaries, summarize(g))
		}
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].TotalAreaSqm > summaries[j].TotalAreaSqm
	})
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

func summarize(g *models.OwnershipGroup) OwnerSummary {
	return OwnerSummary{
		OwnerKey:     g.OwnerKey,
		ParcelCount:  g.ParcelCount,
		TotalAreaSqm: g.TotalAreaSqm,
	}
}

func validateCoordinates(lat, lng float64) error {
	if lat < MinLatitude || lat > MaxLatitude {
		return fmt.Errorf("%w: latitude must be between %.0f and %.0f, got %f",
			ErrInvalidCoordinates, MinLatitude, MaxLatitude, lat)
	}
	if lng < MinLongitude || lng > MaxLongitude {
		return fmt.Errorf("%w: longitude must be between %.0f and %.0f, got %f",
			ErrInvalidCoordinates, MinLongitude, MaxLongitude, lng)
	}
	return nil
}

func normalizeLimit(limit int) (int, error) {
	if limit == 0 {
		return DefaultLimit, nil
	}
	if limit < 1 || limit > MaxLimit {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}
	return limit, nil
}
