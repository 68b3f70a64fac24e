package aggregation

import (
	"context"
	"sort"
	"time"

	"github.com/paulmach/orb"

	"github.com/landview/parcel-engine/internal/geometry"
	"github.com/landview/parcel-engine/internal/logger"
	"github.com/landview/parcel-engine/internal/models"
	"github.com/landview/parcel-engine/internal/owner"
)

// Grouper unions all parcels statewide by canonical owner key,
// regardless of spatial adjacency. One full pass; the resulting table
// supersedes the previous one.
type Grouper struct {
	log *logger.Logger
}

// NewGrouper creates an ownership grouper.
func NewGrouper(log *logger.Logger) *Grouper {
	return &Grouper{log: log.Component("grouper")}
}

// ParcelSource streams parcels in pages. Returning an empty page ends
// the stream.
type ParcelSource func(ctx context.Context, afterID int64, limit int) ([]models.Parcel, error)

// GroupAll consumes the parcel stream and accumulates one
// OwnershipGroup per owner key: parcel ids, summed area, and an
// incremental pairwise geometry union. A union failure on one malformed
// parcel excludes that parcel from the combined geometry (counted in
// Stats.Excluded) and never aborts the run.
func (g *Grouper) GroupAll(ctx context.Context, source ParcelSource, pageSize int) ([]models.OwnershipGroup, Stats, error) {
	type accumulator struct {
		ids      []int64
		area     float64
		combined orb.MultiPolygon
	}

	stats := Stats{}
	accs := make(map[string]*accumulator)

	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		page, err := source(ctx, afterID, pageSize)
		if err != nil {
			return nil, stats, err
		}
		if len(page) == 0 {
			break
		}

		for _, p := range page {
			stats.Parcels++
			afterID = p.ID

			acc, ok := accs[p.OwnerKey]
			if !ok {
				acc = &accumulator{}
				accs[p.OwnerKey] = acc
			}

			merged, err := geometry.Union(acc.combined, p.Geometry.MultiPolygon)
			if err != nil {
				// Malformed geometry: the parcel drops out of the group
				// entirely, and the run keeps going.
				stats.Excluded++
				g.log.Warn("Parcel excluded from ownership group", map[string]interface{}{
					"parcel_id": p.ID,
					"owner_key": p.OwnerKey,
					"error":     err.Error(),
				})
				continue
			}

			acc.ids = append(acc.ids, p.ID)
			acc.area += p.AreaSqm
			acc.combined = merged
		}
	}

	keys := make([]string, 0, len(accs))
	for key := range accs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	now := time.Now().UTC()
	groups := make([]models.OwnershipGroup, 0, len(keys))
	for _, key := range keys {
		acc := accs[key]
		if len(acc.ids) == 0 {
			continue
		}
		groups = append(groups, models.OwnershipGroup{
			OwnerKey:         key,
			ParcelIDs:        acc.ids,
			ParcelCount:      len(acc.ids),
			TotalAreaSqm:     acc.area,
			CombinedGeometry: models.MultiPolygon{MultiPolygon: acc.combined},
			RulesVersion:     owner.RulesVersion,
			ComputedAt:       now,
		})
	}

	stats.Groups = len(groups)
	g.log.Info("Ownership grouping complete", map[string]interface{}{
		"parcels":  stats.Parcels,
		"groups":   stats.Groups,
		"excluded": stats.Excluded,
	})

	return groups, stats, nil
}
