// Package aggregation implements the offline batch pipeline: the
// statewide ownership grouper and the per-county adjacency clustering
// engine, plus the resumable runner that drives both.
package aggregation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"

	"github.com/landview/parcel-engine/internal/geometry"
	"github.com/landview/parcel-engine/internal/logger"
	"github.com/landview/parcel-engine/internal/models"
)

// Stats aggregates per-run counters. Batch errors land here rather than
// aborting the run; the operator reads them from the county_runs table.
type Stats struct {
	Parcels  int
	Clusters int
	Groups   int
	Excluded int
	Repaired int
	Isolated int
}

// Add merges another Stats into this one.
func (s *Stats) Add(o Stats) {
	s.Parcels += o.Parcels
	s.Clusters += o.Clusters
	s.Groups += o.Groups
	s.Excluded += o.Excluded
	s.Repaired += o.Repaired
	s.Isolated += o.Isolated
}

// Engine clusters same-owner parcels within one county into
// spatially-contiguous groups using a boundary-distance threshold.
type Engine struct {
	toleranceM float64
	log        *logger.Logger
}

// NewEngine creates a clustering engine with the given adjacency
// tolerance in meters.
func NewEngine(toleranceM float64, log *logger.Logger) *Engine {
	return &Engine{
		toleranceM: toleranceM,
		log:        log.Component("clustering"),
	}
}

// partitionParcel carries a parcel through one partition's clustering
// pass with its projected geometry and repair bookkeeping.
type partitionParcel struct {
	parcel    models.Parcel
	working   orb.MultiPolygon // repaired when the original was invalid
	projected orb.MultiPolygon
	isolated  bool
	repaired  bool
}

// ClusterCounty groups all parcels of one county into aggregated
// clusters, one batch per (owner_key) partition. Input parcels are
// sorted by id before clustering so output is deterministic for a given
// input set. The caller persists the result atomically.
func (e *Engine) ClusterCounty(ctx context.Context, county string, parcels []models.Parcel) ([]models.AggregatedCluster, Stats, error) {
	stats := Stats{Parcels: len(parcels)}

	byOwner := make(map[string][]models.Parcel)
	for _, p := range parcels {
		byOwner[p.OwnerKey] = append(byOwner[p.OwnerKey], p)
	}

	ownerKeys := make([]string, 0, len(byOwner))
	for key := range byOwner {
		ownerKeys = append(ownerKeys, key)
	}
	sort.Strings(ownerKeys)

	now := time.Now().UTC()
	var clusters []models.AggregatedCluster
	for _, key := range ownerKeys {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		partition, err := e.clusterPartition(county, key, byOwner[key], &stats, now)
		if err != nil {
			return nil, stats, fmt.Errorf("cluster county %q owner %q: %w", county, key, err)
		}
		clusters = append(clusters, partition...)
	}

	stats.Clusters = len(clusters)
	e.log.Info("County clustered", map[string]interface{}{
		"county":   county,
		"parcels":  stats.Parcels,
		"clusters": stats.Clusters,
		"repaired": stats.Repaired,
		"isolated": stats.Isolated,
	})

	return clusters, stats, nil
}

// clusterPartition clusters one (county, owner_key) partition:
// bbox-prefiltered boundary-distance edges, connected components over
// them, one geometry union per component.
func (e *Engine) clusterPartition(county, ownerKey string, parcels []models.Parcel, stats *Stats, now time.Time) ([]models.AggregatedCluster, error) {
	sort.Slice(parcels, func(i, j int) bool { return parcels[i].ID < parcels[j].ID })

	members := e.prepare(county, parcels, stats)

	// Bbox prefilter via R-tree; a county partition can hold six-figure
	// parcel counts, so all-pairs distance checks are off the table.
	var tree rtree.RTreeG[int]
	for i := range members {
		if members[i].isolated {
			continue
		}
		b := members[i].projected.Bound()
		tree.Insert([2]float64{b.Min[0], b.Min[1]}, [2]float64{b.Max[0], b.Max[1]}, i)
	}

	uf := newUnionFind(len(members))
	for i := range members {
		if members[i].isolated {
			continue
		}

		b := members[i].projected.Bound()
		var candidates []int
		tree.Search(
			[2]float64{b.Min[0] - e.toleranceM, b.Min[1] - e.toleranceM},
			[2]float64{b.Max[0] + e.toleranceM, b.Max[1] + e.toleranceM},
			func(min, max [2]float64, j int) bool {
				if j > i {
					candidates = append(candidates, j)
				}
				return true
			})

		for _, j := range candidates {
			if uf.find(i) == uf.find(j) {
				continue
			}
			d, err := geometry.BoundaryDistance(members[i].projected, members[j].projected)
			if err != nil {
				return nil, err
			}
			if d <= e.toleranceM {
				uf.union(i, j)
			}
		}
	}

	// Collect components in first-member order for determinism.
	components := make(map[int][]int)
	var order []int
	for i := range members {
		root := uf.find(i)
		if _, seen := components[root]; !seen {
			order = append(order, root)
		}
		components[root] = append(components[root], i)
	}

	clusters := make([]models.AggregatedCluster, 0, len(order))
	for _, root := range order {
		cluster, err := e.buildCluster(county, ownerKey, members, components[root], now)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, cluster)
	}
	return clusters, nil
}

// prepare projects each parcel onto the county-local meter plane and
// applies the geometry defect policy: invalid geometry gets one repair
// attempt; if that fails the parcel is isolated as a flagged singleton,
// never dropped and never allowed into a neighbour union.
func (e *Engine) prepare(county string, parcels []models.Parcel, stats *Stats) []partitionParcel {
	var originLat float64
	if len(parcels) > 0 && !parcels[0].Geometry.IsEmpty() {
		b := parcels[0].Geometry.Bound()
		originLat = (b.Min[1] + b.Max[1]) / 2
	}

	members := make([]partitionParcel, len(parcels))
	for i, p := range parcels {
		members[i] = partitionParcel{parcel: p}

		mp := p.Geometry.MultiPolygon
		if len(mp) == 0 {
			members[i].isolated = true
			stats.Isolated++
			e.log.Warn("Empty parcel geometry isolated", map[string]interface{}{
				"county":    county,
				"parcel_id": p.ID,
			})
			continue
		}

		if err := geometry.Validate(mp); err != nil {
			repaired, repairErr := geometry.Repair(mp)
			if repairErr != nil {
				members[i].isolated = true
				stats.Isolated++
				e.log.Warn("Unrepairable parcel geometry isolated", map[string]interface{}{
					"county":    county,
					"parcel_id": p.ID,
					"error":     repairErr.Error(),
				})
				continue
			}
			mp = repaired
			members[i].repaired = true
			stats.Repaired++
		}

		members[i].working = mp
		members[i].projected = geometry.ProjectLocal(mp, originLat)
	}
	return members
}

// buildCluster unions one connected component into a single
// AggregatedCluster. Isolated parcels reach here as size-1 components
// and keep their original geometry untouched.
func (e *Engine) buildCluster(county, ownerKey string, members []partitionParcel, component []int, now time.Time) (models.AggregatedCluster, error) {
	sort.Ints(component)

	ids := make([]int64, 0, len(component))
	geoms := make([]orb.MultiPolygon, 0, len(component))
	var totalArea float64
	for _, i := range component {
		ids = append(ids, members[i].parcel.ID)
		totalArea += members[i].parcel.AreaSqm
		if members[i].isolated {
			// Flagged singleton: keep whatever geometry it arrived with.
			geoms = append(geoms, members[i].parcel.Geometry.MultiPolygon)
		} else {
			geoms = append(geoms, members[i].working)
		}
	}

	var merged orb.MultiPolygon
	if len(geoms) == 1 {
		merged = geoms[0]
	} else {
		var err error
		merged, err = geometry.UnionAll(geoms)
		if err != nil {
			return models.AggregatedCluster{}, fmt.Errorf("union component: %w", err)
		}
	}

	return models.AggregatedCluster{
		OwnerKey:     ownerKey,
		County:       county,
		ParcelIDs:    ids,
		ParcelCount:  len(ids),
		TotalAreaSqm: totalArea,
		Geometry:     models.MultiPolygon{MultiPolygon: merged},
		ComputedAt:   now,
	}, nil
}

// unionFind is a path-compressing disjoint-set over member indices.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

// union attaches the larger root index under the smaller so component
// roots are stable across runs.
func (u *unionFind) union(i, j int) {
	ri, rj := u.find(i), u.find(j)
	if ri == rj {
		return
	}
	if ri < rj {
		u.parent[rj] = ri
	} else {
		u.parent[ri] = rj
	}
}
