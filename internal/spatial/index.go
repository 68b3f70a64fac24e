// Package spatial provides the in-memory read-only index backing the
// query service and the tile encoder. Parcels, aggregated clusters and
// ownership groups are loaded as one immutable snapshot; every spatial
// lookup goes through an R-tree bounding-box prefilter and never falls
// back to a full scan.
package spatial

import (
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/tidwall/rtree"

	"github.com/landview/parcel-engine/internal/geometry"
	"github.com/landview/parcel-engine/internal/models"
)

// Index is an immutable snapshot of parcels, clusters and ownership
// groups with R-tree indexes over the geometries. Safe for concurrent
// readers; a new snapshot replaces the whole Index.
type Index struct {
	parcels   []models.Parcel
	clusters  []models.AggregatedCluster
	groups    map[string]*models.OwnershipGroup
	ownerKeys []string

	parcelTree  rtree.RTreeG[int]
	clusterTree rtree.RTreeG[int]
	byCounty    map[string][]int
}

// NewIndex builds an index snapshot from the given derived state.
func NewIndex(parcels []models.Parcel, clusters []models.AggregatedCluster, groups []models.OwnershipGroup) *Index {
	idx := &Index{
		parcels:  parcels,
		clusters: clusters,
		groups:   make(map[string]*models.OwnershipGroup, len(groups)),
		byCounty: make(map[string][]int),
	}

	for i := range parcels {
		b := parcels[i].Geometry.Bound()
		idx.parcelTree.Insert([2]float64{b.Min[0], b.Min[1]}, [2]float64{b.Max[0], b.Max[1]}, i)
		idx.byCounty[parcels[i].County] = append(idx.byCounty[parcels[i].County], i)
	}

	for i := range clusters {
		b := clusters[i].Geometry.Bound()
		idx.clusterTree.Insert([2]float64{b.Min[0], b.Min[1]}, [2]float64{b.Max[0], b.Max[1]}, i)
	}

	for i := range groups {
		idx.groups[groups[i].OwnerKey] = &groups[i]
		idx.ownerKeys = append(idx.ownerKeys, groups[i].OwnerKey)
	}
	sort.Strings(idx.ownerKeys)

	return idx
}

// ParcelCount returns the number of parcels in the snapshot.
func (idx *Index) ParcelCount() int { return len(idx.parcels) }

// ClusterCount returns the number of aggregated clusters in the snapshot.
func (idx *Index) ClusterCount() int { return len(idx.clusters) }

// PointQuery returns the parcel whose geometry contains the point, or
// nil when no parcel does. Candidates come from the R-tree; the exact
// containment test runs only on them.
func (idx *Index) PointQuery(lon, lat float64) *models.Parcel {
	pt := orb.Point{lon, lat}

	var found *models.Parcel
	idx.parcelTree.Search([2]float64{lon, lat}, [2]float64{lon, lat},
		func(min, max [2]float64, i int) bool {
			if planar.MultiPolygonContains(idx.parcels[i].Geometry.MultiPolygon, pt) {
				found = &idx.parcels[i]
				return false
			}
			return true
		})
	return found
}

// BBoxQuery returns up to limit parcels whose geometry intersects the
// bounding box. Candidates come from the R-tree; the exact
// polygon-box intersection test runs only on them. An empty result is
// valid, not an error.
func (idx *Index) BBoxQuery(bound orb.Bound, limit int) []models.Parcel {
	out := make([]models.Parcel, 0)
	idx.parcelTree.Search(
		[2]float64{bound.Min[0], bound.Min[1]},
		[2]float64{bound.Max[0], bound.Max[1]},
		func(min, max [2]float64, i int) bool {
			if !geometry.IntersectsBound(idx.parcels[i].Geometry.MultiPolygon, bound) {
				return true
			}
			out = append(out, idx.parcels[i])
			return limit <= 0 || len(out) < limit
		})
	return out
}

// ClustersInBound returns up to limit aggregated clusters whose bounds
// intersect the bounding box.
func (idx *Index) ClustersInBound(bound orb.Bound, limit int) []models.AggregatedCluster {
	out := make([]models.AggregatedCluster, 0)
	idx.clusterTree.Search(
		[2]float64{bound.Min[0], bound.Min[1]},
		[2]float64{bound.Max[0], bound.Max[1]},
		func(min, max [2]float64, i int) bool {
			out = append(out, idx.clusters[i])
			return limit <= 0 || len(out) < limit
		})
	return out
}

// ByCounty returns up to limit parcels in the given county, ordered by
// snapshot position (ingestion order).
func (idx *Index) ByCounty(county string, limit int) []models.Parcel {
	indices := idx.byCounty[county]
	out := make([]models.Parcel, 0, len(indices))
	for _, i := range indices {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, idx.parcels[i])
	}
	return out
}

// ByOwnerKey returns the statewide ownership group for the canonical
// key, or nil when none exists.
func (idx *Index) ByOwnerKey(key string) *models.OwnershipGroup {
	return idx.groups[key]
}

// OwnerKeys returns all canonical owner keys, sorted. Used by the
// similar-owner search.
func (idx *Index) OwnerKeys() []string { return idx.ownerKeys }

// MatchOwners returns owner keys containing the (already normalized)
// query as a substring, plus keys accepted by the fuzzy match function.
// Substring hits rank before fuzzy hits; keys stay sorted within each
// tier because ownerKeys is sorted.
func (idx *Index) MatchOwners(normalized string, limit int, fuzzy func(key string) bool) []string {
	if normalized == "" {
		return nil
	}

	var substr, fuzzed []string
	for _, key := range idx.ownerKeys {
		if strings.Contains(key, normalized) {
			substr = append(substr, key)
		} else if fuzzy != nil && fuzzy(key) {
			fuzzed = append(fuzzed, key)
		}
	}

	out := append(substr, fuzzed...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
