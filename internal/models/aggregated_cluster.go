package models

import "time"

// AggregatedCluster is one spatially-contiguous group of same-owner
// parcels within a single county. Every parcel belongs to exactly one
// cluster per (county, owner_key) partition; any two members are linked
// by a chain of pairwise boundary distances within the adjacency
// tolerance. A county's clusters are replaced atomically on reprocess.
type AggregatedCluster struct {
	ID           int64        `json:"id"`
	OwnerKey     string       `json:"owner_key"`
	County       string       `json:"county"`
	ParcelIDs    []int64      `json:"parcel_ids"`
	ParcelCount  int          `json:"parcel_count"`
	TotalAreaSqm float64      `json:"total_area_sqm"`
	Geometry     MultiPolygon `json:"geometry"`
	ComputedAt   time.Time    `json:"computed_at"`
}

// CountyRunStatus values for the per-county batch progress marker.
const (
	RunPending    = "pending"
	RunProcessing = "processing"
	RunCompleted  = "completed"
)

// CountyRun is the durable progress marker for resumable batch
// processing. Completion is recorded before the next county starts, so
// an interrupted statewide run resumes without reprocessing finished
// counties.
type CountyRun struct {
	County            string     `json:"county"`
	Status            string     `json:"status"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	ParcelsProcessed  int        `json:"parcels_processed"`
	ClustersWritten   int        `json:"clusters_written"`
	ParcelsRepaired   int        `json:"parcels_repaired"`
	ParcelsIsolated   int        `json:"parcels_isolated"`
}
