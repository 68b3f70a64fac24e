package models

import "time"

// OwnershipGroup is the statewide union of all parcels sharing one
// canonical owner key, irrespective of spatial adjacency. The combined
// geometry may be spatially disjoint. Fully recomputed each batch run;
// never patched incrementally.
type OwnershipGroup struct {
	OwnerKey         string       `json:"owner_key"`
	ParcelIDs        []int64      `json:"parcel_ids"`
	ParcelCount      int          `json:"parcel_count"`
	TotalAreaSqm     float64      `json:"total_area_sqm"`
	CombinedGeometry MultiPolygon `json:"combined_geometry"`
	RulesVersion     int          `json:"rules_version"`
	ComputedAt       time.Time    `json:"computed_at"`
}
