package models

import (
	"time"
)

// Parcel is one raw land unit as supplied by the ingestion source.
// Parcels are immutable after ingestion; OwnershipGroup and
// AggregatedCluster are derived from them and recomputable at any time.
type Parcel struct {
	ID                   int64        `json:"id"`
	County               string       `json:"county"`
	ExternalParcelNumber string       `json:"external_parcel_number"`
	OwnerRaw             string       `json:"owner_raw"`
	OwnerKey             string       `json:"owner_key"`
	AreaSqm              float64      `json:"area_sqm"`
	Geometry             MultiPolygon `json:"geometry"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}
