package handlers

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"

	"github.com/landview/parcel-engine/internal/logger"
	"github.com/landview/parcel-engine/internal/middleware"
	"github.com/landview/parcel-engine/internal/models"
	"github.com/landview/parcel-engine/internal/services"
	"github.com/landview/parcel-engine/internal/spatial"
)

// Test fixtures: three parcels across two counties, one aggregated
// cluster, and one ownership group per owner.

func fixtureSquare(lon, lat, sizeDeg float64) models.MultiPolygon {
	return models.MultiPolygon{MultiPolygon: orb.MultiPolygon{
		orb.Polygon{orb.Ring{
			{lon, lat},
			{lon + sizeDeg, lat},
			{lon + sizeDeg, lat + sizeDeg},
			{lon, lat + sizeDeg},
			{lon, lat},
		}},
	}}
}

func fixtureIndex(t *testing.T) *spatial.Index {
	t.Helper()

	parcels := []models.Parcel{
		{
			ID:                   1,
			County:               "Lincoln",
			ExternalParcelNumber: "11-111",
			OwnerRaw:             "Doe, Jane",
			OwnerKey:             "JANE DOE",
			AreaSqm:              2000,
			Geometry:             fixtureSquare(-100.0, 41.0, 0.01),
		},
		{
			ID:                   2,
			County:               "Lincoln",
			ExternalParcelNumber: "11-222",
			OwnerRaw:             "John Smith",
			OwnerKey:             "JOHN SMITH",
			AreaSqm:              3000,
			Geometry:             fixtureSquare(-100.5, 41.5, 0.01),
		},
		{
			ID:                   3,
			County:               "Custer",
			ExternalParcelNumber: "22-333",
			OwnerRaw:             "Acme Farms LLC",
			OwnerKey:             "ACME",
			AreaSqm:              10000,
			Geometry:             fixtureSquare(-101.0, 42.0, 0.01),
		},
	}
	clusters := []models.AggregatedCluster{
		{
			ID:           1,
			OwnerKey:     "ACME",
			County:       "Custer",
			ParcelIDs:    []int64{3},
			ParcelCount:  1,
			TotalAreaSqm: 10000,
			Geometry:     fixtureSquare(-101.0, 42.0, 0.01),
		},
	}
	groups := []models.OwnershipGroup{
		{OwnerKey: "ACME", ParcelIDs: []int64{3}, ParcelCount: 1, TotalAreaSqm: 10000},
		{OwnerKey: "JANE DOE", ParcelIDs: []int64{1}, ParcelCount: 1, TotalAreaSqm: 2000},
		{OwnerKey: "JOHN SMITH", ParcelIDs: []int64{2}, ParcelCount: 1, TotalAreaSqm: 3000},
	}

	return spatial.NewIndex(parcels, clusters, groups)
}

func fixtureService(t *testing.T) services.QueryService {
	t.Helper()
	return services.NewQueryService(fixtureIndex(t), logger.New("test"))
}

// newTestRouter creates a gin engine with the standard middleware chain.
func newTestRouter(log *logger.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	return router
}
