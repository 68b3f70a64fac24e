package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landview/parcel-engine/internal/logger"
)

func setupParcelRouter(t *testing.T) *gin.Engine {
	t.Helper()

	log := logger.New("test")
	handler := NewParcelHandler(fixtureService(t))
	router := newTestRouter(log)

	parcels := router.Group("/parcels")
	{
		parcels.GET("/search", handler.Search)
		parcels.GET("/bounds", handler.Bounds)
		parcels.GET("/county/:county", handler.ByCounty)
	}
	return router
}

func TestParcelSearch_Found(t *testing.T) {
	router := setupParcelRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/parcels/search?lat=41.005&lng=-99.995", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var parcel ParcelData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parcel))
	assert.Equal(t, int64(1), parcel.ID)
	assert.Equal(t, "Lincoln", parcel.County)
	assert.Equal(t, "11-111", parcel.ParcelNumber)
	assert.Equal(t, "JANE DOE", parcel.OwnerKey)
}

func TestParcelSearch_NoParcel(t *testing.T) {
	router := setupParcelRouter(t)

	// A point with no parcel is a 200 with a null body.
	req := httptest.NewRequest(http.MethodGet, "/parcels/search?lat=10.0&lng=10.0", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", w.Body.String())
}

func TestParcelSearch_MissingParams(t *testing.T) {
	router := setupParcelRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/parcels/search", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParcelSearch_OutOfRangeCoordinates(t *testing.T) {
	router := setupParcelRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/parcels/search?lat=95&lng=-99.9", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParcelBounds(t *testing.T) {
	router := setupParcelRouter(t)

	req := httptest.NewRequest(http.MethodGet,
		"/parcels/bounds?minLng=-101.5&minLat=40.5&maxLng=-99.5&maxLat=42.5", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp ParcelListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)
	assert.Len(t, resp.Parcels, 3)
}

func TestParcelBounds_Limit(t *testing.T) {
	router := setupParcelRouter(t)

	req := httptest.NewRequest(http.MethodGet,
		"/parcels/bounds?minLng=-101.5&minLat=40.5&maxLng=-99.5&maxLat=42.5&limit=1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp ParcelListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}

func TestParcelBounds_InvertedCorners(t *testing.T) {
	router := setupParcelRouter(t)

	req := httptest.NewRequest(http.MethodGet,
		"/parcels/bounds?minLng=-99.5&minLat=40.5&maxLng=-101.5&maxLat=42.5", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParcelBounds_InvalidLimit(t *testing.T) {
	router := setupParcelRouter(t)

	req := httptest.NewRequest(http.MethodGet,
		"/parcels/bounds?minLng=-101.5&minLat=40.5&maxLng=-99.5&maxLat=42.5&limit=5000", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParcelByCounty(t *testing.T) {
	router := setupParcelRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/parcels/county/Lincoln", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp ParcelListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	for _, p := range resp.Parcels {
		assert.Equal(t, "Lincoln", p.County)
	}
}

func TestParcelByCounty_Unknown(t *testing.T) {
	router := setupParcelRouter(t)

	// An unknown county is an empty list, not an error.
	req := httptest.NewRequest(http.MethodGet, "/parcels/county/Nowhere", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp ParcelListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count)
}
