package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/landview/parcel-engine/internal/errors"
	"github.com/landview/parcel-engine/internal/middleware"
	"github.com/landview/parcel-engine/internal/models"
	"github.com/landview/parcel-engine/internal/services"
)

// ParcelHandler handles parcel query HTTP requests.
type ParcelHandler struct {
	service services.QueryService
}

// NewParcelHandler creates a new ParcelHandler instance.
func NewParcelHandler(service services.QueryService) *ParcelHandler {
	return &ParcelHandler{service: service}
}

// SearchRequest represents the query parameters for the point-search endpoint.
type SearchRequest struct {
	Lat float64 `form:"lat" binding:"required,min=-90,max=90"`
	Lng float64 `form:"lng" binding:"required,min=-180,max=180"`
}

// BoundsRequest represents the query parameters for the bounds endpoint.
type BoundsRequest struct {
	MinLng float64 `form:"minLng" binding:"min=-180,max=180"`
	MinLat float64 `form:"minLat" binding:"min=-90,max=90"`
	MaxLng float64 `form:"maxLng" binding:"min=-180,max=180"`
	MaxLat float64 `form:"maxLat" binding:"min=-90,max=90"`
	Limit  int     `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// CountyRequest represents the query parameters for the by-county endpoint.
type CountyRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// ParcelData is the parcel DTO returned by the query endpoints.
type ParcelData struct {
	ID           int64               `json:"id"`
	County       string              `json:"county"`
	ParcelNumber string              `json:"parcel_number,omitempty"`
	Owner        string              `json:"owner,omitempty"`
	OwnerKey     string              `json:"owner_key,omitempty"`
	AreaSqm      float64             `json:"area_sqm"`
	Geometry     models.MultiPolygon `json:"geometry"`
}

// ParcelListResponse wraps a list of parcels with a count.
type ParcelListResponse struct {
	Parcels []ParcelData `json:"parcels"`
	Count   int          `json:"count"`
}

// Search handles GET /parcels/search.
// It returns the parcel containing the given point, or a JSON null when
// no parcel does. Absence of data is not an error.
func (h *ParcelHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	parcel, err := h.service.ParcelAtPoint(c.Request.Context(), req.Lat, req.Lng)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCoordinates) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to query parcel", err)
		return
	}

	if parcel == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, mapParcel(parcel))
}

// Bounds handles GET /parcels/bounds.
// It returns all parcels intersecting the bounding box, capped by limit.
func (h *ParcelHandler) Bounds(c *gin.Context) {
	var req BoundsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	log := middleware.GetLogger(c)
	if log != nil {
		log.Debug("Processing bounds request", map[string]interface{}{
			"min_lng": req.MinLng,
			"min_lat": req.MinLat,
			"max_lng": req.MaxLng,
			"max_lat": req.MaxLat,
		})
	}

	parcels, err := h.service.ParcelsInBounds(
		c.Request.Context(), req.MinLng, req.MinLat, req.MaxLng, req.MaxLat, req.Limit)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCoordinates) ||
			errors.Is(err, services.ErrInvalidBounds) ||
			errors.Is(err, services.ErrInvalidLimit) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to query parcels in bounds", err)
		return
	}

	c.JSON(http.StatusOK, listResponse(parcels))
}

// ByCounty handles GET /parcels/county/:county.
func (h *ParcelHandler) ByCounty(c *gin.Context) {
	var req CountyRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	parcels, err := h.service.ParcelsByCounty(c.Request.Context(), c.Param("county"), req.Limit)
	if err != nil {
		if errors.Is(err, services.ErrEmptyQuery) || errors.Is(err, services.ErrInvalidLimit) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to query parcels by county", err)
		return
	}

	c.JSON(http.StatusOK, listResponse(parcels))
}

// bindError maps a gin binding failure to the standard error envelope.
func bindError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		apierrors.ValidationError(c, validationErrors)
		return
	}
	apierrors.BadRequest(c, "Invalid query parameters", nil)
}

func mapParcel(p *models.Parcel) ParcelData {
	return ParcelData{
		ID:           p.ID,
		County:       p.County,
		ParcelNumber: p.ExternalParcelNumber,
		Owner:        p.OwnerRaw,
		OwnerKey:     p.OwnerKey,
		AreaSqm:      p.AreaSqm,
		Geometry:     p.Geometry,
	}
}

func listResponse(parcels []models.Parcel) ParcelListResponse {
	out := make([]ParcelData, 0, len(parcels))
	for i := range parcels {
		out = append(out, mapParcel(&parcels[i]))
	}
	return ParcelListResponse{Parcels: out, Count: len(out)}
}
