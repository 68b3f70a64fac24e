package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/landview/parcel-engine/internal/errors"
	"github.com/landview/parcel-engine/internal/services"
)

// OwnershipHandler handles ownership-group query HTTP requests.
type OwnershipHandler struct {
	service services.QueryService
}

// NewOwnershipHandler creates a new OwnershipHandler instance.
func NewOwnershipHandler(service services.QueryService) *OwnershipHandler {
	return &OwnershipHandler{service: service}
}

// OwnerSearchRequest represents the query parameters for owner search.
type OwnerSearchRequest struct {
	Query string `form:"q" binding:"required"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// TopOwnersRequest represents the query parameters for the top-owners endpoint.
type TopOwnersRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// OwnerListResponse wraps owner summaries with a count.
type OwnerListResponse struct {
	Owners []services.OwnerSummary `json:"owners"`
	Count  int                     `json:"count"`
}

// Search handles GET /ownership/search.
// The query is normalized with the same rules that produced the stored
// owner keys, so "Smith Family Trust LLC" finds the SMITH group.
func (h *OwnershipHandler) Search(c *gin.Context) {
	var req OwnerSearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	summaries, err := h.service.SearchOwners(c.Request.Context(), req.Query, req.Limit)
	if err != nil {
		if errors.Is(err, services.ErrEmptyQuery) || errors.Is(err, services.ErrInvalidLimit) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to search owners", err)
		return
	}

	c.JSON(http.StatusOK, OwnerListResponse{Owners: summaries, Count: len(summaries)})
}

// Group handles GET /ownership/group/:key.
// It returns the full statewide group, combined geometry included, or a
// JSON null when the key has no group.
func (h *OwnershipHandler) Group(c *gin.Context) {
	group, err := h.service.GroupByOwnerKey(c.Request.Context(), c.Param("key"))
	if err != nil {
		if errors.Is(err, services.ErrEmptyQuery) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to load ownership group", err)
		return
	}

	if group == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, group)
}

// Top handles GET /ownership/top.
func (h *OwnershipHandler) Top(c *gin.Context) {
	var req TopOwnersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	summaries, err := h.service.TopOwners(c.Request.Context(), req.Limit)
	if err != nil {
		if errors.Is(err, services.ErrInvalidLimit) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to list top owners", err)
		return
	}

	c.JSON(http.StatusOK, OwnerListResponse{Owners: summaries, Count: len(summaries)})
}
