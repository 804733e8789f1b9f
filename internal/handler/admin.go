package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kiuth/recruitment-api/internal/middleware"
	"github.com/kiuth/recruitment-api/internal/model"
	"github.com/kiuth/recruitment-api/internal/repository"
	"github.com/kiuth/recruitment-api/internal/service"
	"github.com/rs/zerolog/log"
)

// AdminHandler serves the review console
type AdminHandler struct {
	review *service.ReviewService
}

func NewAdminHandler(review *service.ReviewService) *AdminHandler {
	return &AdminHandler{review: review}
}

func filterFromQuery(c *gin.Context) repository.ApplicationFilter {
	return repository.ApplicationFilter{
		Search:     c.Query("search"),
		Status:     c.Query("status"),
		Department: c.Query("department"),
		Sort:       c.Query("sort"),
		Order:      c.Query("order"),
	}
}

// List handles GET /admin/applications
func (h *AdminHandler) List(c *gin.Context) {
	apps, err := h.review.List(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		h.fail(c, err, "Failed to list applications")
		return
	}
	if apps == nil {
		apps = []model.Application{}
	}
	c.JSON(http.StatusOK, apps)
}

// Export handles GET /admin/applications/export
func (h *AdminHandler) Export(c *gin.Context) {
	var buf bytes.Buffer
	n, err := h.review.ExportCSV(c.Request.Context(), filterFromQuery(c), &buf)
	if err != nil {
		h.fail(c, err, "Failed to export applications")
		return
	}

	log.Info().Int("rows", n).Str("admin", middleware.GetEmail(c)).Msg("Applications exported")

	filename := fmt.Sprintf("kiuth_applications_%s.csv", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// History handles GET /admin/applications/:id/history
func (h *AdminHandler) History(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid application ID"})
		return
	}

	history, err := h.review.History(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to load history")
		return
	}
	c.JSON(http.StatusOK, history)
}

// UpdateStatus handles PUT /admin/applications/:id/status
func (h *AdminHandler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid application ID"})
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status is required"})
		return
	}

	app, stats, err := h.review.UpdateStatus(c.Request.Context(), id, req.Status, middleware.GetEmail(c))
	if err != nil {
		h.fail(c, err, "Failed to update status")
		return
	}

	c.JSON(http.StatusOK, gin.H{"application": app, "stats": stats})
}

// BulkStatus handles POST /admin/applications/bulk-status
func (h *AdminHandler) BulkStatus(c *gin.Context) {
	var req struct {
		IDs     []uuid.UUID `json:"ids"`
		Status  string      `json:"status"`
		Confirm bool        `json:"confirm"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	updated, stats, err := h.review.BulkUpdate(c.Request.Context(), req.IDs, req.Status, req.Confirm, middleware.GetEmail(c))
	if err != nil {
		h.fail(c, err, "Failed to update applications")
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": updated, "count": len(updated), "stats": stats})
}

// Stats handles GET /admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.review.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to load stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *AdminHandler) fail(c *gin.Context, err error, msg string) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Message})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Application not found"})
	default:
		log.Error().Err(err).Msg(msg)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
