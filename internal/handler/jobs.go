package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kiuth/recruitment-api/internal/model"
	"github.com/kiuth/recruitment-api/internal/repository"
	"github.com/rs/zerolog/log"
)

// JobStore is the catalog repository
type JobStore interface {
	List(ctx context.Context, filter repository.JobFilter) ([]model.Job, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Job, error)
	Create(ctx context.Context, j *model.Job) (*model.Job, error)
	Update(ctx context.Context, j *model.Job) (*model.Job, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type JobHandler struct {
	jobs JobStore
}

func NewJobHandler(jobs JobStore) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// ListJobs handles GET /jobs and GET /admin/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	filter := repository.JobFilter{
		Department: c.Query("department"),
		Type:       c.Query("type"),
		Search:     c.Query("search"),
	}
	if strings.HasPrefix(c.FullPath(), "/admin/") {
		filter.IncludeInactive = c.Query("active") != "true"
	}

	jobs, err := h.jobs.List(c.Request.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list jobs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}

	if jobs == nil {
		jobs = []model.Job{}
	}

	c.JSON(http.StatusOK, jobs)
}

// GetJob handles GET /jobs/:id. Inactive jobs are hidden from the public.
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}

	job, err := h.jobs.FindByID(c.Request.Context(), jobID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get job"})
		return
	}
	if job == nil || !job.IsActive {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// CreateJob handles POST /admin/jobs. New jobs are active unless the body says otherwise.
func (h *JobHandler) CreateJob(c *gin.Context) {
	job := model.Job{IsActive: true}
	if err := c.ShouldBindJSON(&job); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if msg := validateJob(&job); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	created, err := h.jobs.Create(c.Request.Context(), &job)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save job"})
		return
	}

	c.JSON(http.StatusCreated, created)
}

// UpdateJob handles PUT /admin/jobs/:id
func (h *JobHandler) UpdateJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}

	var job model.Job
	if err := c.ShouldBindJSON(&job); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if msg := validateJob(&job); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	job.ID = jobID

	updated, err := h.jobs.Update(c.Request.Context(), &job)
	if err != nil {
		log.Error().Err(err).Msg("Failed to update job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update job"})
		return
	}
	if updated == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DeleteJob handles DELETE /admin/jobs/:id. Jobs are deactivated, never
// removed, since applications keep pointing at them.
func (h *JobHandler) DeleteJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}

	if err := h.jobs.Deactivate(c.Request.Context(), jobID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		log.Error().Err(err).Msg("Failed to deactivate job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate job"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deactivated": true})
}

func validateJob(j *model.Job) string {
	j.Title = strings.TrimSpace(j.Title)
	if j.Title == "" {
		return "Title is required"
	}
	if j.Type == "" {
		j.Type = model.JobTypeClinical
	}
	if !model.ValidJobType(j.Type) {
		return "Type must be one of Clinical, Non-Clinical, Academic"
	}
	return ""
}
