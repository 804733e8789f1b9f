package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kiuth/recruitment-api/internal/middleware"
	"github.com/kiuth/recruitment-api/internal/repository"
	"github.com/kiuth/recruitment-api/internal/service"
	"github.com/kiuth/recruitment-api/internal/slip"
	"github.com/kiuth/recruitment-api/internal/wizard"
	"github.com/rs/zerolog/log"
)

const idempotencyHeader = "Idempotency-Key"

type ApplicationHandler struct {
	submissions *service.SubmissionService
	status      *service.StatusService
	slips       service.SlipRenderer
}

func NewApplicationHandler(submissions *service.SubmissionService, status *service.StatusService, slips service.SlipRenderer) *ApplicationHandler {
	return &ApplicationHandler{submissions: submissions, status: status, slips: slips}
}

// Recruitment handles GET /recruitment
func (h *ApplicationHandler) Recruitment(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"open":     h.submissions.RecruitmentOpen(),
		"deadline": h.submissions.Deadline(),
	})
}

// Validate handles POST /applications/validate/:step
func (h *ApplicationHandler) Validate(c *gin.Context) {
	n, err := strconv.Atoi(c.Param("step"))
	step := wizard.Step(n)
	if err != nil || !step.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid step"})
		return
	}

	var form wizard.Form
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.submissions.ValidateStep(c.Request.Context(), &form, step); err != nil {
		var stepErr *wizard.StepError
		if errors.As(err, &stepErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": stepErr.Message, "step": int(stepErr.Step)})
			return
		}
		log.Error().Err(err).Msg("Failed to validate step")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate step"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true, "step": int(step)})
}

// Submit handles POST /applications
func (h *ApplicationHandler) Submit(c *gin.Context) {
	var form wizard.Form
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result, err := h.submissions.Submit(c.Request.Context(), &form, c.GetHeader(idempotencyHeader))
	if err != nil {
		var stepErr *wizard.StepError
		switch {
		case errors.As(err, &stepErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": stepErr.Message, "step": int(stepErr.Step)})
		case errors.Is(err, service.ErrRecruitmentClosed):
			c.JSON(http.StatusForbidden, gin.H{"error": "Recruitment is closed"})
		case errors.Is(err, service.ErrUploadMissing):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Your uploaded files could not be found. Please upload them again.", "step": int(wizard.StepUploads)})
		default:
			log.Error().Err(err).Str("email", form.Email).Msg("Failed to submit application")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "We could not save your application. Please try again."})
		}
		return
	}

	code := http.StatusCreated
	if result.Duplicate {
		code = http.StatusOK
	}
	c.JSON(code, gin.H{
		"application":      result.Application,
		"reference_number": result.Application.ReferenceNumber,
		"duplicate":        result.Duplicate,
	})
}

// Status handles GET /status/:reference
func (h *ApplicationHandler) Status(c *gin.Context) {
	view, err := h.status.ByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.lookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Slip handles GET /status/:reference/slip
func (h *ApplicationHandler) Slip(c *gin.Context) {
	view, err := h.status.ByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.lookupError(c, err)
		return
	}

	pdf, err := h.slips.Render(c.Request.Context(), view.Application)
	if err != nil {
		log.Error().Err(err).Str("reference", view.Application.ReferenceNumber).Msg("Failed to render slip")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate slip"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+slip.FileName(view.Application.ReferenceNumber)+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// MyApplication handles GET /me/application for the signed-in applicant
func (h *ApplicationHandler) MyApplication(c *gin.Context) {
	if middleware.GetFirebaseUID(c) == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	email := middleware.GetEmail(c)
	if email == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Verify your email address to view your application"})
		return
	}

	view, err := h.status.ByEmail(c.Request.Context(), email)
	if err != nil {
		h.lookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ApplicationHandler) lookupError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Application not found"})
		return
	}
	log.Error().Err(err).Msg("Failed to look up application")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up application"})
}
