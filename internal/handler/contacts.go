package handler

import (
	"context"
	"net/http"
	"net/mail"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kiuth/recruitment-api/internal/model"
	"github.com/kiuth/recruitment-api/internal/service"
	"github.com/rs/zerolog/log"
)

// ContactStore persists contact form messages
type ContactStore interface {
	Create(ctx context.Context, m *model.ContactMessage, notify *model.Notification) (*model.ContactMessage, error)
	List(ctx context.Context, status string) ([]model.ContactMessage, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*model.ContactMessage, error)
}

type ContactHandler struct {
	contacts    ContactStore
	inbox       string
	maxAttempts int
}

// NewContactHandler forwards each message to inbox when one is configured
func NewContactHandler(contacts ContactStore, inbox string, maxAttempts int) *ContactHandler {
	return &ContactHandler{contacts: contacts, inbox: inbox, maxAttempts: maxAttempts}
}

// Create handles POST /contact
func (h *ContactHandler) Create(c *gin.Context) {
	var msg model.ContactMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	msg.Name = strings.TrimSpace(msg.Name)
	msg.Email = strings.TrimSpace(msg.Email)
	msg.Message = strings.TrimSpace(msg.Message)
	if msg.Name == "" || msg.Email == "" || msg.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name, email and message are required"})
		return
	}
	if _, err := mail.ParseAddress(msg.Email); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please enter a valid email address"})
		return
	}

	var notify *model.Notification
	if h.inbox != "" {
		subject, body, err := service.ContactEmail(&msg)
		if err != nil {
			log.Error().Err(err).Msg("Failed to render contact email")
		} else {
			notify = &model.Notification{
				Channel:     model.ChannelEmail,
				Recipient:   h.inbox,
				Subject:     subject,
				Body:        body,
				MaxAttempts: h.maxAttempts,
			}
		}
	}

	created, err := h.contacts.Create(c.Request.Context(), &msg, notify)
	if err != nil {
		log.Error().Err(err).Msg("Failed to save contact message")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		return
	}

	c.JSON(http.StatusCreated, created)
}

// List handles GET /admin/contacts
func (h *ContactHandler) List(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !model.ValidContactStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status must be one of New, Read, Replied"})
		return
	}

	msgs, err := h.contacts.List(c.Request.Context(), status)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list contact messages")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list messages"})
		return
	}
	if msgs == nil {
		msgs = []model.ContactMessage{}
	}

	c.JSON(http.StatusOK, msgs)
}

// UpdateStatus handles PUT /admin/contacts/:id/status
func (h *ContactHandler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message ID"})
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !model.ValidContactStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status must be one of New, Read, Replied"})
		return
	}

	updated, err := h.contacts.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		log.Error().Err(err).Msg("Failed to update contact message")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update message"})
		return
	}
	if updated == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
		return
	}

	c.JSON(http.StatusOK, updated)
}
