package handler

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kiuth/recruitment-api/internal/model"
	"github.com/kiuth/recruitment-api/internal/service"
	"github.com/rs/zerolog/log"
)

// RelayHandler serves the upload, email and SMS relay endpoints. Each keeps
// the response envelope the portal's browser client already understands.
type RelayHandler struct {
	uploads *service.UploadService
	mail    service.MailSender
	sms     service.SMSSender
}

func NewRelayHandler(uploads *service.UploadService, mail service.MailSender, sms service.SMSSender) *RelayHandler {
	return &RelayHandler{uploads: uploads, mail: mail, sms: sms}
}

// Upload handles POST /relay/upload
func (h *RelayHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "No file received."})
		return
	}
	defer file.Close()

	kind := c.PostForm("kind")
	switch kind {
	case "":
		kind = model.UploadKindDocument
	case model.UploadKindDocument, model.UploadKindPassport:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Unknown upload kind."})
		return
	}

	up, err := h.uploads.Store(c.Request.Context(), kind, header.Filename, file)
	if err != nil {
		var upErr *service.UploadError
		if errors.As(err, &upErr) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": upErr.Message})
			return
		}
		log.Error().Err(err).Str("filename", header.Filename).Msg("Failed to store upload")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to save file on server."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "File uploaded successfully.",
		"url":     up.URL,
		"path":    up.Path,
	})
}

type emailRequest struct {
	To         string `json:"to"`
	Subject    string `json:"subject"`
	Message    string `json:"message"`
	Attachment *struct {
		Name string `json:"name"`
		Data string `json:"data"`
	} `json:"attachment"`
}

// Email handles POST /relay/email
func (h *RelayHandler) Email(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.To) == "" || strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Missing required fields: to, subject, message"})
		return
	}

	msg := service.MailMessage{To: req.To, Subject: req.Subject, HTML: req.Message}
	if req.Attachment != nil && req.Attachment.Data != "" {
		data, err := base64.StdEncoding.DecodeString(req.Attachment.Data)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Attachment data must be base64"})
			return
		}
		name := req.Attachment.Name
		if name == "" {
			name = "attachment"
		}
		msg.Attachments = append(msg.Attachments, service.Attachment{Name: name, Data: data})
	}

	if err := h.mail.Send(c.Request.Context(), msg); err != nil {
		log.Error().Err(err).Str("to", req.To).Msg("Email relay failed")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Message could not be sent."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Email sent successfully"})
}

// SMS handles POST /relay/sms. The gateway's answer is passed through.
func (h *RelayHandler) SMS(c *gin.Context) {
	var req service.SMSMessage
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.To) == "" || strings.TrimSpace(req.Body) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Missing required fields: to, body"})
		return
	}

	resp, err := h.sms.Send(c.Request.Context(), req)
	if err != nil {
		log.Error().Err(err).Msg("SMS relay failed")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "SMS gateway unreachable"})
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, resp.Body)
}

// Options answers preflight requests that reach the handler
func (h *RelayHandler) Options(c *gin.Context) {
	c.Status(http.StatusOK)
}

// MethodNotAllowed is installed as the router's NoMethod handler
func MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"status": "error", "message": "Method not allowed"})
}
