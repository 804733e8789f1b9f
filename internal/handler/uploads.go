package handler

import (
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kiuth/recruitment-api/internal/storage"
	"github.com/rs/zerolog/log"
)

var uploadContentTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// UploadsHandler serves stored files at their public URLs
type UploadsHandler struct {
	store storage.Store
}

func NewUploadsHandler(store storage.Store) *UploadsHandler {
	return &UploadsHandler{store: store}
}

// Serve handles GET /uploads/*name
func (h *UploadsHandler) Serve(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("name"), "/")

	r, err := h.store.Open(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) || errors.Is(err, storage.ErrInvalidName) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}
		log.Error().Err(err).Str("name", name).Msg("Failed to open upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}
	defer r.Close()

	contentType, ok := uploadContentTypes[strings.ToLower(path.Ext(name))]
	if !ok {
		contentType = "application/octet-stream"
	}

	c.DataFromReader(http.StatusOK, -1, contentType, r, map[string]string{
		"Cache-Control":          "public, max-age=86400",
		"X-Content-Type-Options": "nosniff",
	})
}
