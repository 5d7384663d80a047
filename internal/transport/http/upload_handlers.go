package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Will-23-K/chatsphere/internal/files"
	"github.com/Will-23-K/chatsphere/internal/proto"
)

// UploadHandlers accepts file uploads and hands them to the blob store.
type UploadHandlers struct {
	files    *files.Service
	maxBytes int64
	log      *zerolog.Logger
}

// NewUploadHandlers creates a new upload handlers instance.
func NewUploadHandlers(fileService *files.Service, maxBytes int64, logger *zerolog.Logger) *UploadHandlers {
	return &UploadHandlers{
		files:    fileService,
		maxBytes: maxBytes,
		log:      logger,
	}
}

// UploadResponse is returned on a successful upload.
type UploadResponse struct {
	Success bool              `json:"success"`
	File    proto.FilePayload `json:"file"`
}

// Upload stores one multipart file and returns its descriptor. The client
// references the descriptor in a later send_message frame.
// POST /api/upload
func (h *UploadHandlers) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+4096)

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "no file uploaded"})
		return
	}

	src, err := header.Open()
	if err != nil {
		h.log.Error().Err(err).Msg("failed to open uploaded file")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "file upload failed"})
		return
	}
	defer src.Close()

	mediaType := header.Header.Get("Content-Type")
	info, err := h.files.Store(header.Filename, mediaType, header.Size, src)
	if err != nil {
		switch {
		case errors.Is(err, files.ErrFileTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "file too large"})
		case errors.Is(err, files.ErrInvalidType):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid file type"})
		default:
			h.log.Error().Err(err).Str("file", header.Filename).Msg("failed to store upload")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "file upload failed"})
		}
		return
	}

	// Absolute URL so clients can fetch it without knowing the server host.
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	url := scheme + "://" + c.Request.Host + info.URL

	h.log.Info().Str("file", info.Name).Int64("size", info.Size).Msg("file uploaded")
	c.JSON(http.StatusOK, UploadResponse{
		Success: true,
		File: proto.FilePayload{
			Name:      info.Name,
			MediaType: info.MediaType,
			Size:      info.Size,
			URL:       url,
		},
	})
}
