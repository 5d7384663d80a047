package files

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/Will-23-K/chatsphere/internal/store"
)

var (
	// ErrFileTooLarge is returned when an upload exceeds the byte cap.
	ErrFileTooLarge = errors.New("file too large")
	// ErrInvalidType is returned for media types outside the allow-list.
	ErrInvalidType = errors.New("invalid file type")
)

// allowedTypes lists the media types accepted for upload: images, PDFs and
// plain documents.
var allowedTypes = map[string]struct{}{
	"image/jpeg":         {},
	"image/jpg":          {},
	"image/png":          {},
	"image/gif":          {},
	"image/webp":         {},
	"application/pdf":    {},
	"text/plain":         {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
}

// Service is a local-disk blob store. Stored files are served statically
// under URLBase by the HTTP server.
type Service struct {
	dir      string
	urlBase  string
	maxBytes int64
}

// NewService creates the upload directory if needed.
func NewService(dir, urlBase string, maxBytes int64) (*Service, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Service{dir: dir, urlBase: urlBase, maxBytes: maxBytes}, nil
}

// Store writes the upload to disk under a collision-resistant name and
// returns the file descriptor with its retrieval URL path.
func (s *Service) Store(originalName, mediaType string, size int64, r io.Reader) (*store.FileInfo, error) {
	if size > s.maxBytes {
		return nil, ErrFileTooLarge
	}
	if _, ok := allowedTypes[mediaType]; !ok {
		return nil, ErrInvalidType
	}

	stored := fmt.Sprintf("file-%d-%d%s", time.Now().UnixMilli(), rand.Int63n(1_000_000_000), filepath.Ext(originalName))
	path := filepath.Join(s.dir, stored)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	// LimitReader guards against clients lying about the declared size.
	written, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write file: %w", err)
	}
	if written > s.maxBytes {
		os.Remove(path)
		return nil, ErrFileTooLarge
	}

	return &store.FileInfo{
		Name:      originalName,
		MediaType: mediaType,
		Size:      written,
		URL:       s.urlBase + "/" + stored,
	}, nil
}

// Dir returns the directory served statically by the HTTP layer.
func (s *Service) Dir() string { return s.dir }
