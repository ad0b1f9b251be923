// Package evidence validates and stores the photos and videos attached to reports.
package evidence

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Jwl06/civicledger360/models"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxBytes is the upload cap.
const DefaultMaxBytes int64 = 10 << 20

const thumbnailSize = 320

var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".gif":  true,
	".mp4":  true,
	".mov":  true,
	".avi":  true,
}

// Storage persists evidence objects and answers whether a locator it issued still resolves.
type Storage interface {
	// Save writes data under key and returns the public locator.
	Save(ctx context.Context, key, contentType string, data []byte) (string, error)
	// Exists reports whether the object behind url is present.
	Exists(ctx context.Context, url string) (bool, error)
	// Owns reports whether url was issued by this storage.
	Owns(url string) bool
}

// File describes a stored upload.
type File struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	ContentType  string `json:"contentType"`
}

// Validate checks size, extension, the declared type and the sniffed content type.
// It returns the sniffed type.
func Validate(filename, declaredType string, content []byte, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if len(content) == 0 {
		return "", models.NewValidationError("evidence", "file is empty")
	}
	if int64(len(content)) > maxBytes {
		return "", models.NewValidationError("evidence", "file exceeds %s limit", sizeLabel(maxBytes))
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return "", models.NewValidationError("evidence", "only image and video files are allowed")
	}

	declared := strings.ToLower(strings.TrimSpace(declaredType))
	if declared != "" && declared != "application/octet-stream" && !isMedia(declared) {
		return "", models.NewValidationError("evidence", "only image and video files are allowed")
	}

	detected := mimetype.Detect(content)
	if !isMedia(detected.String()) {
		return "", models.NewValidationError("evidence", "file content is %s, not an image or video", detected.String())
	}
	return detected.String(), nil
}

func sizeLabel(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}

func isMedia(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") || strings.HasPrefix(contentType, "video/")
}

// Service accepts uploads into a Storage.
type Service struct {
	storage  Storage
	maxBytes int64
	log      *zap.Logger
}

// NewService wraps storage. maxBytes <= 0 uses DefaultMaxBytes.
func NewService(storage Storage, maxBytes int64, log *zap.Logger) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Service{storage: storage, maxBytes: maxBytes, log: log}
}

// MaxBytes is the configured upload cap.
func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// Upload validates r and stores it. Images also get a thumbnail; a thumbnail
// failure is logged and does not fail the upload.
func (s *Service) Upload(ctx context.Context, originalName, declaredType string, r io.Reader) (File, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return File{}, fmt.Errorf("failed to read upload: %w", err)
	}
	contentType, err := Validate(originalName, declaredType, data, s.maxBytes)
	if err != nil {
		return File{}, err
	}

	key := "violation-" + uuid.NewString() + strings.ToLower(filepath.Ext(originalName))
	url, err := s.storage.Save(ctx, key, contentType, data)
	if err != nil {
		return File{}, err
	}

	file := File{
		URL:          url,
		Filename:     key,
		OriginalName: originalName,
		Size:         int64(len(data)),
		ContentType:  contentType,
	}

	if strings.HasPrefix(contentType, "image/") {
		thumbURL, err := s.thumbnail(ctx, key, data)
		if err != nil {
			s.log.Warn("thumbnail generation failed", zap.String("key", key), zap.Error(err))
		} else {
			file.ThumbnailURL = thumbURL
		}
	}

	s.log.Info("evidence stored",
		zap.String("key", key),
		zap.String("contentType", contentType),
		zap.Int64("size", file.Size))
	return file, nil
}

func (s *Service) thumbnail(ctx context.Context, key string, data []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	thumb := imaging.Fit(img, thumbnailSize, thumbnailSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG); err != nil {
		return "", err
	}
	return s.storage.Save(ctx, ThumbnailKey(key), "image/jpeg", buf.Bytes())
}

// ThumbnailKey names the thumbnail stored next to key.
func ThumbnailKey(key string) string {
	return "thumb-" + strings.TrimSuffix(key, filepath.Ext(key)) + ".jpg"
}

// Verify fails when url was issued by our storage but the object is gone. Locators
// from elsewhere are opaque and accepted as is.
func (s *Service) Verify(ctx context.Context, url string) error {
	if url == "" || !s.storage.Owns(url) {
		return nil
	}
	ok, err := s.storage.Exists(ctx, url)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewValidationError("evidenceUrl", "evidence %s was not uploaded", url)
	}
	return nil
}
