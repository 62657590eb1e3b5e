package utils

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// MaxImageSize is 10MB in bytes
	MaxImageSize = 10 * 1024 * 1024
	// MaxVideoSize is 50MB in bytes
	MaxVideoSize = 50 * 1024 * 1024
)

// MediaKind tells images and proof videos apart
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
}

// FileUploadError represents a file upload validation error
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// ValidateMediaFile checks the extension and size of an upload and reports its kind
func ValidateMediaFile(fileHeader *multipart.FileHeader) (MediaKind, error) {
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))

	var kind MediaKind
	var limit int64
	switch {
	case imageTypes[ext] != "":
		kind, limit = MediaImage, MaxImageSize
	case videoTypes[ext] != "":
		kind, limit = MediaVideo, MaxVideoSize
	default:
		return "", &FileUploadError{
			Code:    "INVALID_FILE_FORMAT",
			Message: "Only png, jpg, jpeg, webp, mp4, webm and mov files are allowed",
		}
	}

	if fileHeader.Size > limit {
		return "", &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB for %s uploads", limit/(1024*1024), kind),
		}
	}

	return kind, nil
}

// ContentTypeFor returns the MIME type for a media extension
func ContentTypeFor(ext string) string {
	ext = strings.ToLower(ext)
	if ct, ok := imageTypes[ext]; ok {
		return ct
	}
	if ct, ok := videoTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

// SaveUploadedFile saves the uploaded file under uploadDir with a random name.
// Returns the generated filename.
func SaveUploadedFile(fileHeader *multipart.FileHeader, uploadDir string) (filename string, err error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	filename = uuid.NewString() + strings.ToLower(filepath.Ext(fileHeader.Filename))
	fullPath := filepath.Join(uploadDir, filename)

	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close source file")
		}
	}()

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %w", err)
	}
	defer func() {
		if closeErr := dst.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close destination file: %w", closeErr)
		}
	}()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return filename, nil
}

// MediaURL returns the URL path for a locally stored upload
func MediaURL(filename string) string {
	if filename == "" {
		return ""
	}
	return fmt.Sprintf("/api/v1/uploads/%s", filename)
}
