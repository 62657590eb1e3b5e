package controllers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lumbarong/lumbarong-api/config"
	"github.com/lumbarong/lumbarong-api/services"
	"github.com/lumbarong/lumbarong-api/utils"
	"github.com/rs/zerolog/log"
)

const defaultUploadDir = "./uploads"

// UploadMedia handles POST /api/v1/uploads - stores a product image, receipt or return proof.
// The returned key is what order and product requests reference.
func UploadMedia(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "MISSING_FILE", "A file must be sent in the 'file' form field")
		return
	}

	media, err := services.GetMediaService().Upload(c.Request.Context(), fileHeader)
	if err != nil {
		var uploadErr *utils.FileUploadError
		if errors.As(err, &uploadErr) {
			errorResponse(c, http.StatusBadRequest, uploadErr.Code, uploadErr.Message)
			return
		}
		log.Error().Err(err).Str("filename", fileHeader.Filename).Msg("Failed to store upload")
		errorResponse(c, http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to store the uploaded file")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    media,
	})
}

// GetUploadedFile handles GET /api/v1/uploads/:filename - serves locally stored media
func GetUploadedFile(c *gin.Context) {
	filename := c.Param("filename")

	if filename == "" {
		errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", "Filename is required")
		return
	}

	// Prevent directory traversal
	if strings.Contains(filename, "..") || strings.Contains(filename, "/") || strings.Contains(filename, "\\") {
		errorResponse(c, http.StatusBadRequest, "INVALID_FILENAME", "Invalid filename")
		return
	}

	contentType := utils.ContentTypeFor(filepath.Ext(filename))
	if contentType == "application/octet-stream" {
		errorResponse(c, http.StatusBadRequest, "INVALID_FILE_TYPE", "Only image and video uploads are served")
		return
	}

	dir := defaultUploadDir
	if cfg := config.GetConfig(); cfg != nil && cfg.UploadDir != "" {
		dir = cfg.UploadDir
	}
	filePath := filepath.Join(dir, filename)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		errorResponse(c, http.StatusNotFound, "FILE_NOT_FOUND", "File not found")
		return
	}

	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "public, max-age=86400") // 24 hours
	c.File(filePath)
}
