package controllers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lumbarong/lumbarong-api/config"
	"github.com/lumbarong/lumbarong-api/middleware"
	"github.com/lumbarong/lumbarong-api/models"
	"github.com/lumbarong/lumbarong-api/services"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// retryAfterSeconds is sent with 503 responses for lock timeouts
const retryAfterSeconds = "1"

// errorResponse writes the standard failure envelope
func errorResponse(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"message": message,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// validationResponse reports a request binding failure
func validationResponse(c *gin.Context, err error) {
	message := validationMessage(err)
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"message": message,
		"error": gin.H{
			"code":    services.CodeValidation,
			"message": message,
			"details": err.Error(),
		},
	})
}

// respondServiceError maps order engine errors to HTTP responses
func respondServiceError(c *gin.Context, err error) {
	oe, ok := services.AsOrderError(err)
	if !ok {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Unexpected persistence error")
		errorResponse(c, http.StatusInternalServerError, "DATABASE_ERROR", "An unexpected error occurred")
		return
	}

	status := http.StatusBadRequest
	switch oe.Kind {
	case services.KindForbidden:
		status = http.StatusForbidden
	case services.KindNotFound:
		status = http.StatusNotFound
	case services.KindRetryable:
		status = http.StatusServiceUnavailable
		c.Header("Retry-After", retryAfterSeconds)
	}
	errorResponse(c, status, oe.Code, oe.Message)
}

// currentUser resolves the token subject to a stored user, writing the error response when it cannot
func currentUser(c *gin.Context) (*models.User, bool) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		errorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return nil, false
	}

	var user models.User
	if err := config.GetDB().WithContext(c.Request.Context()).Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			errorResponse(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
			return nil, false
		}
		errorResponse(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load user profile")
		return nil, false
	}
	return &user, true
}

func actorOf(user *models.User) services.Actor {
	return services.Actor{UserID: user.ID, Role: user.Role}
}

// idParam parses a positive numeric path parameter
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		errorResponse(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// queryInt reads an integer query parameter, returning def when absent or malformed
func queryInt(c *gin.Context, key string, def int) int {
	value, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return value
}

func pagination(page, limit int, total int64) gin.H {
	return gin.H{
		"page":       page,
		"limit":      limit,
		"total":      total,
		"totalPages": int(math.Ceil(float64(total) / float64(limit))),
	}
}
