package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lumbarong/lumbarong-api/config"
	"github.com/lumbarong/lumbarong-api/middleware"
	"github.com/lumbarong/lumbarong-api/models"
	"github.com/lumbarong/lumbarong-api/services"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// CreateUserRequest carries profile fields for tokens that have no Auth0 userinfo
type CreateUserRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email" binding:"omitempty,email"`
	ShopName *string `json:"shopName"`
}

// UpdateUserRequest represents the request body for updating a user profile
type UpdateUserRequest struct {
	Name     string  `json:"name" binding:"omitempty"`
	Email    string  `json:"email" binding:"omitempty,email"`
	ShopName *string `json:"shopName"`
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// works with both PostgreSQL and SQLite
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "duplicate") || strings.Contains(errMsg, "unique")
}

// CreateUser handles POST /api/v1/users - registers the caller.
// Name and email come from Auth0's /userinfo endpoint when Auth0 is configured, otherwise from the body.
func CreateUser(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		errorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user ID from token")
		return
	}

	var req CreateUserRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			validationResponse(c, err)
			return
		}
	}

	name, email := strings.TrimSpace(req.Name), strings.TrimSpace(req.Email)
	if cfg := config.GetConfig(); cfg != nil && cfg.Auth0Domain != "" {
		accessToken, err := middleware.GetAccessToken(c)
		if err != nil {
			errorResponse(c, http.StatusUnauthorized, "MISSING_TOKEN", "Access token not found")
			return
		}

		userInfo, err := services.NewAuth0Service(cfg).GetUserInfo(c.Request.Context(), accessToken)
		if err != nil {
			log.Error().Err(err).Str("auth0_id", auth0ID).Msg("Failed to fetch userinfo")
			errorResponse(c, http.StatusInternalServerError, "AUTH0_ERROR", "Failed to fetch user information from Auth0")
			return
		}
		name, email = userInfo.Name, userInfo.Email
	}

	if email == "" {
		errorResponse(c, http.StatusBadRequest, "MISSING_EMAIL", "Email not provided")
		return
	}
	if name == "" {
		errorResponse(c, http.StatusBadRequest, "MISSING_NAME", "Name not provided")
		return
	}

	role := middleware.GetRole(c)
	if role == "" {
		role = models.RoleCustomer
	}
	if !models.IsValidRole(role) {
		errorResponse(c, http.StatusForbidden, "INVALID_ROLE", "Token carries an unknown role")
		return
	}

	user := models.User{
		Auth0ID: auth0ID,
		Name:    name,
		Email:   email,
		Role:    role,
	}
	if role == models.RoleSeller {
		user.ShopName = req.ShopName
	}

	if err := config.GetDB().WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			errorResponse(c, http.StatusConflict, "USER_EXISTS", "A user with this Auth0 ID or email already exists")
			return
		}
		errorResponse(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create user")
		return
	}

	log.Info().Uint("user_id", user.ID).Str("role", user.Role).Msg("User registered")
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    user,
	})
}

// GetMyProfile handles GET /api/v1/users/me - gets current user's profile
func GetMyProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    user,
	})
}

// UpdateMyProfile handles PUT /api/v1/users/me - updates current user's profile
func UpdateMyProfile(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationResponse(c, err)
		return
	}

	user, ok := currentUser(c)
	if !ok {
		return
	}

	updates := make(map[string]interface{})
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Email != "" {
		updates["email"] = req.Email
	}
	if req.ShopName != nil && user.Role == models.RoleSeller {
		updates["shop_name"] = *req.ShopName
	}

	if len(updates) == 0 {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    user,
		})
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())
	if err := db.Model(user).Updates(updates).Error; err != nil {
		if isUniqueViolation(err) {
			errorResponse(c, http.StatusConflict, "EMAIL_EXISTS", "A user with this email already exists")
			return
		}
		errorResponse(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update user profile")
		return
	}

	if err := db.First(user, user.ID).Error; err != nil {
		errorResponse(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to fetch updated profile")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    user,
	})
}
