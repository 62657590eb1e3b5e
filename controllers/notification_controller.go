package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lumbarong/lumbarong-api/config"
	"github.com/lumbarong/lumbarong-api/models"
	"gorm.io/gorm"
)

// ListNotifications handles GET /api/v1/notifications - newest first, ?unread=true filters
func ListNotifications(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	db := config.GetDB().WithContext(c.Request.Context())
	unreadOnly := c.Query("unread") == "true"
	mine := func(q *gorm.DB) *gorm.DB {
		q = q.Where("recipient_id = ?", user.ID)
		if unreadOnly {
			q = q.Where("is_read = ?", false)
		}
		return q
	}

	var total int64
	if err := db.Model(&models.Notification{}).Scopes(mine).Count(&total).Error; err != nil {
		errorResponse(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to count notifications")
		return
	}

	var notifications []models.Notification
	if err := db.Scopes(mine).Order("created_at DESC, id DESC").Offset((page - 1) * limit).Limit(limit).Find(&notifications).Error; err != nil {
		errorResponse(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to fetch notifications")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       notifications,
		"pagination": pagination(page, limit, total),
	})
}

// MarkNotificationRead handles PUT /api/v1/notifications/:id/read
func MarkNotificationRead(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())
	var notification models.Notification
	if err := db.First(&notification, id).Error; err != nil {
		errorResponse(c, http.StatusNotFound, "NOTIFICATION_NOT_FOUND", "Notification not found")
		return
	}
	if notification.RecipientID != user.ID {
		errorResponse(c, http.StatusForbidden, "FORBIDDEN", "You do not have permission to modify this notification")
		return
	}

	if err := db.Model(&notification).Update("is_read", true).Error; err != nil {
		errorResponse(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update notification")
		return
	}
	notification.IsRead = true

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    notification,
	})
}
