// internal/handlers/notification.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/rafat/cronosflow/internal/services"
	"github.com/rafat/cronosflow/internal/utils"
)

type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// GET /notifications
func (h *NotificationHandler) List(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	notifications, total, err := h.notifications.List(params)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, utils.CreatePaginationResult(notifications, total, params))
}
