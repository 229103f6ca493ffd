// internal/services/notification_service.go
package services

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/rafat/cronosflow/internal/models"
	"github.com/rafat/cronosflow/internal/utils"
)

// NotificationService records actionable lifecycle events (defaults, expiry,
// liquidation) for admin tooling to poll.
type NotificationService struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

// Notify writes a notification row inside the caller's transaction so the
// event commits atomically with the transition that produced it.
func (s *NotificationService) Notify(tx *gorm.DB, assetID uuid.UUID, eventType, title, message string, priority models.NotificationPriority) error {
	notification := &models.Notification{
		Type:     eventType,
		Title:    title,
		Message:  message,
		Priority: priority,
		AssetID:  &assetID,
	}
	if err := tx.Create(notification).Error; err != nil {
		// Notifications are advisory; log and keep the transition.
		logrus.WithError(err).WithField("asset_id", assetID).Error("Failed to create notification")
	}
	return nil
}

// List returns notifications, newest first.
func (s *NotificationService) List(params utils.PaginationParams) ([]models.Notification, int64, error) {
	query := s.db.Model(&models.Notification{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []models.Notification
	query = utils.ApplySort(query, params, []string{"created_at", "priority", "type"})
	query = utils.ApplyPagination(query, params)
	if err := query.Find(&notifications).Error; err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}
