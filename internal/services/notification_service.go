package services

import (
	"encoding/json"
	"time"

	"frly/internal/models"
	"frly/pkg/logger"
	"frly/pkg/pagination"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationService 站内通知服务
//
// 所有写入都是尽力而为：通知失败不影响触发它的业务操作，只记日志。
type NotificationService struct {
	db  *gorm.DB
	log *logrus.Logger
	hub *NotificationHub
}

// NewNotificationService 创建通知服务
func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{
		db:  db,
		log: logger.GetLogger(),
	}
}

// AttachHub 挂接WebSocket推送中心（可选）
func (s *NotificationService) AttachHub(hub *NotificationHub) {
	s.hub = hub
}

// NotifyUser 给用户发一条通知
func (s *NotificationService) NotifyUser(userID uint, eventType, message string) {
	s.NotifyUserWithPayload(userID, eventType, message, nil)
}

// NotifyUserWithPayload 给用户发一条带附加上下文的通知
func (s *NotificationService) NotifyUserWithPayload(userID uint, eventType, message string, payload map[string]interface{}) {
	notification := &models.Notification{
		UserID:  userID,
		Type:    eventType,
		Message: message,
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			s.log.Errorf("序列化通知上下文失败: %v", err)
		} else {
			notification.Payload = datatypes.JSON(data)
		}
	}

	if err := s.db.Create(notification).Error; err != nil {
		s.log.Errorf("写入通知失败: %v", err)
		return
	}

	if s.hub != nil {
		s.hub.Push(userID, notification)
	}
}

// GetUserNotifications 分页获取用户通知，最新的在前
func (s *NotificationService) GetUserNotifications(userID uint, unreadOnly bool, params *pagination.PageParams) ([]models.Notification, int64, error) {
	query := s.db.Model(&models.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []models.Notification
	err := query.Order("created_at DESC").
		Offset(params.GetOffset()).Limit(params.GetLimit()).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}

// MarkRead 标记指定通知为已读（只能操作自己的）
func (s *NotificationService) MarkRead(userID uint, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.Model(&models.Notification{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Update("is_read", true).Error
}

// MarkAllRead 标记用户全部通知为已读
func (s *NotificationService) MarkAllRead(userID uint) error {
	return s.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error
}

// UnreadCount 未读数量
func (s *NotificationService) UnreadCount(userID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// CleanupOld 清理超过保留期的已读通知
func (s *NotificationService) CleanupOld(retention time.Duration) error {
	cutoff := time.Now().Add(-retention)
	result := s.db.Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		s.log.Infof("清理已读通知 %d 条", result.RowsAffected)
	}
	return nil
}
