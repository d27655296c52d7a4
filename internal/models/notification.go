package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification 站内通知
type Notification struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	Type      string         `gorm:"size:50;not null" json:"type"` // 事件类型，如 GROUP_JOIN_REQUEST
	Message   string         `gorm:"size:500;not null" json:"message"`
	Payload   datatypes.JSON `json:"payload,omitempty"` // 附加上下文（群组ID等）
	IsRead    bool           `gorm:"default:false;index" json:"is_read"`
	CreatedAt time.Time      `json:"created_at"`
}

// TableName 指定表名
func (Notification) TableName() string {
	return "notifications"
}

// 通知事件类型常量
const (
	NotifyGroupJoinRequest  = "GROUP_JOIN_REQUEST"
	NotifyGroupJoinApproved = "GROUP_JOIN_APPROVED"
	NotifyGroupMemberLeft   = "GROUP_MEMBER_LEFT"
	NotifyGroupLeft         = "GROUP_LEFT"
	NotifyGroupRemoved      = "GROUP_MEMBER_REMOVED"
)
