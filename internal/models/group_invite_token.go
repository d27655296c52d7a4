package models

import (
	"time"
)

// GroupInviteToken 群组邀请令牌
//
// 只保存令牌哈希，原始密文仅出现在邀请邮件的链接里。
// 令牌一旦响应即不可变，历史记录保留不删除；
// 同一 (group_id, user_id) 至多只允许一条 pending 记录，
// 重复发送前必须先把旧的 pending 置为 declined。
type GroupInviteToken struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	GroupID      uint       `gorm:"not null;index" json:"group_id"`
	UserID       uint       `gorm:"not null;index" json:"user_id"`                    // 被邀请人（必须已注册）
	Email        string     `gorm:"size:200;not null" json:"email"`                   // 发送时的邮箱快照
	TokenHash    string     `gorm:"size:64;not null;uniqueIndex" json:"-"`            // 令牌哈希，原文不落库
	Status       string     `gorm:"size:20;not null;default:'pending'" json:"status"` // pending/accepted/declined
	ExpiresAt    time.Time  `gorm:"not null" json:"expires_at"`
	RespondedAt  *time.Time `json:"responded_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// 关联
	Group Group `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"group,omitempty"`
	User  User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName 指定表名
func (GroupInviteToken) TableName() string {
	return "group_invite_tokens"
}

// 邀请状态常量
const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusDeclined = "declined"
)

// IsValid 检查邀请是否仍可兑换（兑换时实时判断，不依赖后台清理）
func (t *GroupInviteToken) IsValid() bool {
	return t.Status == InviteStatusPending && time.Now().Before(t.ExpiresAt)
}
