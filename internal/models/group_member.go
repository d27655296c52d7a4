package models

import (
	"time"
)

// GroupMember 用户-群组成员关系
//
// 每个 (user_id, group_id) 至多一行，由唯一索引保证。
// removed 状态的行不删除，重新加入时复用同一行，
// 因此任意时刻都不会产生重复成员记录。
type GroupMember struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_group_member" json:"user_id"`
	GroupID        uint      `gorm:"not null;uniqueIndex:idx_group_member" json:"group_id"`
	Role           string    `gorm:"size:20;not null;default:'member'" json:"role"`     // admin/member
	Status         string    `gorm:"size:20;not null;default:'pending'" json:"status"`  // pending/approved/removed
	ViewPreference string    `gorm:"size:20;not null;default:'grid'" json:"view_preference"` // 成员个人的界面偏好
	JoinedAt       time.Time `json:"joined_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// 关联
	User  User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Group Group `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"group,omitempty"`
}

// TableName 指定表名
func (GroupMember) TableName() string {
	return "group_members"
}

// 成员角色常量（封闭枚举，系统只会产生这两个值）
const (
	MemberRoleAdmin  = "admin"
	MemberRoleMember = "member"
)

// 成员状态常量
const (
	MemberStatusPending  = "pending"
	MemberStatusApproved = "approved"
	MemberStatusRemoved  = "removed"
)

// 成员状态迁移表：
//   pending  -> approved（管理员批准/接受邀请）、removed（批准前被移除）
//   approved -> removed（自己退出或被管理员移除）
//   removed  -> pending（凭加入码重新申请）、approved（接受邀请直接恢复）
var memberStatusTransitions = map[string][]string{
	MemberStatusPending:  {MemberStatusApproved, MemberStatusRemoved},
	MemberStatusApproved: {MemberStatusRemoved},
	MemberStatusRemoved:  {MemberStatusPending, MemberStatusApproved},
}

// CanTransitionTo 检查状态迁移是否合法
func (m *GroupMember) CanTransitionTo(target string) bool {
	for _, allowed := range memberStatusTransitions[m.Status] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsAdmin 是否为已批准的管理员
func (m *GroupMember) IsAdmin() bool {
	return m.Status == MemberStatusApproved && m.Role == MemberRoleAdmin
}

// 界面偏好常量
const (
	ViewPreferenceGrid = "grid"
	ViewPreferenceList = "list"
)

// ValidViewPreference 校验界面偏好取值
func ValidViewPreference(value string) bool {
	return value == ViewPreferenceGrid || value == ViewPreferenceList
}
