package models

// Group 群组模型 - 所有内容数据的隔离边界
type Group struct {
	BaseModel
	DisplayName  string `json:"display_name" gorm:"not null;size:100"`
	Status       string `json:"status" gorm:"default:'active';size:20"`
	InviteCode   string `json:"invite_code" gorm:"unique;not null;size:16;index"` // 可分享的加入码
	StorageLimit int64  `json:"storage_limit" gorm:"not null;default:1073741824"` // 存储配额（字节）
	StorageUsage int64  `json:"storage_usage" gorm:"not null;default:0"`          // 已用存储（字节）
}

// TableName 表名
func (g *Group) TableName() string {
	return "groups"
}

// 群组状态常量
const (
	GroupStatusActive  = "active"
	GroupStatusDeleted = "deleted" // 软删除，成员关系保留但全部访问被拦截
)

// IsActive 群组是否可用（deleted群组拒绝一切写入和新的加入/邀请）
func (g *Group) IsActive() bool {
	return g.Status == GroupStatusActive
}
