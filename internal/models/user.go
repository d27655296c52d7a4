package models

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// User 用户模型
type User struct {
	BaseModel
	Email        string  `json:"email" gorm:"unique;not null;size:200;index"`
	PasswordHash string  `json:"-" gorm:"not null;size:255"`
	FirstName    string  `json:"first_name" gorm:"size:100"`
	LastName     string  `json:"last_name" gorm:"size:100"`
	PfpURL       *string `json:"pfp_url" gorm:"size:255"`
	Status       string  `json:"status" gorm:"default:'active';size:20"`
}

// TableName 表名
func (u *User) TableName() string {
	return "users"
}

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// SetPassword 设置密码
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

// CheckPassword 验证密码
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// FullName 姓名拼接，用于通知和邮件文案
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}
