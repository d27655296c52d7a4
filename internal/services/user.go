package services

import (
	"fmt"
	"strings"

	"frly/internal/models"
	"frly/pkg/errors"
	"frly/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// UserService 用户服务
type UserService struct {
	db  *gorm.DB
	log *logrus.Logger
}

// NewUserService 创建用户服务
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{
		db:  db,
		log: logger.GetLogger(),
	}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name"`
}

// Register 注册新用户
func (s *UserService) Register(req *RegisterRequest) (*models.User, error) {
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}

	email := normalizeEmail(req.Email)

	var count int64
	s.db.Model(&models.User{}).Where("email = ?", email).Count(&count)
	if count > 0 {
		return nil, errors.NewConflict("该邮箱已注册")
	}

	user := &models.User{
		Email:     email,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Status:    models.UserStatusActive,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("密码加密失败: %v", err)
	}

	if err := s.db.Create(user).Error; err != nil {
		s.log.Errorf("创建用户失败: %v", err)
		return nil, fmt.Errorf("创建用户失败")
	}

	s.log.WithField("user_id", user.ID).Info("用户注册成功")
	return user, nil
}

// GetByID 根据ID获取用户
func (s *UserService) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := s.db.First(&user, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFound("用户不存在")
		}
		return nil, err
	}
	return &user, nil
}

// GetByEmail 根据邮箱获取用户
func (s *UserService) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := s.db.Where("email = ?", normalizeEmail(email)).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFound("用户不存在")
		}
		return nil, err
	}
	return &user, nil
}

// UpdateProfileRequest 更新资料请求
type UpdateProfileRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	PfpURL    *string `json:"pfp_url"`
}

// UpdateProfile 更新用户资料
func (s *UserService) UpdateProfile(id uint, req *UpdateProfileRequest) (*models.User, error) {
	user, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.PfpURL != nil {
		user.PfpURL = req.PfpURL
	}

	if err := s.db.Save(user).Error; err != nil {
		return nil, fmt.Errorf("更新用户资料失败")
	}
	return user, nil
}

// IsActive 用户是否可用
func (s *UserService) IsActive(user *models.User) bool {
	return user.Status == models.UserStatusActive
}

// validatePassword 密码强度校验，任何状态变更前执行
func validatePassword(password string) error {
	if len(password) < 8 {
		return errors.NewValidation("密码长度不能少于8位")
	}
	return nil
}

// normalizeEmail 邮箱统一小写去空白后再比较和存储
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
