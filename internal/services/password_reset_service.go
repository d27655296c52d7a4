package services

import (
	"fmt"
	"time"

	"frly/internal/models"
	"frly/pkg/config"
	"frly/pkg/errors"
	"frly/pkg/logger"
	"frly/pkg/mailer"
	"frly/pkg/token"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 重置令牌有效期30分钟，窗口短是因为它能直接接管账号
const resetTokenTTL = 30 * time.Minute

// PasswordResetService 密码重置服务
type PasswordResetService struct {
	db   *gorm.DB
	log  *logrus.Logger
	mail MailDispatcher
}

// NewPasswordResetService 创建密码重置服务
func NewPasswordResetService(db *gorm.DB, mail MailDispatcher) *PasswordResetService {
	return &PasswordResetService{
		db:   db,
		log:  logger.GetLogger(),
		mail: mail,
	}
}

// Request 发起密码重置
//
// 邮箱不存在时静默返回成功，接口行为不暴露注册状态。
// 签发新令牌和作废旧令牌在同一事务里完成。
func (s *PasswordResetService) Request(email string) error {
	var user models.User
	err := s.db.Where("email = ?", normalizeEmail(email)).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			s.log.Infof("忽略未注册邮箱的密码重置请求")
			return nil
		}
		return err
	}

	raw, hash, err := token.Issue()
	if err != nil {
		s.log.Errorf("生成重置令牌失败: %v", err)
		return fmt.Errorf("发起密码重置失败")
	}

	reset := &models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: time.Now().Add(resetTokenTTL),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 旧的未用令牌全部作废，任何时刻至多一个可兑换
		now := time.Now()
		if err := tx.Model(&models.PasswordResetToken{}).
			Where("user_id = ? AND used_at IS NULL", user.ID).
			Update("used_at", now).Error; err != nil {
			return err
		}
		return tx.Create(reset).Error
	})
	if err != nil {
		s.log.Errorf("写入重置令牌失败: %v", err)
		return fmt.Errorf("发起密码重置失败")
	}

	s.log.WithField("user_id", user.ID).Info("密码重置令牌已签发")

	s.sendResetMail(&user, raw)
	return nil
}

func (s *PasswordResetService) sendResetMail(user *models.User, rawToken string) {
	if s.mail == nil {
		return
	}

	base := config.GetConfig().App.FrontendBaseURL
	html := mailer.Render(mailer.PasswordResetTemplate, map[string]string{
		"FIRST_NAME": user.FirstName,
		"RESET_LINK": fmt.Sprintf("%s/reset-password?token=%s", base, rawToken),
	})

	if err := s.mail.EnqueueMail(user.Email, "重置你的密码", html); err != nil {
		s.log.Errorf("重置邮件入队失败: %v", err)
	}
}

// Reset 凭令牌设置新密码
//
// 先校验新密码强度再消费令牌：密码不合格时令牌保持可用，
// 用户可以拿同一个链接重试。消费用"仅当未用且未过期"的
// 条件更新，并发兑换只有一个能成功。
func (s *PasswordResetService) Reset(rawToken, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if rawToken == "" {
		return errResetInvalid()
	}

	var reset models.PasswordResetToken
	err := s.db.Where("token_hash = ?", token.Hash(rawToken)).First(&reset).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return errResetInvalid()
		}
		return err
	}
	if !reset.IsValid() {
		return errResetInvalid()
	}

	var user models.User
	if err := s.db.First(&user, reset.UserID).Error; err != nil {
		return err
	}
	if err := user.SetPassword(newPassword); err != nil {
		return fmt.Errorf("密码加密失败: %v", err)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		result := tx.Model(&models.PasswordResetToken{}).
			Where("id = ? AND used_at IS NULL AND expires_at > ?", reset.ID, now).
			Update("used_at", now)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errResetInvalid()
		}

		return tx.Model(&models.User{}).
			Where("id = ?", user.ID).
			Update("password_hash", user.PasswordHash).Error
	})
	if err != nil {
		if errors.AsAppError(err) != nil {
			return err
		}
		s.log.Errorf("重置密码失败: %v", err)
		return fmt.Errorf("重置密码失败")
	}

	s.log.WithField("user_id", user.ID).Info("密码重置成功")
	return nil
}

// 凭密文查询的统一错误，同邀请令牌的处理方式
func errResetInvalid() error {
	return errors.NewValidation("重置链接无效或已过期")
}

// CleanupExpired 清理已过期且未使用的历史令牌（定时任务调用）。
// 只是腾空间，正确性不依赖它，兑换路径自己判断过期。
func (s *PasswordResetService) CleanupExpired() error {
	result := s.db.Where("expires_at < ?", time.Now().Add(-24*time.Hour)).
		Delete(&models.PasswordResetToken{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		s.log.Infof("清理过期重置令牌 %d 条", result.RowsAffected)
	}
	return nil
}
