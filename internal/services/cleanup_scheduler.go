package services

import (
	"time"

	"frly/pkg/logger"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// 已读通知保留30天
const notificationRetention = 30 * 24 * time.Hour

// CleanupScheduler 周期性清理任务调度器
//
// 只负责清理历史垃圾数据（已读通知、早已过期的重置令牌）。
// 令牌和邀请的过期判断都在兑换路径上实时完成，不依赖这里。
type CleanupScheduler struct {
	cron                 *cron.Cron
	log                  *logrus.Logger
	notificationService  *NotificationService
	passwordResetService *PasswordResetService
}

// NewCleanupScheduler 创建清理调度器
func NewCleanupScheduler(notificationService *NotificationService, passwordResetService *PasswordResetService) *CleanupScheduler {
	return &CleanupScheduler{
		cron:                 cron.New(),
		log:                  logger.GetLogger(),
		notificationService:  notificationService,
		passwordResetService: passwordResetService,
	}
}

// Start 注册并启动定时任务
func (s *CleanupScheduler) Start() error {
	// 每天凌晨3点清理
	_, err := s.cron.AddFunc("0 3 * * *", func() {
		if err := s.notificationService.CleanupOld(notificationRetention); err != nil {
			s.log.Errorf("清理历史通知失败: %v", err)
		}
		if err := s.passwordResetService.CleanupExpired(); err != nil {
			s.log.Errorf("清理过期重置令牌失败: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("清理调度器已启动")
	return nil
}

// Stop 停止调度器，等待执行中的任务结束
func (s *CleanupScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("清理调度器已停止")
}
