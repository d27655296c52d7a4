package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"frly/internal/database"
	"frly/internal/router"
	"frly/internal/services"
	"frly/pkg/config"
	"frly/pkg/logger"
	"frly/pkg/mailer"
)

func main() {
	// 加载配置
	cfg := config.GetConfig()

	// 初始化日志
	if err := logger.Initialize(cfg); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	log.Info("Starting FRLY server...")

	// 初始化数据库
	if err := database.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// 执行迁移
	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	db := database.GetDB()

	// 邮件队列（Redis不可用时降级为不发邮件，核心流程不受影响）
	var mail services.MailDispatcher
	mailQueue := database.GetMailQueue()
	if err := mailQueue.Ping(); err != nil {
		log.Warnf("Redis unavailable, outbound mail disabled: %v", err)
	} else {
		mail = mailQueue
		defer database.CloseMailQueue()
	}

	// 组装服务
	hub := services.NewNotificationHub()
	notificationService := services.NewNotificationService(db)
	notificationService.AttachHub(hub)

	userService := services.NewUserService(db)
	groupService := services.NewGroupService(db, notificationService)
	invitationService := services.NewInvitationService(db, groupService, mail)
	passwordResetService := services.NewPasswordResetService(db, mail)

	// 邮件发送工作器
	var mailWorker *services.MailWorker
	if mail != nil {
		mailWorker = services.NewMailWorker(mailQueue, mailer.NewSMTPSender(&cfg.SMTP))
		mailWorker.Start()
		defer mailWorker.Stop()
	}

	// 定时清理
	cleanup := services.NewCleanupScheduler(notificationService, passwordResetService)
	if err := cleanup.Start(); err != nil {
		log.Fatalf("Failed to start cleanup scheduler: %v", err)
	}
	defer cleanup.Stop()

	// 启动HTTP服务
	engine := router.Setup(&router.Deps{
		DB:                   db,
		UserService:          userService,
		GroupService:         groupService,
		InvitationService:    invitationService,
		PasswordResetService: passwordResetService,
		NotificationService:  notificationService,
		NotificationHub:      hub,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: engine,
	}

	go func() {
		log.Infof("Server listening on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// 等待退出信号，优雅关停
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
