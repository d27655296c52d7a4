package router

import (
	"strings"

	"frly/internal/handlers"
	"frly/internal/middleware"
	"frly/internal/services"
	"frly/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Deps 路由依赖的服务集合
type Deps struct {
	DB                   *gorm.DB
	UserService          *services.UserService
	GroupService         *services.GroupService
	InvitationService    *services.InvitationService
	PasswordResetService *services.PasswordResetService
	NotificationService  *services.NotificationService
	NotificationHub      *services.NotificationHub
}

// Setup 组装全部路由
func Setup(deps *Deps) *gin.Engine {
	cfg := config.GetConfig()
	gin.SetMode(cfg.Server.Mode)

	registerValidations()

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.SetupCORS(&cfg.CORS))

	auth := middleware.NewAuthMiddleware(deps.UserService, deps.GroupService)

	authHandler := handlers.NewAuthHandler(deps.UserService, deps.PasswordResetService)
	groupHandler := handlers.NewGroupHandler(deps.GroupService)
	inviteHandler := handlers.NewInvitationHandler(deps.InvitationService)
	notificationHandler := handlers.NewNotificationHandler(deps.NotificationService, deps.NotificationHub)

	api := r.Group("/api")
	{
		// 公开接口
		public := api.Group("/auth")
		{
			public.POST("/register", authHandler.Register)
			public.POST("/login", authHandler.Login)
			public.POST("/refresh", authHandler.RefreshToken)
			public.POST("/password-reset", authHandler.RequestPasswordReset)
			public.POST("/password-reset/confirm", authHandler.ConfirmPasswordReset)
		}

		// 邮件链接兑换不要求登录，令牌本身就是凭证
		api.POST("/invite-links/accept", inviteHandler.AcceptBySecret)
		api.POST("/invite-links/decline", inviteHandler.DeclineBySecret)

		// 登录后接口
		authed := api.Group("")
		authed.Use(auth.RequireLogin())
		{
			authed.GET("/auth/me", authHandler.Me)
			authed.PUT("/auth/me", authHandler.UpdateProfile)

			authed.POST("/groups", groupHandler.Create)
			authed.GET("/groups", groupHandler.ListMine)
			authed.POST("/join", groupHandler.Join)
			authed.POST("/groups/:id/leave", groupHandler.Leave)

			authed.GET("/invites", inviteHandler.ListMine)
			authed.POST("/invites/:id/accept", inviteHandler.Accept)
			authed.POST("/invites/:id/decline", inviteHandler.Decline)

			authed.GET("/notifications", notificationHandler.List)
			authed.GET("/notifications/unread-count", notificationHandler.UnreadCount)
			authed.POST("/notifications/read", notificationHandler.MarkRead)
			authed.POST("/notifications/read-all", notificationHandler.MarkAllRead)
			authed.GET("/notifications/ws", notificationHandler.Stream)
		}

		// 群组成员接口
		member := api.Group("/groups/:id")
		member.Use(auth.RequireLogin(), auth.RequireGroupMember())
		{
			member.GET("", groupHandler.Get)
			member.GET("/members", groupHandler.ListMembers)
			member.PUT("/view-preference", groupHandler.UpdateViewPreference)
		}

		// 群组管理员接口
		admin := api.Group("/groups/:id")
		admin.Use(auth.RequireLogin(), auth.RequireGroupAdmin())
		{
			admin.PUT("", groupHandler.Update)
			admin.DELETE("", groupHandler.Delete)
			admin.GET("/members/pending", groupHandler.ListPending)
			admin.POST("/members/:memberId/approve", groupHandler.Approve)
			admin.DELETE("/members/:userId", groupHandler.RemoveMember)
			admin.POST("/invites", inviteHandler.Send)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := deps.DB.DB()
		if err != nil || sqlDB.Ping() != nil {
			c.JSON(500, gin.H{"status": "down"})
			return
		}
		c.JSON(200, gin.H{"status": "up"})
	})

	return r
}

// registerValidations 注册自定义校验规则
func registerValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	// groupname: 非空白、不超过100字符的群组名称
	v.RegisterValidation("groupname", func(fl validator.FieldLevel) bool {
		name := strings.TrimSpace(fl.Field().String())
		return name != "" && len(name) <= 100
	})
}
