package handlers

import (
	"net/http"

	"frly/internal/middleware"
	"frly/internal/services"
	"frly/pkg/logger"
	"frly/pkg/pagination"
	"frly/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// NotificationHandler 站内通知接口
type NotificationHandler struct {
	notificationService *services.NotificationService
	hub                 *services.NotificationHub
	upgrader            websocket.Upgrader
}

// NewNotificationHandler 创建通知处理器
func NewNotificationHandler(notificationService *services.NotificationService, hub *services.NotificationHub) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		hub:                 hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 跨域已由CORS中间件控制，这里不重复校验
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// List 通知列表，?unread=true 只看未读
// @Router /api/notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	params := pagination.ParsePageParams(c)
	unreadOnly := c.Query("unread") == "true"

	notifications, total, err := h.notificationService.GetUserNotifications(
		middleware.GetUserID(c), unreadOnly, params)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.SuccessWithPage(c, notifications, pagination.NewPageInfo(params.Page, params.PageSize, total))
}

// UnreadCount 未读数量
// @Router /api/notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	count, err := h.notificationService.UnreadCount(middleware.GetUserID(c))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"count": count})
}

// MarkRead 标记指定通知已读
// @Router /api/notifications/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var req struct {
		IDs []uint `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	if err := h.notificationService.MarkRead(middleware.GetUserID(c), req.IDs); err != nil {
		response.HandleError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已标记", nil)
}

// MarkAllRead 全部标记已读
// @Router /api/notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if err := h.notificationService.MarkAllRead(middleware.GetUserID(c)); err != nil {
		response.HandleError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已全部标记", nil)
}

// Stream WebSocket实时通知推送
// @Router /api/notifications/ws [get]
func (h *NotificationHandler) Stream(c *gin.Context) {
	userID := middleware.GetUserID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.GetLogger().Errorf("WebSocket升级失败: %v", err)
		return
	}

	h.hub.Register(userID, conn)
	defer func() {
		h.hub.Unregister(userID, conn)
		conn.Close()
	}()

	// 服务端只推不收，读循环仅用于感知断开
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
