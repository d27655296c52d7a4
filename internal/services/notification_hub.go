package services

import (
	"encoding/json"
	"sync"

	"frly/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// hubConn 包装连接并串行化写入。
// gorilla/websocket同一连接只允许一个并发写者，
// 多个请求goroutine同时推送时必须在这里排队。
type hubConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *hubConn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// NotificationHub 管理用户的WebSocket连接，通知产生时实时推送。
// 推送失败只断开连接不报错，持久化的通知记录才是事实来源。
type NotificationHub struct {
	mu    sync.RWMutex
	conns map[uint]map[*websocket.Conn]*hubConn
	log   *logrus.Logger
}

// NewNotificationHub 创建通知推送中心
func NewNotificationHub() *NotificationHub {
	return &NotificationHub{
		conns: make(map[uint]map[*websocket.Conn]*hubConn),
		log:   logger.GetLogger(),
	}
}

// Register 注册用户连接（同一用户可以多端在线）
func (h *NotificationHub) Register(userID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*websocket.Conn]*hubConn)
	}
	h.conns[userID][conn] = &hubConn{conn: conn}
}

// Unregister 注销用户连接
func (h *NotificationHub) Unregister(userID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[userID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.conns, userID)
		}
	}
}

// Push 向用户的所有在线连接推送消息
func (h *NotificationHub) Push(userID uint, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Errorf("序列化推送消息失败: %v", err)
		return
	}

	h.mu.RLock()
	conns := make([]*hubConn, 0, len(h.conns[userID]))
	for _, c := range h.conns[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(data); err != nil {
			h.log.Debugf("推送通知失败，断开连接: %v", err)
			c.conn.Close()
			h.Unregister(userID, c.conn)
		}
	}
}
