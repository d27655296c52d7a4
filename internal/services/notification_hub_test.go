package services

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// 同一连接被多个goroutine同时推送时，写入必须在连接内部排队，
// 所有消息都完整到达且进程不崩（用 -race 跑能暴露回归）
func TestHubConcurrentPush(t *testing.T) {
	hub := NewNotificationHub()
	upgrader := websocket.Upgrader{}
	registered := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(1, conn)
		close(registered)
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()
	<-registered

	const pushers = 32
	var wg sync.WaitGroup
	for i := 0; i < pushers; i++ {
		wg.Add(1)
		go func(seq int) {
			defer wg.Done()
			hub.Push(1, map[string]int{"seq": seq})
		}(i)
	}
	wg.Wait()

	for i := 0; i < pushers; i++ {
		msgType, msg, err := client.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, websocket.TextMessage, msgType)
		require.NotEmpty(t, msg)
	}
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	hub := NewNotificationHub()
	upgrader := websocket.Upgrader{}
	connCh := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(7, conn)
		connCh <- conn
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()
	conn := <-connCh

	hub.Unregister(7, conn)

	// 注销后推送不会送达，也不会panic
	hub.Push(7, map[string]string{"msg": "dropped"})

	hub.mu.RLock()
	_, exists := hub.conns[7]
	hub.mu.RUnlock()
	require.False(t, exists)
}
