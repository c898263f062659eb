package handler

import (
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/repolens/backend/internal/infrastructure/config"
	"github.com/repolens/backend/internal/infrastructure/log"
	"github.com/repolens/backend/internal/infrastructure/notification"
	infraWS "github.com/repolens/backend/internal/infrastructure/websocket"
)

// EventsHandler 流水线事件 WebSocket 处理器
type EventsHandler struct {
	hub      *infraWS.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewEventsHandler 创建事件处理器
func NewEventsHandler(hub *infraWS.Hub, cfg *config.WebSocketConfig) *EventsHandler {
	return &EventsHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true // 本地服务，允许所有来源
			},
		},
		logger: log.NewModuleLogger("http", "events_handler"),
	}
}

// Events 订阅流水线事件流
// GET /ws/events
func (h *EventsHandler) Events(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	subscriber := &infraWS.Connection{
		Topic: notification.EventTopic,
		Send:  make(chan []byte, 256),
	}
	h.hub.Register(subscriber)

	// 写泵：将广播消息推给客户端
	go func() {
		defer func() { _ = conn.Close() }()
		for data := range subscriber.Send {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}()

	// 读泵：只用于感知客户端断开
	go func() {
		defer h.hub.Unregister(subscriber)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
