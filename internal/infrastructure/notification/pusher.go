package notification

import (
	"time"

	"github.com/repolens/backend/internal/infrastructure/websocket"
)

// EventTopic 所有流水线事件共用的广播主题
const EventTopic = "events"

// PipelineEvent 推送给前端的流水线事件
type PipelineEvent struct {
	Kind      string `json:"kind"`
	SessionID string `json:"session_id,omitempty"`
	RepoID    string `json:"repo_id,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// WebSocketPusher WebSocket 推送实现
// 推送为尽力而为：失败或无订阅者都不影响调用方
type WebSocketPusher struct {
	hub *websocket.Hub
}

// NewWebSocketPusher 创建 WebSocket 推送器
func NewWebSocketPusher(hub *websocket.Hub) *WebSocketPusher {
	return &WebSocketPusher{hub: hub}
}

// PushNodeTransition 推送编排器节点转移事件
func (p *WebSocketPusher) PushNodeTransition(sessionID, from, to string) {
	_ = p.hub.BroadcastToTopic(EventTopic, &PipelineEvent{
		Kind:      "node_transition",
		SessionID: sessionID,
		From:      from,
		To:        to,
		Timestamp: time.Now().UnixMilli(),
	})
}

// PushIngestProgress 推送仓库摄入进度事件
func (p *WebSocketPusher) PushIngestProgress(repoID, detail string) {
	_ = p.hub.BroadcastToTopic(EventTopic, &PipelineEvent{
		Kind:      "ingest_progress",
		RepoID:    repoID,
		Detail:    detail,
		Timestamp: time.Now().UnixMilli(),
	})
}
