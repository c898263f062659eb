package notification

import (
	"github.com/google/wire"

	"github.com/repolens/backend/internal/application/ingestion"
	"github.com/repolens/backend/internal/application/orchestrator"
)

// ProviderSet 通知基础设施层 ProviderSet
var ProviderSet = wire.NewSet(
	NewWebSocketPusher,
	// 接口绑定：应用层通知接口 -> WebSocket 推送实现
	wire.Bind(
		new(orchestrator.TransitionNotifier),
		new(*WebSocketPusher),
	),
	wire.Bind(
		new(ingestion.ProgressNotifier),
		new(*WebSocketPusher),
	),
)
