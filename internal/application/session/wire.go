package session

import (
	"github.com/google/wire"

	"github.com/repolens/backend/internal/application/orchestrator"
)

// ProviderSet 会话应用层 ProviderSet
var ProviderSet = wire.NewSet(
	NewManager,
	// 接口绑定：编排执行器作为问答实现
	wire.Bind(
		new(Asker),
		new(*orchestrator.Runner),
	),
)
