package ingestion

import (
	"github.com/google/wire"

	"github.com/repolens/backend/internal/infrastructure/embedding"
	"github.com/repolens/backend/internal/infrastructure/vector"
)

// ProviderSet 摄入应用层 ProviderSet
var ProviderSet = wire.NewSet(
	NewChunker,
	NewService,
	// 接口绑定：应用层接口 -> 基础设施实现
	wire.Bind(
		new(Embedder),
		new(*embedding.Client),
	),
	wire.Bind(
		new(VectorIndex),
		new(*vector.Index),
	),
)
