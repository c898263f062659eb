package retrieval

import (
	"github.com/google/wire"

	"github.com/repolens/backend/internal/infrastructure/embedding"
	"github.com/repolens/backend/internal/infrastructure/vector"
)

// ProviderSet 检索应用层 ProviderSet
var ProviderSet = wire.NewSet(
	NewService,
	NewContextAssembler,
	// 接口绑定：应用层接口 -> 基础设施实现
	wire.Bind(
		new(QueryEmbedder),
		new(*embedding.Client),
	),
	wire.Bind(
		new(SearchIndex),
		new(*vector.Index),
	),
)
