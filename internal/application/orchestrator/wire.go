package orchestrator

import (
	"github.com/google/wire"

	"github.com/repolens/backend/internal/application/analyzer"
	"github.com/repolens/backend/internal/application/retrieval"
)

// ProviderSet 编排应用层 ProviderSet
var ProviderSet = wire.NewSet(
	NewMachine,
	NewRunner,
	NewLLMGenerator,
	// 接口绑定：检索服务作为编排器的检索实现
	wire.Bind(
		new(Retriever),
		new(*retrieval.Service),
	),
	// 接口绑定：分析服务作为摘要提供方（过期时同步重算）
	wire.Bind(
		new(SummaryProvider),
		new(*analyzer.Service),
	),
)
