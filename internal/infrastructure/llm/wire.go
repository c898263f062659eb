package llm

import "github.com/google/wire"

// ProviderSet LLM 基础设施层的依赖注入
var ProviderSet = wire.NewSet(
	NewClient,
)
