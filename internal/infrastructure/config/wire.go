package config

import "github.com/google/wire"

// ProviderSet 配置 ProviderSet
var ProviderSet = wire.NewSet(
	NewConfig,
	NewServerConfig,
	NewDatabaseConfig,
	NewQdrantConfig,
	NewEmbeddingConfig,
	NewLLMConfig,
	NewOrchestratorConfig,
	NewDocumentationConfig,
	NewWebSocketConfig,
)
