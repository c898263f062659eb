package analyzer

import "github.com/google/wire"

// ProviderSet 分析应用层 ProviderSet
var ProviderSet = wire.NewSet(
	NewRegistry,
	NewService,
)
