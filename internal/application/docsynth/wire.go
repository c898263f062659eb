package docsynth

import (
	"github.com/google/wire"

	"github.com/repolens/backend/internal/application/retrieval"
)

// ProviderSet 文档合成应用层 ProviderSet
var ProviderSet = wire.NewSet(
	NewService,
	wire.Bind(new(Retriever), new(*retrieval.Service)),
)
