package infrastructure

import (
	"github.com/google/wire"

	"github.com/repolens/backend/internal/infrastructure/config"
	"github.com/repolens/backend/internal/infrastructure/embedding"
	"github.com/repolens/backend/internal/infrastructure/llm"
	"github.com/repolens/backend/internal/infrastructure/notification"
	"github.com/repolens/backend/internal/infrastructure/storage"
	"github.com/repolens/backend/internal/infrastructure/vector"
	"github.com/repolens/backend/internal/infrastructure/watcher"
	"github.com/repolens/backend/internal/infrastructure/websocket"
)

// ProviderSet Infrastructure 层总 ProviderSet
var ProviderSet = wire.NewSet(
	config.ProviderSet,
	storage.ProviderSet,
	embedding.ProviderSet,
	vector.ProviderSet,
	llm.ProviderSet,
	websocket.ProviderSet,
	notification.ProviderSet,
	watcher.ProviderSet,
)
