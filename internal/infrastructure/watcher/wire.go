package watcher

import (
	"github.com/google/wire"
	"github.com/repolens/backend/internal/domain/events"
)

// ProvideEventBus 提供事件总线实例
func ProvideEventBus() events.EventBus {
	return NewEventBus()
}

// ProvideRepoWatcher 提供仓库监听器实例
func ProvideRepoWatcher(eventBus events.EventBus) (*RepoWatcher, error) {
	return NewRepoWatcher(DefaultWatchConfig(), eventBus)
}

// ProviderSet Watcher 基础设施层 ProviderSet
var ProviderSet = wire.NewSet(
	ProvideEventBus,
	ProvideRepoWatcher,
)
