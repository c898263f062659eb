package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/repolens/backend/internal/domain/events"
	"github.com/repolens/backend/internal/infrastructure/log"
)

// WatchConfig RepoWatcher 配置
type WatchConfig struct {
	// DebounceDelay 防抖延迟
	DebounceDelay time.Duration
}

// DefaultWatchConfig 返回默认配置
func DefaultWatchConfig() WatchConfig {
	return WatchConfig{
		DebounceDelay: 500 * time.Millisecond,
	}
}

// RepoWatcher 仓库目录监听器
// 监听已摄入仓库的源码目录，文件变更时发布 RepoFileModified 事件，
// 订阅者据此将仓库摘要标记为过期
type RepoWatcher struct {
	config   WatchConfig
	eventBus events.EventBus
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	// roots 监听根目录到仓库 ID 的映射
	roots   map[string]string
	rootsMu sync.RWMutex

	// 防抖相关
	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex

	// 控制
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRepoWatcher 创建仓库监听器
func NewRepoWatcher(config WatchConfig, eventBus events.EventBus) (*RepoWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &RepoWatcher{
		config:         config,
		eventBus:       eventBus,
		watcher:        watcher,
		logger:         log.NewModuleLogger("watcher", "repo_watcher"),
		roots:          make(map[string]string),
		debounceTimers: make(map[string]*time.Timer),
		stopCh:         make(chan struct{}),
	}, nil
}

// Start 启动监听循环
func (rw *RepoWatcher) Start() error {
	rw.logger.Info("Starting repository watcher")

	rw.wg.Add(1)
	go rw.watchLoop()

	return nil
}

// Stop 停止监听
func (rw *RepoWatcher) Stop() {
	rw.logger.Info("Stopping repository watcher")

	close(rw.stopCh)
	rw.watcher.Close()
	rw.wg.Wait()

	// 取消所有防抖定时器
	rw.debounceMu.Lock()
	for _, timer := range rw.debounceTimers {
		timer.Stop()
	}
	rw.debounceMu.Unlock()

	rw.logger.Info("Repository watcher stopped")
}

// WatchRepo 注册仓库目录监听
func (rw *RepoWatcher) WatchRepo(repoID, rootDir string) error {
	rootDir = filepath.Clean(rootDir)

	rw.rootsMu.Lock()
	rw.roots[rootDir] = repoID
	rw.rootsMu.Unlock()

	if err := rw.addDirRecursive(rootDir); err != nil {
		return err
	}

	rw.logger.Info("Watching repository directory",
		"repo_id", repoID,
		"root", rootDir,
	)
	return nil
}

// UnwatchRepo 取消仓库目录监听
func (rw *RepoWatcher) UnwatchRepo(repoID string) {
	rw.rootsMu.Lock()
	defer rw.rootsMu.Unlock()

	for root, id := range rw.roots {
		if id == repoID {
			delete(rw.roots, root)
			_ = rw.watcher.Remove(root)
		}
	}
}

// addDirRecursive 递归添加目录监听，跳过隐藏目录和常见依赖目录
func (rw *RepoWatcher) addDirRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // 忽略无法访问的目录
		}

		if !info.IsDir() {
			return nil
		}

		if isIgnoredDir(info.Name()) && path != dir {
			return filepath.SkipDir
		}

		if err := rw.watcher.Add(path); err != nil {
			rw.logger.Debug("Failed to add directory to watch",
				"path", path,
				"error", err,
			)
		}
		return nil
	})
}

// isIgnoredDir 判断目录是否跳过监听
func isIgnoredDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	switch name {
	case "node_modules", "vendor", "target", "dist", "build", "__pycache__":
		return true
	}
	return false
}

// watchLoop 事件监听循环
func (rw *RepoWatcher) watchLoop() {
	defer rw.wg.Done()

	for {
		select {
		case <-rw.stopCh:
			return

		case event, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			rw.handleFsEvent(event)

		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			rw.logger.Error("Watcher error", "error", err)
		}
	}
}

// handleFsEvent 处理文件系统事件（带防抖）
func (rw *RepoWatcher) handleFsEvent(fsEvent fsnotify.Event) {
	if !fsEvent.Has(fsnotify.Create) && !fsEvent.Has(fsnotify.Write) && !fsEvent.Has(fsnotify.Remove) {
		return
	}

	repoID := rw.resolveRepoID(fsEvent.Name)
	if repoID == "" {
		return
	}

	// 新建子目录需要纳入监听
	if fsEvent.Has(fsnotify.Create) {
		if info, err := os.Stat(fsEvent.Name); err == nil && info.IsDir() {
			if !isIgnoredDir(filepath.Base(fsEvent.Name)) {
				_ = rw.watcher.Add(fsEvent.Name)
			}
			return
		}
	}

	rw.debounceMu.Lock()
	defer rw.debounceMu.Unlock()

	if timer, exists := rw.debounceTimers[fsEvent.Name]; exists {
		timer.Stop()
	}

	path := fsEvent.Name
	rw.debounceTimers[path] = time.AfterFunc(rw.config.DebounceDelay, func() {
		rw.emitFileEvent(repoID, path)

		rw.debounceMu.Lock()
		delete(rw.debounceTimers, path)
		rw.debounceMu.Unlock()
	})
}

// resolveRepoID 根据路径前缀匹配已注册的仓库根目录
// 多个根目录匹配时取最长前缀
func (rw *RepoWatcher) resolveRepoID(path string) string {
	rw.rootsMu.RLock()
	defer rw.rootsMu.RUnlock()

	var bestRoot, bestID string
	for root, id := range rw.roots {
		if strings.HasPrefix(path, root+string(os.PathSeparator)) || path == root {
			if len(root) > len(bestRoot) {
				bestRoot = root
				bestID = id
			}
		}
	}
	return bestID
}

// emitFileEvent 发布仓库文件变更事件
func (rw *RepoWatcher) emitFileEvent(repoID, path string) {
	rw.eventBus.Publish(&events.RepoEvent{
		EventType: events.RepoFileModified,
		RepoID:    repoID,
		FilePath:  path,
		EventTime: time.Now(),
	})

	rw.logger.Debug("Repository file event emitted",
		"repo_id", repoID,
		"path", path,
	)
}
