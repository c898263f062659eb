package wire

import (
	"context"
	"database/sql"
	"time"

	"log/slog"

	"github.com/repolens/backend/internal/application/analyzer"
	"github.com/repolens/backend/internal/domain/events"
	"github.com/repolens/backend/internal/infrastructure/embedding"
	applog "github.com/repolens/backend/internal/infrastructure/log"
	"github.com/repolens/backend/internal/infrastructure/vector"
	"github.com/repolens/backend/internal/infrastructure/watcher"
	"github.com/repolens/backend/internal/infrastructure/websocket"
	"github.com/repolens/backend/internal/interfaces"
)

// App 应用主结构，组合所有服务
type App struct {
	HTTPServer      *interfaces.HTTPServer
	MCPServer       *interfaces.MCPServer
	wsHub           *websocket.Hub
	analyzerService *analyzer.Service
	repoWatcher     *watcher.RepoWatcher
	eventBus        events.EventBus
	vectorManager   *vector.Manager
	embedder        *embedding.Client
	db              *sql.DB
	logger          *slog.Logger

	unsubscribeAnalyzer func()
}

// NewApp 创建应用实例
func NewApp(
	httpServer *interfaces.HTTPServer,
	mcpServer *interfaces.MCPServer,
	wsHub *websocket.Hub,
	analyzerService *analyzer.Service,
	repoWatcher *watcher.RepoWatcher,
	eventBus events.EventBus,
	vectorManager *vector.Manager,
	embedder *embedding.Client,
	db *sql.DB,
) *App {
	return &App{
		HTTPServer:      httpServer,
		MCPServer:       mcpServer,
		wsHub:           wsHub,
		analyzerService: analyzerService,
		repoWatcher:     repoWatcher,
		eventBus:        eventBus,
		vectorManager:   vectorManager,
		embedder:        embedder,
		db:              db,
		logger:          applog.NewModuleLogger("app", "main"),
	}
}

// Start 启动所有服务
func (a *App) Start() error {
	a.logger.Info("Starting RepoLens backend application")

	// 连接向量库并确保集合就绪
	// 集合向量维度必须与向量化模型维度一致
	if err := a.vectorManager.Connect(10 * time.Second); err != nil {
		a.logger.Error("Failed to connect to vector store", "error", err)
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.vectorManager.EnsureCollection(ctx, uint64(a.embedder.Dimension())); err != nil {
		a.logger.Error("Failed to ensure vector collection", "error", err)
		return err
	}

	// 分析服务订阅仓库事件（摄入完成异步分析、文件变更标记过期）
	a.unsubscribeAnalyzer = a.analyzerService.Start()

	// 启动仓库文件监听
	if a.repoWatcher != nil {
		if err := a.repoWatcher.Start(); err != nil {
			a.logger.Error("Failed to start repository watcher", "error", err)
		}
	}

	// 启动 WebSocket Hub
	a.wsHub.Start()

	// 启动 HTTP 服务器（goroutine）
	go func() {
		if err := a.HTTPServer.Start(); err != nil {
			a.logger.Error("HTTP server stopped", "error", err)
		}
	}()

	a.logger.Info("RepoLens backend application started successfully")

	// MCP 服务器通过 HTTP Handler 提供服务，已注册 /mcp/sse 端点

	return nil
}

// Stop 停止所有服务
func (a *App) Stop() error {
	a.logger.Info("Stopping RepoLens backend application")

	if a.repoWatcher != nil {
		a.repoWatcher.Stop()
	}

	if a.unsubscribeAnalyzer != nil {
		a.unsubscribeAnalyzer()
	}

	if a.eventBus != nil {
		a.eventBus.Close()
		a.logger.Info("Event bus closed")
	}

	if err := a.HTTPServer.Stop(); err != nil {
		a.logger.Error("Failed to stop HTTP server", "error", err)
		return err
	}

	if err := a.vectorManager.Close(); err != nil {
		a.logger.Error("Failed to close vector store connection", "error", err)
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Failed to close database connection", "error", err)
			return err
		}
	}

	a.logger.Info("RepoLens backend application stopped successfully")

	return nil
}
