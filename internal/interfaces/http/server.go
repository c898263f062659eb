package http

import (
	"context"
	"net/http"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/repolens/backend/internal/infrastructure/config"
	"github.com/repolens/backend/internal/infrastructure/log"
	"github.com/repolens/backend/internal/interfaces/http/handler"
	"github.com/repolens/backend/internal/interfaces/http/middleware"
	"github.com/repolens/backend/internal/interfaces/mcp"
)

// HTTPServer HTTP 服务器
type HTTPServer struct {
	router   *gin.Engine
	httpPort string
	server   *http.Server
	logger   *slog.Logger
}

// NewServer 创建 HTTP 服务器
func NewServer(
	repoHandler *handler.RepoHandler,
	askHandler *handler.AskHandler,
	docsHandler *handler.DocsHandler,
	eventsHandler *handler.EventsHandler,
	mcpServer *mcp.MCPServer,
	cfg *config.ServerConfig,
) *HTTPServer {
	router := gin.Default()
	router.Use(middleware.EnsureUTF8Body())

	logger := log.NewModuleLogger("http", "server")

	// 注册路由
	api := router.Group("/api")
	{
		repos := api.Group("/repos/:repoID")
		{
			repos.POST("/ingest", repoHandler.Ingest)
			repos.GET("/search", repoHandler.Search)
			repos.GET("/summary", repoHandler.Summary)
			repos.DELETE("", repoHandler.Delete)

			repos.POST("/ask", askHandler.Ask)

			repos.POST("/docs", docsHandler.Generate)
			repos.GET("/docs", docsHandler.ListDrafts)
		}

		sessions := api.Group("/sessions/:sessionID")
		{
			sessions.POST("/resume", askHandler.Resume)
			sessions.GET("/history", askHandler.History)
			sessions.DELETE("", askHandler.DeleteSession)
		}

		api.GET("/docs/:docID", docsHandler.GetDraft)
	}

	// 流水线事件推送
	router.GET("/ws/events", eventsHandler.Events)

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// MCP SSE 端点
	if mcpServer != nil {
		router.Any("/mcp/sse", gin.WrapH(mcpServer.GetHandler()))
	}

	return &HTTPServer{
		router:   router,
		httpPort: cfg.HTTPPort,
		logger:   logger,
	}
}

// Start 启动服务器
func (s *HTTPServer) Start() error {
	s.server = &http.Server{
		Addr:    s.httpPort,
		Handler: s.router,
	}

	s.logger.Info("HTTP server starting",
		"port", s.httpPort,
	)

	return s.server.ListenAndServe()
}

// Shutdown 优雅关闭
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Stop 停止服务器
func (s *HTTPServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}
