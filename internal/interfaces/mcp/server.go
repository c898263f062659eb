package mcp

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/repolens/backend/internal/application/analyzer"
	"github.com/repolens/backend/internal/application/retrieval"
	"github.com/repolens/backend/internal/application/session"
)

// MCPServer MCP 服务器
// 将检索与问答能力以 MCP 工具的形式暴露给 AI 客户端
type MCPServer struct {
	server          *mcp.Server
	handler         http.Handler
	retrievalSvc    *retrieval.Service
	sessions        *session.Manager
	analyzerService *analyzer.Service
}

// NewServer 创建 MCP 服务器
func NewServer(
	retrievalSvc *retrieval.Service,
	sessions *session.Manager,
	analyzerService *analyzer.Service,
) *MCPServer {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "repolens-daemon",
			Version: "0.1.0",
		},
		nil, // 使用默认能力
	)

	mcpServer := &MCPServer{
		server:          server,
		retrievalSvc:    retrievalSvc,
		sessions:        sessions,
		analyzerService: analyzerService,
	}

	// 注册工具：search_repository
	mcp.AddTool(server, &mcp.Tool{
		Name: "search_repository",
		Description: `Semantically search an ingested code repository for relevant code chunks.

Parameters:
- repo_id (string, required): Repository identifier used at ingestion time
- query (string, required): Natural language description of the code you are looking for
- path_glob (string, optional): Restrict results to files matching this glob, e.g. "internal/**/*.go"
- limit (int, optional): Maximum number of results (1-100, defaults to server config)

Returns: Ranked list of code chunks with file path, line range, similarity score, and text.`,
	}, mcpServer.searchRepositoryTool)

	// 注册工具：ask_repository
	mcp.AddTool(server, &mcp.Tool{
		Name: "ask_repository",
		Description: `Ask a natural-language question about an ingested repository and get a grounded answer with citations.

Parameters:
- repo_id (string, required): Repository identifier used at ingestion time
- query (string, required): The question to answer
- session_id (string, optional): Session to continue; omit to start a new conversation

Returns: Answer text, cited chunk IDs, confidence level (normal/low), and the session ID for follow-up questions.`,
	}, mcpServer.askRepositoryTool)

	// 注册工具：get_repository_summary
	mcp.AddTool(server, &mcp.Tool{
		Name: "get_repository_summary",
		Description: `Get the cached intelligence summary of an ingested repository (recomputed if stale).

Parameters:
- repo_id (string, required): Repository identifier used at ingestion time

Returns: Detected frameworks, languages, and architecture notes.`,
	}, mcpServer.repositorySummaryTool)

	// 创建 SSE Handler
	handler := mcp.NewSSEHandler(
		func(r *http.Request) *mcp.Server {
			// 每个请求返回同一个服务器实例
			return server
		},
		nil, // SSEOptions，使用默认值
	)

	mcpServer.handler = handler
	return mcpServer
}

// GetHandler 获取 HTTP Handler（用于集成到 HTTP 服务器）
func (s *MCPServer) GetHandler() http.Handler {
	return s.handler
}
