package interfaces

import (
	"github.com/repolens/backend/internal/interfaces/http"
	"github.com/repolens/backend/internal/interfaces/mcp"
)

// HTTPServer HTTP 服务器类型别名
type HTTPServer = http.HTTPServer

// MCPServer MCP 服务器类型别名
type MCPServer = mcp.MCPServer
