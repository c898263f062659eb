package config

import "os"

const (
	// EnvHTTPPort HTTP 端口环境变量名
	EnvHTTPPort = "REPOLENS_HTTP_PORT"
	// EnvConfigFile 配置文件路径环境变量名
	EnvConfigFile = "REPOLENS_CONFIG_FILE"
)

// Config 应用配置
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Qdrant        QdrantConfig        `yaml:"qdrant"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	LLM           LLMConfig           `yaml:"llm"`
	Orchestrator  OrchestratorConfig  `yaml:"orchestrator"`
	Documentation DocumentationConfig `yaml:"documentation"`
	WebSocket     WebSocketConfig     `yaml:"websocket"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTPPort string `yaml:"http_port"` // 固定端口，用于单例锁
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Path string `yaml:"path"` // 留空表示使用数据目录下的默认路径
}

// QdrantConfig 向量库配置
type QdrantConfig struct {
	Host       string `yaml:"host"`
	GRPCPort   int    `yaml:"grpc_port"`
	Collection string `yaml:"collection"`
}

// EmbeddingConfig 向量化服务配置
// 不可变：构造 Embedder 时复制传入，运行期不允许修改，
// 以便多个模型版本在迁移期间共存
type EmbeddingConfig struct {
	BaseURL      string `yaml:"base_url"`
	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
	ModelVersion string `yaml:"model_version"`
	Dimension    int    `yaml:"dimension"`
	BatchSize    int    `yaml:"batch_size"`
	MaxRetries   int    `yaml:"max_retries"`
}

// LLMConfig 生成模型配置
type LLMConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	MaxRetries int    `yaml:"max_retries"`
}

// OrchestratorConfig 检索编排配置
type OrchestratorConfig struct {
	// SearchLimit 单次检索返回的候选数量
	SearchLimit int `yaml:"search_limit"`
	// TokenBudget 上下文组装的 token 预算
	TokenBudget int `yaml:"token_budget"`
	// ContextCharLimit 上下文字符数上限（独立于 token 预算）
	ContextCharLimit int `yaml:"context_char_limit"`
	// MaxValidationRetries 校验失败后的重新生成次数上限
	MaxValidationRetries int `yaml:"max_validation_retries"`
	// HistoryWindow 提示词中携带的最大历史轮次
	HistoryWindow int `yaml:"history_window"`
}

// DocumentationConfig 文档生成配置
type DocumentationConfig struct {
	// MaxConcurrentSections 并发生成的章节数上限
	MaxConcurrentSections int `yaml:"max_concurrent_sections"`
	// DefaultPersona 默认视角：sde|pm|both
	DefaultPersona string `yaml:"default_persona"`
}

// WebSocketConfig WebSocket 配置
type WebSocketConfig struct {
	ReadBufferSize  int `yaml:"read_buffer_size"`
	WriteBufferSize int `yaml:"write_buffer_size"`
}

// NewConfig 创建配置（默认值 + 配置文件覆盖 + 环境变量覆盖）
func NewConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			HTTPPort: ":19870",
		},
		Database: DatabaseConfig{
			Path: "",
		},
		Qdrant: QdrantConfig{
			Host:       "localhost",
			GRPCPort:   6334,
			Collection: "repo_chunks",
		},
		Embedding: EmbeddingConfig{
			BaseURL:      "https://api.openai.com/v1",
			Model:        "text-embedding-3-small",
			ModelVersion: "text-embedding-3-small",
			Dimension:    1536,
			BatchSize:    64,
			MaxRetries:   3,
		},
		LLM: LLMConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-4o-mini",
			MaxRetries: 3,
		},
		Orchestrator: OrchestratorConfig{
			SearchLimit:          12,
			TokenBudget:          4000,
			ContextCharLimit:     12000,
			MaxValidationRetries: 2,
			HistoryWindow:        10,
		},
		Documentation: DocumentationConfig{
			MaxConcurrentSections: 4,
			DefaultPersona:        "both",
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	// 配置文件覆盖（可选）
	if path := configFilePath(); path != "" {
		_ = loadFromFile(cfg, path)
	}

	// 环境变量覆盖
	if port := os.Getenv(EnvHTTPPort); port != "" {
		cfg.Server.HTTPPort = port
	}

	return cfg
}

// NewServerConfig 创建服务器配置
func NewServerConfig(cfg *Config) *ServerConfig {
	return &cfg.Server
}

// NewDatabaseConfig 创建数据库配置
func NewDatabaseConfig(cfg *Config) *DatabaseConfig {
	return &cfg.Database
}

// NewQdrantConfig 创建向量库配置
func NewQdrantConfig(cfg *Config) *QdrantConfig {
	return &cfg.Qdrant
}

// NewEmbeddingConfig 创建向量化配置
func NewEmbeddingConfig(cfg *Config) EmbeddingConfig {
	// 按值返回：Embedder 持有副本，配置不可变
	return cfg.Embedding
}

// NewLLMConfig 创建生成模型配置
func NewLLMConfig(cfg *Config) *LLMConfig {
	return &cfg.LLM
}

// NewOrchestratorConfig 创建编排配置
func NewOrchestratorConfig(cfg *Config) *OrchestratorConfig {
	return &cfg.Orchestrator
}

// NewDocumentationConfig 创建文档生成配置
func NewDocumentationConfig(cfg *Config) *DocumentationConfig {
	return &cfg.Documentation
}

// NewWebSocketConfig 创建 WebSocket 配置
func NewWebSocketConfig(cfg *Config) *WebSocketConfig {
	return &cfg.WebSocket
}
