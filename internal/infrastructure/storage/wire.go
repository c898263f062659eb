package storage

import (
	"database/sql"
	"fmt"

	"github.com/google/wire"

	"github.com/repolens/backend/internal/infrastructure/config"
)

// ProvideDB 提供数据库连接
func ProvideDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := OpenDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

// ProviderSet Storage 基础设施层 ProviderSet
var ProviderSet = wire.NewSet(
	ProvideDB,                 // 提供数据库连接
	NewChunkRepository,        // 片段元数据仓储
	NewSummaryRepository,      // 仓库摘要仓储
	NewIngestRecordRepository, // 摄入记录仓储
	NewConversationRepository, // 会话状态仓储
	NewCheckpointRepository,   // 编排检查点仓储
	NewDraftRepository,        // 文档草稿仓储
)
