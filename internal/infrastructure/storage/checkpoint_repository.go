package storage

import (
	"database/sql"
	"time"

	domainConv "github.com/repolens/backend/internal/domain/conversation"
)

// 确保 CheckpointRepositoryImpl 实现了 domainConv.CheckpointRepository 接口
var _ domainConv.CheckpointRepository = (*CheckpointRepositoryImpl)(nil)

// CheckpointRepositoryImpl 编排检查点仓库实现
// 每个会话只保留最新的检查点，整体替换
type CheckpointRepositoryImpl struct {
	db *sql.DB
}

// NewCheckpointRepository 创建编排检查点仓库实例
func NewCheckpointRepository(db *sql.DB) domainConv.CheckpointRepository {
	return &CheckpointRepositoryImpl{db: db}
}

// SaveCheckpoint 保存检查点，已存在时整体替换
func (r *CheckpointRepositoryImpl) SaveCheckpoint(sessionID string, payload []byte) error {
	query := `
		INSERT OR REPLACE INTO orchestrator_checkpoints (session_id, payload, updated_at)
		VALUES (?, ?, ?)`

	_, err := r.db.Exec(query, sessionID, payload, time.Now().UnixMilli())
	return err
}

// GetCheckpoint 获取检查点，不存在时返回 nil
func (r *CheckpointRepositoryImpl) GetCheckpoint(sessionID string) ([]byte, error) {
	var payload []byte
	err := r.db.QueryRow(
		`SELECT payload FROM orchestrator_checkpoints WHERE session_id = ?`,
		sessionID,
	).Scan(&payload)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return payload, nil
}

// DeleteCheckpoint 删除检查点
func (r *CheckpointRepositoryImpl) DeleteCheckpoint(sessionID string) error {
	_, err := r.db.Exec(`DELETE FROM orchestrator_checkpoints WHERE session_id = ?`, sessionID)
	return err
}
