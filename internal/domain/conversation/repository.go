package conversation

// ConversationRepository 会话状态仓库接口
type ConversationRepository interface {
	// AppendTurn 追加一轮对话，会话不存在时自动创建
	AppendTurn(sessionID, repoID string, turn *Turn) error
	// GetTurns 按时间顺序返回全部历史
	GetTurns(sessionID string) ([]*Turn, error)
	// GetState 返回完整会话状态（含检查点）
	GetState(sessionID string) (*ConversationState, error)
	DeleteSession(sessionID string) error
}

// CheckpointRepository 编排检查点仓库接口
// 检查点在每次节点转移后整体替换，恢复时按会话读取
type CheckpointRepository interface {
	SaveCheckpoint(sessionID string, payload []byte) error
	GetCheckpoint(sessionID string) ([]byte, error)
	DeleteCheckpoint(sessionID string) error
}
