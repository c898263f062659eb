package storage

import (
	"database/sql"
	"encoding/json"

	domainConv "github.com/repolens/backend/internal/domain/conversation"
)

// 确保 ConversationRepositoryImpl 实现了 domainConv.ConversationRepository 接口
var _ domainConv.ConversationRepository = (*ConversationRepositoryImpl)(nil)

// ConversationRepositoryImpl 会话状态仓库实现
type ConversationRepositoryImpl struct {
	db *sql.DB
}

// NewConversationRepository 创建会话状态仓库实例
func NewConversationRepository(db *sql.DB) domainConv.ConversationRepository {
	return &ConversationRepositoryImpl{db: db}
}

// AppendTurn 追加一轮对话，会话不存在时自动创建
func (r *ConversationRepositoryImpl) AppendTurn(sessionID, repoID string, turn *domainConv.Turn) error {
	chunkIDsJSON, _ := json.Marshal(turn.RetrievedChunkIDs)

	query := `
		INSERT INTO conversation_turns (session_id, repo_id, role, text, retrieved_chunk_ids, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.Exec(
		query,
		sessionID,
		repoID,
		string(turn.Role),
		turn.Text,
		string(chunkIDsJSON),
		turn.Timestamp,
	)

	return err
}

// GetTurns 按追加顺序返回全部历史
func (r *ConversationRepositoryImpl) GetTurns(sessionID string) ([]*domainConv.Turn, error) {
	query := `
		SELECT role, text, retrieved_chunk_ids, timestamp
		FROM conversation_turns
		WHERE session_id = ?
		ORDER BY id`

	rows, err := r.db.Query(query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []*domainConv.Turn
	for rows.Next() {
		var turn domainConv.Turn
		var role string
		var chunkIDsJSON sql.NullString

		if err := rows.Scan(&role, &turn.Text, &chunkIDsJSON, &turn.Timestamp); err != nil {
			return nil, err
		}

		turn.Role = domainConv.Role(role)
		if chunkIDsJSON.Valid {
			json.Unmarshal([]byte(chunkIDsJSON.String), &turn.RetrievedChunkIDs)
		}

		turns = append(turns, &turn)
	}

	return turns, rows.Err()
}

// GetState 返回完整会话状态（含检查点），会话不存在时返回 nil
func (r *ConversationRepositoryImpl) GetState(sessionID string) (*domainConv.ConversationState, error) {
	var repoID string
	err := r.db.QueryRow(
		`SELECT repo_id FROM conversation_turns WHERE session_id = ? ORDER BY id LIMIT 1`,
		sessionID,
	).Scan(&repoID)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	turns, err := r.GetTurns(sessionID)
	if err != nil {
		return nil, err
	}

	state := &domainConv.ConversationState{
		SessionID: sessionID,
		RepoID:    repoID,
		Turns:     turns,
	}

	var payload []byte
	err = r.db.QueryRow(
		`SELECT payload FROM orchestrator_checkpoints WHERE session_id = ?`,
		sessionID,
	).Scan(&payload)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	state.Checkpoint = payload

	return state, nil
}

// DeleteSession 删除会话的全部历史与检查点
func (r *ConversationRepositoryImpl) DeleteSession(sessionID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM conversation_turns WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM orchestrator_checkpoints WHERE session_id = ?`, sessionID); err != nil {
		return err
	}

	return tx.Commit()
}
