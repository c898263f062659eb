package conversation

// Role 对话角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Confidence 答案置信度
type Confidence string

const (
	ConfidenceNormal Confidence = "normal"
	ConfidenceLow    Confidence = "low"
)

// Turn 单轮对话
type Turn struct {
	Role              Role     `json:"role"`
	Text              string   `json:"text"`
	RetrievedChunkIDs []string `json:"retrieved_chunk_ids,omitempty"`
	Timestamp         int64    `json:"timestamp"` // 毫秒时间戳
}

// ConversationState 会话状态
// turns 仅追加且严格按时间排序；checkpoint 在每轮完成后整体替换
type ConversationState struct {
	SessionID  string  `json:"session_id"`
	RepoID     string  `json:"repo_id"`
	Turns      []*Turn `json:"turns"`
	Checkpoint []byte  `json:"-"` // 序列化后的编排检查点
}

// Answer 编排器返回的答案
type Answer struct {
	Text          string     `json:"text"`
	CitedChunkIDs []string   `json:"cited_chunk_ids"`
	Confidence    Confidence `json:"confidence"`
}
