package events

import "time"

// RepoEvent 仓库级事件
// 摄入完成、文件变更、仓库删除共用此结构
type RepoEvent struct {
	// EventType 事件类型
	EventType EventType
	// RepoID 仓库 ID
	RepoID string
	// FilePath 触发事件的文件路径（仅文件变更事件携带）
	FilePath string
	// ChunkCount 摄入的片段数量（仅摄入完成事件携带）
	ChunkCount int
	// EventTime 事件发生时间
	EventTime time.Time
}

// Type 实现 Event 接口
func (e *RepoEvent) Type() EventType {
	return e.EventType
}

// Timestamp 实现 Event 接口
func (e *RepoEvent) Timestamp() time.Time {
	return e.EventTime
}
