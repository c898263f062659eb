// Package events 定义领域事件类型和接口
// 用于系统内部的事件驱动通信
package events

import "time"

// EventType 事件类型标识
type EventType string

// 仓库相关事件类型
const (
	// RepoIngested 仓库摄入完成事件
	RepoIngested EventType = "repo.ingested"
	// RepoFileModified 已摄入仓库的文件发生变更事件
	RepoFileModified EventType = "repo.file.modified"
	// RepoDeleted 仓库删除事件
	RepoDeleted EventType = "repo.deleted"
)

// Event 领域事件接口
// 所有事件类型都必须实现此接口
type Event interface {
	// Type 返回事件类型
	Type() EventType
	// Timestamp 返回事件发生时间
	Timestamp() time.Time
}
