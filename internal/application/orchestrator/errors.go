package orchestrator

import "fmt"

// GenerationError 生成失败错误
// LLM 重试耗尽后返回，绝不以空答案冒充成功
type GenerationError struct {
	SessionID string
	Reason    string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for session %s: %s", e.SessionID, e.Reason)
}

// ErrNoCheckpoint 会话没有可恢复的检查点
var ErrNoCheckpoint = fmt.Errorf("no checkpoint to resume")
