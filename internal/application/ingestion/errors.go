package ingestion

import "fmt"

// IngestionError 摄入失败错误
// 摄入任一阶段失败都会包装为此类型，已建立的索引保持不变
type IngestionError struct {
	RepoID string
	Stage  string // chunk / embed / index / persist
	Err    error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failed for repo %s at stage %s: %v", e.RepoID, e.Stage, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}
