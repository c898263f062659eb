package retrieval

import "fmt"

// RetrievalDegradedError 检索降级错误
// 向量化或索引查询失败时返回，调用方可选择无引用的降级回答
type RetrievalDegradedError struct {
	RepoID string
	Err    error
}

func (e *RetrievalDegradedError) Error() string {
	return fmt.Sprintf("retrieval degraded for repo %s: %v", e.RepoID, e.Err)
}

func (e *RetrievalDegradedError) Unwrap() error {
	return e.Err
}
