package repository

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ChunkKind 片段类型
type ChunkKind string

const (
	ChunkKindFile     ChunkKind = "file"
	ChunkKindFunction ChunkKind = "function"
	ChunkKindClass    ChunkKind = "class"
	ChunkKindBlock    ChunkKind = "block"
)

// Chunk 代码片段模型
// 检索的最小可寻址单位，创建后不可变
// 身份由 (repo_id, file_path, start_line, end_line) 哈希决定
type Chunk struct {
	ChunkID   string    // sha256(repo_id|file_path|start_line|end_line)
	RepoID    string    // 所属仓库 ID
	FilePath  string    // 仓库内相对路径
	StartLine int       // 起始行（1 起）
	EndLine   int       // 结束行（含）
	Text      string    // 片段文本
	Kind      ChunkKind // file/function/class/block
	Language  string    // 检测到的语言
}

// NewChunkID 根据身份四元组计算片段 ID
func NewChunkID(repoID, filePath string, startLine, endLine int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%d", repoID, filePath, startLine, endLine)))
	return hex.EncodeToString(h[:])
}

// LineCount 片段行数
func (c *Chunk) LineCount() int {
	if c.EndLine < c.StartLine {
		return 0
	}
	return c.EndLine - c.StartLine + 1
}

// Preview 获取片段文本预览（前 200 字符）
func (c *Chunk) Preview() string {
	if len(c.Text) <= 200 {
		return c.Text
	}
	return c.Text[:200] + "..."
}

// EmbeddingRecord 片段向量记录
// 与 Chunk 在给定模型版本下一一对应，创建后只读
// 模型升级期间同一片段可存在多条记录，按 ModelVersion 区分
type EmbeddingRecord struct {
	ChunkID      string
	Vector       []float32
	ModelVersion string
}

// RetrievalResult 单次查询的瞬态检索结果，不持久化
type RetrievalResult struct {
	ChunkID string  `json:"chunk_id"`
	Score   float32 `json:"score"`
	Rank    int     `json:"rank"`

	// 冗余携带的元数据，便于重排与上下文组装
	FilePath  string `json:"file_path,omitempty"`
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
	Text      string `json:"text,omitempty"`
}
