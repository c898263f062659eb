package repository

// RepositorySummary 仓库智能摘要
// 每个仓库一份，重新分析时整体覆盖（不保留历史版本）
// 仅当 GeneratedAt 晚于仓库最后一次摄入时有效，否则视为过期
type RepositorySummary struct {
	RepoID            string   `json:"repo_id"`
	Frameworks        []string `json:"frameworks"`         // 去重后的框架集合
	Languages         []string `json:"languages"`          // 检测到的语言集合
	ArchitectureNotes []string `json:"architecture_notes"` // 有序的架构说明
	GeneratedAt       int64    `json:"generated_at"`       // 毫秒时间戳
}

// IsStale 判断摘要是否过期
// lastIngestAt 为该仓库最后一次摄入完成的毫秒时间戳
func (s *RepositorySummary) IsStale(lastIngestAt int64) bool {
	return s.GeneratedAt < lastIngestAt
}

// IngestRecord 仓库摄入记录（用于摘要过期检测与统计）
type IngestRecord struct {
	RepoID     string
	ChunkCount int
	IngestedAt int64 // 毫秒时间戳
}
