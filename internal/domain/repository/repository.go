package repository

// ChunkRepository 片段元数据仓库接口
type ChunkRepository interface {
	SaveChunks(chunks []*Chunk) error
	GetChunk(chunkID string) (*Chunk, error)
	GetChunksByRepo(repoID string) ([]*Chunk, error)
	GetChunkIDsByRepo(repoID string) ([]string, error)
	GetChunksByIDs(chunkIDs []string) ([]*Chunk, error)
	DeleteChunksByRepo(repoID string) error
	DeleteChunksByIDs(chunkIDs []string) error
}

// SummaryRepository 仓库摘要仓库接口
type SummaryRepository interface {
	SaveSummary(summary *RepositorySummary) error
	GetSummary(repoID string) (*RepositorySummary, error)
	DeleteSummary(repoID string) error
}

// IngestRecordRepository 摄入记录仓库接口
type IngestRecordRepository interface {
	SaveIngestRecord(record *IngestRecord) error
	GetIngestRecord(repoID string) (*IngestRecord, error)
	DeleteIngestRecord(repoID string) error
}
