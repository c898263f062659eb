package storage

import (
	"database/sql"

	domainRepo "github.com/repolens/backend/internal/domain/repository"
)

// 确保 IngestRecordRepositoryImpl 实现了 domainRepo.IngestRecordRepository 接口
var _ domainRepo.IngestRecordRepository = (*IngestRecordRepositoryImpl)(nil)

// IngestRecordRepositoryImpl 摄入记录仓库实现
type IngestRecordRepositoryImpl struct {
	db *sql.DB
}

// NewIngestRecordRepository 创建摄入记录仓库实例
func NewIngestRecordRepository(db *sql.DB) domainRepo.IngestRecordRepository {
	return &IngestRecordRepositoryImpl{db: db}
}

// SaveIngestRecord 保存摄入记录，每个仓库只保留最近一条
func (r *IngestRecordRepositoryImpl) SaveIngestRecord(record *domainRepo.IngestRecord) error {
	query := `
		INSERT OR REPLACE INTO ingest_records (repo_id, chunk_count, ingested_at)
		VALUES (?, ?, ?)`

	_, err := r.db.Exec(query, record.RepoID, record.ChunkCount, record.IngestedAt)
	return err
}

// GetIngestRecord 获取摄入记录，不存在时返回 nil
func (r *IngestRecordRepositoryImpl) GetIngestRecord(repoID string) (*domainRepo.IngestRecord, error) {
	query := `
		SELECT repo_id, chunk_count, ingested_at
		FROM ingest_records
		WHERE repo_id = ?`

	var record domainRepo.IngestRecord
	err := r.db.QueryRow(query, repoID).Scan(
		&record.RepoID,
		&record.ChunkCount,
		&record.IngestedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// DeleteIngestRecord 删除摄入记录
func (r *IngestRecordRepositoryImpl) DeleteIngestRecord(repoID string) error {
	_, err := r.db.Exec(`DELETE FROM ingest_records WHERE repo_id = ?`, repoID)
	return err
}
