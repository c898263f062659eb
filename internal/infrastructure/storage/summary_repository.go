package storage

import (
	"database/sql"
	"encoding/json"

	domainRepo "github.com/repolens/backend/internal/domain/repository"
)

// 确保 SummaryRepositoryImpl 实现了 domainRepo.SummaryRepository 接口
var _ domainRepo.SummaryRepository = (*SummaryRepositoryImpl)(nil)

// SummaryRepositoryImpl 仓库摘要仓库实现
type SummaryRepositoryImpl struct {
	db *sql.DB
}

// NewSummaryRepository 创建仓库摘要仓库实例
func NewSummaryRepository(db *sql.DB) domainRepo.SummaryRepository {
	return &SummaryRepositoryImpl{db: db}
}

// SaveSummary 保存仓库摘要，已存在时整体覆盖
func (r *SummaryRepositoryImpl) SaveSummary(summary *domainRepo.RepositorySummary) error {
	frameworksJSON, _ := json.Marshal(summary.Frameworks)
	languagesJSON, _ := json.Marshal(summary.Languages)
	notesJSON, _ := json.Marshal(summary.ArchitectureNotes)

	query := `
		INSERT OR REPLACE INTO repo_summaries (
			repo_id, frameworks, languages, architecture_notes, generated_at
		) VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.Exec(
		query,
		summary.RepoID,
		string(frameworksJSON),
		string(languagesJSON),
		string(notesJSON),
		summary.GeneratedAt,
	)

	return err
}

// GetSummary 获取仓库摘要，不存在时返回 nil
func (r *SummaryRepositoryImpl) GetSummary(repoID string) (*domainRepo.RepositorySummary, error) {
	query := `
		SELECT repo_id, frameworks, languages, architecture_notes, generated_at
		FROM repo_summaries
		WHERE repo_id = ?`

	var summary domainRepo.RepositorySummary
	var frameworksJSON, languagesJSON, notesJSON sql.NullString

	err := r.db.QueryRow(query, repoID).Scan(
		&summary.RepoID,
		&frameworksJSON,
		&languagesJSON,
		&notesJSON,
		&summary.GeneratedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if frameworksJSON.Valid {
		json.Unmarshal([]byte(frameworksJSON.String), &summary.Frameworks)
	}
	if languagesJSON.Valid {
		json.Unmarshal([]byte(languagesJSON.String), &summary.Languages)
	}
	if notesJSON.Valid {
		json.Unmarshal([]byte(notesJSON.String), &summary.ArchitectureNotes)
	}

	return &summary, nil
}

// DeleteSummary 删除仓库摘要
func (r *SummaryRepositoryImpl) DeleteSummary(repoID string) error {
	_, err := r.db.Exec(`DELETE FROM repo_summaries WHERE repo_id = ?`, repoID)
	return err
}
