package storage

import (
	"database/sql"
	"encoding/json"

	domainDoc "github.com/repolens/backend/internal/domain/document"
)

// 确保 DraftRepositoryImpl 实现了 domainDoc.DraftRepository 接口
var _ domainDoc.DraftRepository = (*DraftRepositoryImpl)(nil)

// DraftRepositoryImpl 文档草稿仓库实现
type DraftRepositoryImpl struct {
	db *sql.DB
}

// NewDraftRepository 创建文档草稿仓库实例
func NewDraftRepository(db *sql.DB) domainDoc.DraftRepository {
	return &DraftRepositoryImpl{db: db}
}

// SaveDraft 保存文档草稿
func (r *DraftRepositoryImpl) SaveDraft(draft *domainDoc.DocumentDraft) error {
	sectionsJSON, _ := json.Marshal(draft.Sections)

	query := `
		INSERT OR REPLACE INTO document_drafts (doc_id, repo_id, sections, created_at)
		VALUES (?, ?, ?, ?)`

	_, err := r.db.Exec(query, draft.DocID, draft.RepoID, string(sectionsJSON), draft.CreatedAt)
	return err
}

// GetDraft 获取文档草稿，不存在时返回 nil
func (r *DraftRepositoryImpl) GetDraft(docID string) (*domainDoc.DocumentDraft, error) {
	query := `
		SELECT doc_id, repo_id, sections, created_at
		FROM document_drafts
		WHERE doc_id = ?`

	return scanDraft(r.db.QueryRow(query, docID))
}

// GetDraftsByRepo 按仓库获取文档草稿，新的在前
func (r *DraftRepositoryImpl) GetDraftsByRepo(repoID string) ([]*domainDoc.DocumentDraft, error) {
	query := `
		SELECT doc_id, repo_id, sections, created_at
		FROM document_drafts
		WHERE repo_id = ?
		ORDER BY created_at DESC`

	rows, err := r.db.Query(query, repoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domainDoc.DocumentDraft
	for rows.Next() {
		var draft domainDoc.DocumentDraft
		var sectionsJSON sql.NullString

		if err := rows.Scan(&draft.DocID, &draft.RepoID, &sectionsJSON, &draft.CreatedAt); err != nil {
			return nil, err
		}
		if sectionsJSON.Valid {
			json.Unmarshal([]byte(sectionsJSON.String), &draft.Sections)
		}

		results = append(results, &draft)
	}

	return results, rows.Err()
}

// DeleteDraftsByRepo 删除仓库的所有文档草稿
func (r *DraftRepositoryImpl) DeleteDraftsByRepo(repoID string) error {
	_, err := r.db.Exec(`DELETE FROM document_drafts WHERE repo_id = ?`, repoID)
	return err
}

// scanDraft 扫描单行数据到 DocumentDraft
func scanDraft(row *sql.Row) (*domainDoc.DocumentDraft, error) {
	var draft domainDoc.DocumentDraft
	var sectionsJSON sql.NullString

	err := row.Scan(&draft.DocID, &draft.RepoID, &sectionsJSON, &draft.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if sectionsJSON.Valid {
		json.Unmarshal([]byte(sectionsJSON.String), &draft.Sections)
	}

	return &draft, nil
}
