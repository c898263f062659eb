package storage

import (
	"database/sql"
	"fmt"
	"strings"

	domainRepo "github.com/repolens/backend/internal/domain/repository"
)

// 确保 ChunkRepositoryImpl 实现了 domainRepo.ChunkRepository 接口
var _ domainRepo.ChunkRepository = (*ChunkRepositoryImpl)(nil)

// ChunkRepositoryImpl 片段元数据仓库实现
type ChunkRepositoryImpl struct {
	db *sql.DB
}

// NewChunkRepository 创建片段元数据仓库实例
func NewChunkRepository(db *sql.DB) domainRepo.ChunkRepository {
	return &ChunkRepositoryImpl{db: db}
}

// SaveChunks 批量保存片段
// 重复摄入产生相同的 chunk_id，INSERT OR REPLACE 保证幂等
func (r *ChunkRepositoryImpl) SaveChunks(chunks []*domainRepo.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO repo_chunks (
			chunk_id, repo_id, file_path, start_line, end_line, text, kind, language
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		_, err := stmt.Exec(
			chunk.ChunkID,
			chunk.RepoID,
			chunk.FilePath,
			chunk.StartLine,
			chunk.EndLine,
			chunk.Text,
			string(chunk.Kind),
			chunk.Language,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetChunk 获取单个片段
func (r *ChunkRepositoryImpl) GetChunk(chunkID string) (*domainRepo.Chunk, error) {
	query := `
		SELECT chunk_id, repo_id, file_path, start_line, end_line, text, kind, language
		FROM repo_chunks
		WHERE chunk_id = ?`

	return scanChunk(r.db.QueryRow(query, chunkID))
}

// GetChunksByRepo 按仓库获取所有片段
func (r *ChunkRepositoryImpl) GetChunksByRepo(repoID string) ([]*domainRepo.Chunk, error) {
	query := `
		SELECT chunk_id, repo_id, file_path, start_line, end_line, text, kind, language
		FROM repo_chunks
		WHERE repo_id = ?
		ORDER BY file_path, start_line`

	rows, err := r.db.Query(query, repoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChunks(rows)
}

// GetChunkIDsByRepo 按仓库获取所有片段 ID（用于陈旧片段差集计算）
func (r *ChunkRepositoryImpl) GetChunkIDsByRepo(repoID string) ([]string, error) {
	rows, err := r.db.Query(`SELECT chunk_id FROM repo_chunks WHERE repo_id = ?`, repoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// GetChunksByIDs 批量获取片段，保持与入参相同的顺序
func (r *ChunkRepositoryImpl) GetChunksByIDs(chunkIDs []string) ([]*domainRepo.Chunk, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(chunkIDs))
	placeholders = placeholders[:len(placeholders)-1]

	query := fmt.Sprintf(`
		SELECT chunk_id, repo_id, file_path, start_line, end_line, text, kind, language
		FROM repo_chunks
		WHERE chunk_id IN (%s)`, placeholders)

	args := make([]interface{}, len(chunkIDs))
	for i, id := range chunkIDs {
		args[i] = id
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domainRepo.Chunk, len(found))
	for _, chunk := range found {
		byID[chunk.ChunkID] = chunk
	}

	ordered := make([]*domainRepo.Chunk, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		if chunk, ok := byID[id]; ok {
			ordered = append(ordered, chunk)
		}
	}

	return ordered, nil
}

// DeleteChunksByRepo 删除仓库的所有片段
func (r *ChunkRepositoryImpl) DeleteChunksByRepo(repoID string) error {
	_, err := r.db.Exec(`DELETE FROM repo_chunks WHERE repo_id = ?`, repoID)
	return err
}

// DeleteChunksByIDs 按 ID 批量删除片段
func (r *ChunkRepositoryImpl) DeleteChunksByIDs(chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`DELETE FROM repo_chunks WHERE chunk_id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range chunkIDs {
		if _, err := stmt.Exec(id); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// scanChunk 扫描单行数据到 Chunk
func scanChunk(row *sql.Row) (*domainRepo.Chunk, error) {
	var chunk domainRepo.Chunk
	var kind string
	var language sql.NullString

	err := row.Scan(
		&chunk.ChunkID,
		&chunk.RepoID,
		&chunk.FilePath,
		&chunk.StartLine,
		&chunk.EndLine,
		&chunk.Text,
		&kind,
		&language,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	chunk.Kind = domainRepo.ChunkKind(kind)
	if language.Valid {
		chunk.Language = language.String
	}

	return &chunk, nil
}

// scanChunks 扫描多行数据到 Chunk 切片
func scanChunks(rows *sql.Rows) ([]*domainRepo.Chunk, error) {
	var results []*domainRepo.Chunk

	for rows.Next() {
		var chunk domainRepo.Chunk
		var kind string
		var language sql.NullString

		err := rows.Scan(
			&chunk.ChunkID,
			&chunk.RepoID,
			&chunk.FilePath,
			&chunk.StartLine,
			&chunk.EndLine,
			&chunk.Text,
			&kind,
			&language,
		)
		if err != nil {
			return nil, err
		}

		chunk.Kind = domainRepo.ChunkKind(kind)
		if language.Valid {
			chunk.Language = language.String
		}

		results = append(results, &chunk)
	}

	return results, rows.Err()
}
