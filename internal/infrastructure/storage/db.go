package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/repolens/backend/internal/infrastructure/config"
)

// GetDBPath 获取 repolens 数据库路径
// 配置指定路径时优先使用，否则落在数据目录下
// Windows: %USERPROFILE%\.repolens\repolens.db
// macOS/Linux: ~/.repolens/repolens.db
func GetDBPath(cfg *config.DatabaseConfig) (string, error) {
	if cfg != nil && cfg.Path != "" {
		return cfg.Path, nil
	}

	dataDir := config.GetDataDir()
	return filepath.Join(dataDir, "repolens.db"), nil
}

// OpenDB 打开数据库连接
func OpenDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dbPath, err := GetDBPath(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get database path: %w", err)
	}

	// 确保目录存在
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// 打开数据库连接
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 测试连接
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// initTables 初始化表结构
func initTables(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS repo_chunks (
			chunk_id TEXT PRIMARY KEY,
			repo_id TEXT NOT NULL,
			file_path TEXT NOT NULL,
			start_line INTEGER NOT NULL,
			end_line INTEGER NOT NULL,
			text TEXT NOT NULL,
			kind TEXT NOT NULL,
			language TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_repo_chunks_repo ON repo_chunks(repo_id);`,

		`CREATE TABLE IF NOT EXISTS repo_summaries (
			repo_id TEXT PRIMARY KEY,
			frameworks TEXT NOT NULL,
			languages TEXT NOT NULL,
			architecture_notes TEXT NOT NULL,
			generated_at INTEGER NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS ingest_records (
			repo_id TEXT PRIMARY KEY,
			chunk_count INTEGER NOT NULL,
			ingested_at INTEGER NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS conversation_turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			repo_id TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			retrieved_chunk_ids TEXT,
			timestamp INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_turns_session ON conversation_turns(session_id, id);`,

		`CREATE TABLE IF NOT EXISTS orchestrator_checkpoints (
			session_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS document_drafts (
			doc_id TEXT PRIMARY KEY,
			repo_id TEXT NOT NULL,
			sections TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_document_drafts_repo ON document_drafts(repo_id);`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize database schema: %w", err)
		}
	}

	return nil
}
