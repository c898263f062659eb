package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/repolens/backend/internal/domain/events"
	domainRepo "github.com/repolens/backend/internal/domain/repository"
	"github.com/repolens/backend/internal/infrastructure/log"
)

// Embedder 向量化接口
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	ModelVersion() string
	Dimension() int
}

// VectorIndex 向量索引写入接口
type VectorIndex interface {
	UpsertEmbeddings(ctx context.Context, chunks []*domainRepo.Chunk, vectors [][]float32, modelVersion string) error
	ListChunkIDs(ctx context.Context, repoID string) ([]string, error)
	DeleteChunks(ctx context.Context, chunkIDs []string) error
	DeleteRepo(ctx context.Context, repoID string) error
}

// ProgressNotifier 摄入进度通知接口，推送为尽力而为
type ProgressNotifier interface {
	PushIngestProgress(repoID, detail string)
}

// IngestResult 单次摄入结果
type IngestResult struct {
	RepoID       string `json:"repo_id"`
	ChunkCount   int    `json:"chunk_count"`
	SkippedFiles int    `json:"skipped_files"`
	StaleRemoved int    `json:"stale_removed"`
}

// Service 仓库摄入服务
// 同一仓库的摄入串行执行，不同仓库互不阻塞
// 任一阶段失败整体失败，已建立的索引保持可查询
type Service struct {
	chunker    *Chunker
	embedder   Embedder
	index      VectorIndex
	chunkRepo  domainRepo.ChunkRepository
	ingestRepo domainRepo.IngestRecordRepository
	eventBus   events.EventBus
	notifier   ProgressNotifier
	logger     *slog.Logger

	mu        sync.Mutex
	repoLocks map[string]*sync.Mutex
}

// NewService 创建摄入服务
func NewService(
	chunker *Chunker,
	embedder Embedder,
	index VectorIndex,
	chunkRepo domainRepo.ChunkRepository,
	ingestRepo domainRepo.IngestRecordRepository,
	eventBus events.EventBus,
	notifier ProgressNotifier,
) *Service {
	return &Service{
		chunker:    chunker,
		embedder:   embedder,
		index:      index,
		chunkRepo:  chunkRepo,
		ingestRepo: ingestRepo,
		eventBus:   eventBus,
		notifier:   notifier,
		logger:     log.NewModuleLogger("ingestion", "service"),
		repoLocks:  make(map[string]*sync.Mutex),
	}
}

// repoLock 获取仓库级互斥锁
func (s *Service) repoLock(repoID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.repoLocks[repoID]
	if !ok {
		lock = &sync.Mutex{}
		s.repoLocks[repoID] = lock
	}
	return lock
}

// Ingest 摄入仓库文件集
// 切分、向量化全部成功后才写入索引与元数据，保证失败时旧索引不变
// 重复摄入相同内容产生相同的片段集合，消失文件的片段被清理
func (s *Service) Ingest(ctx context.Context, repoID string, files []*SourceFile) (*IngestResult, error) {
	if repoID == "" {
		return nil, &IngestionError{RepoID: repoID, Stage: "chunk", Err: fmt.Errorf("repo id is required")}
	}
	if len(files) == 0 {
		return nil, &IngestionError{RepoID: repoID, Stage: "chunk", Err: fmt.Errorf("no files to ingest")}
	}

	lock := s.repoLock(repoID)
	lock.Lock()
	defer lock.Unlock()

	s.logger.Info("Starting repository ingestion", "repo_id", repoID, "files", len(files))
	s.notify(repoID, fmt.Sprintf("chunking %d files", len(files)))

	// 切分
	var chunks []*domainRepo.Chunk
	skipped := 0
	for _, file := range files {
		fileChunks := s.chunker.ChunkFile(repoID, file)
		if fileChunks == nil {
			skipped++
			continue
		}
		chunks = append(chunks, fileChunks...)
	}
	if len(chunks) == 0 {
		return nil, &IngestionError{RepoID: repoID, Stage: "chunk", Err: fmt.Errorf("no indexable content in %d files", len(files))}
	}

	// 向量化：全部批次成功后才进入索引阶段
	s.notify(repoID, fmt.Sprintf("embedding %d chunks", len(chunks)))
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, &IngestionError{RepoID: repoID, Stage: "embed", Err: err}
	}

	// 写入向量索引
	s.notify(repoID, "writing vector index")
	if err := s.index.UpsertEmbeddings(ctx, chunks, vectors, s.embedder.ModelVersion()); err != nil {
		return nil, &IngestionError{RepoID: repoID, Stage: "index", Err: err}
	}

	// 陈旧片段清理：上一版本存在而本次不存在的片段
	staleIDs, err := s.cleanupStale(ctx, repoID, chunks)
	if err != nil {
		return nil, &IngestionError{RepoID: repoID, Stage: "index", Err: err}
	}

	// 持久化片段元数据与摄入记录
	if err := s.chunkRepo.SaveChunks(chunks); err != nil {
		return nil, &IngestionError{RepoID: repoID, Stage: "persist", Err: err}
	}

	record := &domainRepo.IngestRecord{
		RepoID:     repoID,
		ChunkCount: len(chunks),
		IngestedAt: time.Now().UnixMilli(),
	}
	if err := s.ingestRepo.SaveIngestRecord(record); err != nil {
		return nil, &IngestionError{RepoID: repoID, Stage: "persist", Err: err}
	}

	s.eventBus.Publish(&events.RepoEvent{
		EventType:  events.RepoIngested,
		RepoID:     repoID,
		ChunkCount: len(chunks),
		EventTime:  time.Now(),
	})

	s.logger.Info("Repository ingestion completed",
		"repo_id", repoID,
		"chunks", len(chunks),
		"skipped_files", skipped,
		"stale_removed", len(staleIDs),
	)
	s.notify(repoID, "ingestion completed")

	return &IngestResult{
		RepoID:       repoID,
		ChunkCount:   len(chunks),
		SkippedFiles: skipped,
		StaleRemoved: len(staleIDs),
	}, nil
}

// cleanupStale 清理本次摄入后不再存在的片段
// 以向量索引中的片段集合为准做差集，索引中的孤儿向量也会被清除
func (s *Service) cleanupStale(ctx context.Context, repoID string, current []*domainRepo.Chunk) ([]string, error) {
	previous, err := s.index.ListChunkIDs(ctx, repoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexed chunks: %w", err)
	}
	if len(previous) == 0 {
		return nil, nil
	}

	currentSet := make(map[string]bool, len(current))
	for _, chunk := range current {
		currentSet[chunk.ChunkID] = true
	}

	var stale []string
	for _, id := range previous {
		if !currentSet[id] {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return nil, nil
	}

	if err := s.index.DeleteChunks(ctx, stale); err != nil {
		return nil, fmt.Errorf("failed to delete stale vectors: %w", err)
	}
	if err := s.chunkRepo.DeleteChunksByIDs(stale); err != nil {
		return nil, fmt.Errorf("failed to delete stale chunk metadata: %w", err)
	}

	return stale, nil
}

// DeleteRepo 原子删除仓库的索引与元数据
func (s *Service) DeleteRepo(ctx context.Context, repoID string) error {
	lock := s.repoLock(repoID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.index.DeleteRepo(ctx, repoID); err != nil {
		return fmt.Errorf("failed to delete repo vectors: %w", err)
	}
	if err := s.chunkRepo.DeleteChunksByRepo(repoID); err != nil {
		return fmt.Errorf("failed to delete repo chunks: %w", err)
	}
	if err := s.ingestRepo.DeleteIngestRecord(repoID); err != nil {
		return fmt.Errorf("failed to delete ingest record: %w", err)
	}

	s.eventBus.Publish(&events.RepoEvent{
		EventType: events.RepoDeleted,
		RepoID:    repoID,
		EventTime: time.Now(),
	})

	s.logger.Info("Repository deleted", "repo_id", repoID)
	return nil
}

// notify 推送进度，通知器未配置时忽略
func (s *Service) notify(repoID, detail string) {
	if s.notifier != nil {
		s.notifier.PushIngestProgress(repoID, detail)
	}
}
