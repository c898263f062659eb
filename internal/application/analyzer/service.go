package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/repolens/backend/internal/domain/analysis"
	"github.com/repolens/backend/internal/domain/events"
	domainRepo "github.com/repolens/backend/internal/domain/repository"
	"github.com/repolens/backend/internal/infrastructure/log"
)

// ErrNoChunks 仓库尚无可分析的片段
var ErrNoChunks = errors.New("repository has no ingested chunks")

// Service 仓库智能分析服务
// 摄入完成后异步分析；查询时发现过期则同步重算
// 分析是幂等的：相同片段集合产生相同摘要（时间戳除外）
type Service struct {
	registry    *analysis.Registry
	chunkRepo   domainRepo.ChunkRepository
	summaryRepo domainRepo.SummaryRepository
	ingestRepo  domainRepo.IngestRecordRepository
	eventBus    events.EventBus
	logger      *slog.Logger

	mu    sync.Mutex
	stale map[string]bool // 文件变更标记，下次查询触发重算
}

// NewService 创建分析服务
func NewService(
	registry *analysis.Registry,
	chunkRepo domainRepo.ChunkRepository,
	summaryRepo domainRepo.SummaryRepository,
	ingestRepo domainRepo.IngestRecordRepository,
	eventBus events.EventBus,
) *Service {
	return &Service{
		registry:    registry,
		chunkRepo:   chunkRepo,
		summaryRepo: summaryRepo,
		ingestRepo:  ingestRepo,
		eventBus:    eventBus,
		logger:      log.NewModuleLogger("analyzer", "service"),
		stale:       make(map[string]bool),
	}
}

// Start 订阅仓库事件：摄入完成触发异步分析，文件变更标记过期
func (s *Service) Start() func() {
	return s.eventBus.SubscribeMultiple(
		[]events.EventType{events.RepoIngested, events.RepoFileModified, events.RepoDeleted},
		events.HandlerFunc(s.handleRepoEvent),
	)
}

// handleRepoEvent 处理仓库事件
func (s *Service) handleRepoEvent(event events.Event) error {
	repoEvent, ok := event.(*events.RepoEvent)
	if !ok {
		return nil
	}

	switch event.Type() {
	case events.RepoIngested:
		go func() {
			if _, err := s.Analyze(context.Background(), repoEvent.RepoID); err != nil {
				s.logger.Error("Async analysis failed", "repo_id", repoEvent.RepoID, "error", err)
			}
		}()
	case events.RepoFileModified:
		s.markStale(repoEvent.RepoID)
	case events.RepoDeleted:
		if err := s.summaryRepo.DeleteSummary(repoEvent.RepoID); err != nil {
			s.logger.Error("Failed to delete summary", "repo_id", repoEvent.RepoID, "error", err)
		}
		s.clearStale(repoEvent.RepoID)
	}

	return nil
}

// Analyze 对仓库执行一次完整分析并覆盖保存摘要
func (s *Service) Analyze(ctx context.Context, repoID string) (*domainRepo.RepositorySummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chunks, err := s.chunkRepo.GetChunksByRepo(repoID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("repository %s: %w", repoID, ErrNoChunks)
	}

	matches := s.registry.RunAll(chunks, ConfidenceThreshold)
	frameworks := make([]string, len(matches))
	for i, m := range matches {
		frameworks[i] = m.Name
	}

	style := ClassifyArchitecture(chunks)
	notes := append([]string{fmt.Sprintf("architecture: %s", style)}, LanguageBreakdown(chunks)...)

	summary := &domainRepo.RepositorySummary{
		RepoID:            repoID,
		Frameworks:        frameworks,
		Languages:         Languages(chunks),
		ArchitectureNotes: notes,
		GeneratedAt:       time.Now().UnixMilli(),
	}

	if err := s.summaryRepo.SaveSummary(summary); err != nil {
		return nil, fmt.Errorf("failed to save summary: %w", err)
	}
	s.clearStale(repoID)

	s.logger.Info("Repository analysis completed",
		"repo_id", repoID,
		"frameworks", len(frameworks),
		"architecture", style,
	)
	return summary, nil
}

// Summary 返回仓库摘要
// 摘要缺失或过期（晚于最近摄入、或有文件变更标记）时同步重算
func (s *Service) Summary(ctx context.Context, repoID string) (*domainRepo.RepositorySummary, error) {
	summary, err := s.summaryRepo.GetSummary(repoID)
	if err != nil {
		return nil, fmt.Errorf("failed to load summary: %w", err)
	}

	if summary != nil && !s.isStale(repoID) {
		record, err := s.ingestRepo.GetIngestRecord(repoID)
		if err != nil {
			return nil, fmt.Errorf("failed to load ingest record: %w", err)
		}
		if record == nil || !summary.IsStale(record.IngestedAt) {
			return summary, nil
		}
	}

	return s.Analyze(ctx, repoID)
}

// markStale 标记仓库摘要过期
func (s *Service) markStale(repoID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stale[repoID] = true
}

// clearStale 清除过期标记
func (s *Service) clearStale(repoID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stale, repoID)
}

// isStale 查询过期标记
func (s *Service) isStale(repoID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale[repoID]
}
