package retrieval

import (
	"context"
	"log/slog"

	domainRepo "github.com/repolens/backend/internal/domain/repository"
	"github.com/repolens/backend/internal/infrastructure/config"
	"github.com/repolens/backend/internal/infrastructure/log"
)

const (
	// MinSearchLimit 检索数量下限
	MinSearchLimit = 1
	// MaxSearchLimit 检索数量上限
	MaxSearchLimit = 100
)

// QueryEmbedder 查询向量化接口
// 查询与片段必须走同一向量化路径
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// SearchIndex 向量检索接口
type SearchIndex interface {
	Search(ctx context.Context, queryVector []float32, repoID, pathGlob string, k int) ([]*domainRepo.RetrievalResult, error)
}

// Service 检索服务
// 结果严格限定在指定仓库范围内，按相似度降序返回
type Service struct {
	embedder  QueryEmbedder
	index     SearchIndex
	chunkRepo domainRepo.ChunkRepository
	cfg       *config.OrchestratorConfig
	logger    *slog.Logger
}

// NewService 创建检索服务
func NewService(
	embedder QueryEmbedder,
	index SearchIndex,
	chunkRepo domainRepo.ChunkRepository,
	cfg *config.OrchestratorConfig,
) *Service {
	return &Service{
		embedder:  embedder,
		index:     index,
		chunkRepo: chunkRepo,
		cfg:       cfg,
		logger:    log.NewModuleLogger("retrieval", "service"),
	}
}

// ClampLimit 规整检索数量到 [1, 100]，0 或负数使用配置默认值
func (s *Service) ClampLimit(k int) int {
	if k <= 0 {
		k = s.cfg.SearchLimit
	}
	if k < MinSearchLimit {
		k = MinSearchLimit
	}
	if k > MaxSearchLimit {
		k = MaxSearchLimit
	}
	return k
}

// Search 语义检索仓库片段
// pathGlob 非空时按文件路径 glob 过滤
// 失败以 RetrievalDegradedError 返回，供调用方降级处理
func (s *Service) Search(ctx context.Context, repoID, query, pathGlob string, k int) ([]*domainRepo.RetrievalResult, error) {
	k = s.ClampLimit(k)

	queryVector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, &RetrievalDegradedError{RepoID: repoID, Err: err}
	}

	results, err := s.index.Search(ctx, queryVector, repoID, pathGlob, k)
	if err != nil {
		return nil, &RetrievalDegradedError{RepoID: repoID, Err: err}
	}

	// 回填片段文本供重排与上下文组装使用
	if err := s.hydrateTexts(results); err != nil {
		return nil, &RetrievalDegradedError{RepoID: repoID, Err: err}
	}

	s.logger.Debug("Search completed",
		"repo_id", repoID,
		"k", k,
		"results", len(results),
	)
	return results, nil
}

// hydrateTexts 从元数据仓库回填片段文本
func (s *Service) hydrateTexts(results []*domainRepo.RetrievalResult) error {
	if len(results) == 0 {
		return nil
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ChunkID
	}

	chunks, err := s.chunkRepo.GetChunksByIDs(ids)
	if err != nil {
		return err
	}

	byID := make(map[string]*domainRepo.Chunk, len(chunks))
	for _, chunk := range chunks {
		byID[chunk.ChunkID] = chunk
	}

	for _, r := range results {
		if chunk, ok := byID[r.ChunkID]; ok {
			r.Text = chunk.Text
			if r.FilePath == "" {
				r.FilePath = chunk.FilePath
				r.StartLine = chunk.StartLine
				r.EndLine = chunk.EndLine
			}
		}
	}

	return nil
}
