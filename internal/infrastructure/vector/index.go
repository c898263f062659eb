package vector

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	domainRepo "github.com/repolens/backend/internal/domain/repository"
	"github.com/repolens/backend/internal/infrastructure/log"
)

// Index 片段向量索引
// 所有写入与查询都限定在同一集合内，使用余弦相似度
type Index struct {
	manager *Manager
	logger  *slog.Logger
}

// NewIndex 创建向量索引
func NewIndex(manager *Manager) *Index {
	return &Index{
		manager: manager,
		logger:  log.NewModuleLogger("vector", "index"),
	}
}

// PointIDForChunk 根据片段 ID 计算确定性的 Qdrant point ID
// 片段 ID 是 sha256 十六进制，Qdrant 要求 UUID，因此做 UUIDv5 映射
func PointIDForChunk(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

// BuildChunkPoint 构建片段的 Qdrant 点
func BuildChunkPoint(chunk *domainRepo.Chunk, vector []float32, modelVersion string) *qdrant.PointStruct {
	vectorArgs := make([]float32, len(vector))
	copy(vectorArgs, vector)

	return &qdrant.PointStruct{
		Id:      qdrant.NewID(PointIDForChunk(chunk.ChunkID)),
		Vectors: qdrant.NewVectors(vectorArgs...),
		Payload: qdrant.NewValueMap(map[string]interface{}{
			"chunk_id":      chunk.ChunkID,
			"repo_id":       chunk.RepoID,
			"file_path":     chunk.FilePath,
			"start_line":    int64(chunk.StartLine),
			"end_line":      int64(chunk.EndLine),
			"kind":          string(chunk.Kind),
			"language":      chunk.Language,
			"model_version": modelVersion,
		}),
	}
}

// UpsertEmbeddings 批量写入片段向量
// chunks 与 vectors 必须一一对应
func (ix *Index) UpsertEmbeddings(ctx context.Context, chunks []*domainRepo.Chunk, vectors [][]float32, modelVersion string) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		points[i] = BuildChunkPoint(chunk, vectors[i], modelVersion)
	}

	return ix.UpsertChunks(ctx, points)
}

// UpsertChunks 批量写入片段向量
// Wait 为 true：写入对后续读者全量可见后才返回
func (ix *Index) UpsertChunks(ctx context.Context, points []*qdrant.PointStruct) error {
	if len(points) == 0 {
		return nil
	}

	client := ix.manager.GetClient()
	if client == nil {
		return fmt.Errorf("qdrant client not initialized")
	}

	wait := true
	_, err := client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: ix.manager.Collection(),
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert chunks: %w", err)
	}

	ix.logger.Debug("Upserted chunk points", "count", len(points))
	return nil
}

// Search 按查询向量检索片段，限定仓库范围
// pathGlob 非空时按文件路径 glob 进一步过滤
// 返回结果按相似度降序，score 随 rank 单调不增
func (ix *Index) Search(ctx context.Context, queryVector []float32, repoID, pathGlob string, k int) ([]*domainRepo.RetrievalResult, error) {
	client := ix.manager.GetClient()
	if client == nil {
		return nil, fmt.Errorf("qdrant client not initialized")
	}

	// glob 过滤在结果侧进行，多取一些候选以免过滤后不足 k 条
	fetchLimit := uint64(k)
	if pathGlob != "" {
		fetchLimit = uint64(k * 4)
	}

	hits, err := client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: ix.manager.Collection(),
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          &fetchLimit,
		Filter:         buildRepoFilter(repoID),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query qdrant: %w", err)
	}

	results := make([]*domainRepo.RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		result := hitToResult(hit)
		if result == nil {
			continue
		}
		if pathGlob != "" && !matchPathGlob(pathGlob, result.FilePath) {
			continue
		}
		result.Rank = len(results) + 1
		results = append(results, result)
		if len(results) >= k {
			break
		}
	}

	return results, nil
}

// ListChunkIDs 列出仓库下的全部片段 ID（用于陈旧片段清理的差集计算）
func (ix *Index) ListChunkIDs(ctx context.Context, repoID string) ([]string, error) {
	client := ix.manager.GetClient()
	if client == nil {
		return nil, fmt.Errorf("qdrant client not initialized")
	}

	const pageSize = uint32(256)
	seen := make(map[string]bool)
	var ids []string
	var offset *qdrant.PointId

	for {
		limit := pageSize
		points, err := client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: ix.manager.Collection(),
			Filter:         buildRepoFilter(repoID),
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll points: %w", err)
		}

		for _, p := range points {
			chunkID := extractStringValue(p.Payload["chunk_id"])
			if chunkID != "" && !seen[chunkID] {
				seen[chunkID] = true
				ids = append(ids, chunkID)
			}
		}

		if len(points) < int(pageSize) {
			break
		}
		offset = points[len(points)-1].Id
	}

	return ids, nil
}

// DeleteChunks 按片段 ID 删除向量
func (ix *Index) DeleteChunks(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	client := ix.manager.GetClient()
	if client == nil {
		return fmt.Errorf("qdrant client not initialized")
	}

	pointIDs := make([]*qdrant.PointId, len(chunkIDs))
	for i, id := range chunkIDs {
		pointIDs[i] = qdrant.NewID(PointIDForChunk(id))
	}

	wait := true
	_, err := client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: ix.manager.Collection(),
		Wait:           &wait,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: pointIDs,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	ix.logger.Debug("Deleted chunk points", "count", len(chunkIDs))
	return nil
}

// DeleteRepo 原子删除仓库的全部向量
func (ix *Index) DeleteRepo(ctx context.Context, repoID string) error {
	client := ix.manager.GetClient()
	if client == nil {
		return fmt.Errorf("qdrant client not initialized")
	}

	wait := true
	_, err := client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: ix.manager.Collection(),
		Wait:           &wait,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: buildRepoFilter(repoID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete repo vectors: %w", err)
	}

	ix.logger.Info("Deleted repository vectors", "repo_id", repoID)
	return nil
}

// buildRepoFilter 构建仓库范围过滤条件
func buildRepoFilter(repoID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("repo_id", repoID),
		},
	}
}

// matchPathGlob 按 glob 匹配文件路径
// 支持 ** 前缀形式（如 **/*.go 匹配任意目录深度）
func matchPathGlob(glob, filePath string) bool {
	if strings.HasPrefix(glob, "**/") {
		base := strings.TrimPrefix(glob, "**/")
		if ok, _ := path.Match(base, path.Base(filePath)); ok {
			return true
		}
	}
	ok, _ := path.Match(glob, filePath)
	return ok
}

// hitToResult 转换 Qdrant 命中为检索结果
func hitToResult(hit *qdrant.ScoredPoint) *domainRepo.RetrievalResult {
	chunkID := extractStringValue(hit.Payload["chunk_id"])
	if chunkID == "" {
		return nil
	}

	return &domainRepo.RetrievalResult{
		ChunkID:   chunkID,
		Score:     hit.Score,
		FilePath:  extractStringValue(hit.Payload["file_path"]),
		StartLine: int(extractIntValue(hit.Payload["start_line"])),
		EndLine:   int(extractIntValue(hit.Payload["end_line"])),
	}
}

// extractStringValue 从 qdrant.Value 提取字符串值
func extractStringValue(val *qdrant.Value) string {
	if val == nil {
		return ""
	}
	return val.GetStringValue()
}

// extractIntValue 从 qdrant.Value 提取整数值
func extractIntValue(val *qdrant.Value) int64 {
	if val == nil {
		return 0
	}
	return val.GetIntegerValue()
}
