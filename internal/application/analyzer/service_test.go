package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repolens/backend/internal/domain/events"
	domainRepo "github.com/repolens/backend/internal/domain/repository"
)

// memChunkRepo 内存片段仓库（仅分析所需方法有实现）
type memChunkRepo struct {
	chunks map[string][]*domainRepo.Chunk
}

func newMemChunkRepo() *memChunkRepo {
	return &memChunkRepo{chunks: make(map[string][]*domainRepo.Chunk)}
}

func (m *memChunkRepo) SaveChunks(chunks []*domainRepo.Chunk) error {
	for _, chunk := range chunks {
		m.chunks[chunk.RepoID] = append(m.chunks[chunk.RepoID], chunk)
	}
	return nil
}

func (m *memChunkRepo) GetChunk(chunkID string) (*domainRepo.Chunk, error) { return nil, nil }

func (m *memChunkRepo) GetChunksByRepo(repoID string) ([]*domainRepo.Chunk, error) {
	return m.chunks[repoID], nil
}

func (m *memChunkRepo) GetChunkIDsByRepo(repoID string) ([]string, error) { return nil, nil }
func (m *memChunkRepo) GetChunksByIDs(chunkIDs []string) ([]*domainRepo.Chunk, error) {
	return nil, nil
}
func (m *memChunkRepo) DeleteChunksByRepo(repoID string) error    { return nil }
func (m *memChunkRepo) DeleteChunksByIDs(chunkIDs []string) error { return nil }

// memSummaryRepo 内存摘要仓库
type memSummaryRepo struct {
	summaries map[string]*domainRepo.RepositorySummary
	saves     int
}

func newMemSummaryRepo() *memSummaryRepo {
	return &memSummaryRepo{summaries: make(map[string]*domainRepo.RepositorySummary)}
}

func (m *memSummaryRepo) SaveSummary(summary *domainRepo.RepositorySummary) error {
	m.saves++
	m.summaries[summary.RepoID] = summary
	return nil
}

func (m *memSummaryRepo) GetSummary(repoID string) (*domainRepo.RepositorySummary, error) {
	return m.summaries[repoID], nil
}

func (m *memSummaryRepo) DeleteSummary(repoID string) error {
	delete(m.summaries, repoID)
	return nil
}

// memIngestRepo 内存摄入记录仓库
type memIngestRepo struct {
	records map[string]*domainRepo.IngestRecord
}

func newMemIngestRepo() *memIngestRepo {
	return &memIngestRepo{records: make(map[string]*domainRepo.IngestRecord)}
}

func (m *memIngestRepo) SaveIngestRecord(record *domainRepo.IngestRecord) error {
	m.records[record.RepoID] = record
	return nil
}

func (m *memIngestRepo) GetIngestRecord(repoID string) (*domainRepo.IngestRecord, error) {
	return m.records[repoID], nil
}

func (m *memIngestRepo) DeleteIngestRecord(repoID string) error {
	delete(m.records, repoID)
	return nil
}

// noopBus 空事件总线
type noopBus struct{}

func (noopBus) Subscribe(events.EventType, events.Handler) func()           { return func() {} }
func (noopBus) SubscribeMultiple([]events.EventType, events.Handler) func() { return func() {} }
func (noopBus) Publish(events.Event)                                        {}
func (noopBus) Close()                                                      {}

func chunk(repoID, filePath, text, language string) *domainRepo.Chunk {
	return &domainRepo.Chunk{
		ChunkID:  domainRepo.NewChunkID(repoID, filePath, 1, 10),
		RepoID:   repoID,
		FilePath: filePath,
		Text:     text,
		Language: language,
	}
}

func newAnalyzer() (*Service, *memChunkRepo, *memSummaryRepo, *memIngestRepo) {
	chunkRepo := newMemChunkRepo()
	summaryRepo := newMemSummaryRepo()
	ingestRepo := newMemIngestRepo()
	svc := NewService(NewRegistry(), chunkRepo, summaryRepo, ingestRepo, noopBus{})
	return svc, chunkRepo, summaryRepo, ingestRepo
}

func TestAnalyze_DetectsFrameworks(t *testing.T) {
	svc, chunkRepo, _, _ := newAnalyzer()

	require.NoError(t, chunkRepo.SaveChunks([]*domainRepo.Chunk{
		chunk("repo-1", "go.mod", "module app\n\nrequire github.com/gin-gonic/gin v1.10.0", "go"),
		chunk("repo-1", "internal/api/server.go", `import "github.com/gin-gonic/gin"`, "go"),
		chunk("repo-1", "web/src/App.jsx", `import React from "react"\nconst App = () => useState(0)`, "javascript"),
		chunk("repo-1", "web/package.json", `{"dependencies": {"react": "^18.0.0"}}`, "json"),
	}))

	summary, err := svc.Analyze(context.Background(), "repo-1")
	require.NoError(t, err)

	assert.Contains(t, summary.Frameworks, "gin")
	assert.Contains(t, summary.Frameworks, "react")
	assert.NotContains(t, summary.Frameworks, "django")
	assert.Contains(t, summary.Languages, "go")
}

func TestAnalyze_BelowThresholdExcluded(t *testing.T) {
	svc, chunkRepo, _, _ := newAnalyzer()

	// 只有 +1 的特征字符串，低于阈值
	require.NoError(t, chunkRepo.SaveChunks([]*domainRepo.Chunk{
		chunk("repo-1", "main.go", "// app.listen( mentioned in a comment", "go"),
	}))

	summary, err := svc.Analyze(context.Background(), "repo-1")
	require.NoError(t, err)
	assert.NotContains(t, summary.Frameworks, "express")
}

func TestAnalyze_EmptyRepoReturnsErrNoChunks(t *testing.T) {
	svc, _, _, _ := newAnalyzer()

	_, err := svc.Analyze(context.Background(), "repo-empty")
	assert.ErrorIs(t, err, ErrNoChunks)
}

func TestAnalyze_Idempotent(t *testing.T) {
	svc, chunkRepo, _, _ := newAnalyzer()

	require.NoError(t, chunkRepo.SaveChunks([]*domainRepo.Chunk{
		chunk("repo-1", "go.mod", "require github.com/gin-gonic/gin v1.10.0", "go"),
		chunk("repo-1", "internal/server.go", `import "github.com/gin-gonic/gin"`, "go"),
	}))

	first, err := svc.Analyze(context.Background(), "repo-1")
	require.NoError(t, err)

	second, err := svc.Analyze(context.Background(), "repo-1")
	require.NoError(t, err)

	assert.Equal(t, first.Frameworks, second.Frameworks, "重复分析必须产生相同结果")
	assert.Equal(t, first.Languages, second.Languages)
	assert.Equal(t, first.ArchitectureNotes, second.ArchitectureNotes)
}

func TestSummary_RecomputesWhenStale(t *testing.T) {
	svc, chunkRepo, summaryRepo, ingestRepo := newAnalyzer()

	require.NoError(t, chunkRepo.SaveChunks([]*domainRepo.Chunk{
		chunk("repo-1", "internal/server.go", `import "github.com/gin-gonic/gin"`, "go"),
		chunk("repo-1", "go.mod", "require github.com/gin-gonic/gin v1.10.0", "go"),
	}))

	// 旧摘要早于最近一次摄入
	require.NoError(t, summaryRepo.SaveSummary(&domainRepo.RepositorySummary{
		RepoID:      "repo-1",
		Frameworks:  []string{"outdated"},
		GeneratedAt: 1000,
	}))
	summaryRepo.saves = 0
	require.NoError(t, ingestRepo.SaveIngestRecord(&domainRepo.IngestRecord{
		RepoID:     "repo-1",
		IngestedAt: time.Now().UnixMilli(),
	}))

	summary, err := svc.Summary(context.Background(), "repo-1")
	require.NoError(t, err)
	assert.NotContains(t, summary.Frameworks, "outdated")
	assert.Contains(t, summary.Frameworks, "gin")
	assert.Equal(t, 1, summaryRepo.saves, "过期摘要触发同步重算")
}

func TestSummary_FreshSummaryNotRecomputed(t *testing.T) {
	svc, _, summaryRepo, ingestRepo := newAnalyzer()

	require.NoError(t, ingestRepo.SaveIngestRecord(&domainRepo.IngestRecord{
		RepoID:     "repo-1",
		IngestedAt: 1000,
	}))
	require.NoError(t, summaryRepo.SaveSummary(&domainRepo.RepositorySummary{
		RepoID:      "repo-1",
		Frameworks:  []string{"gin"},
		GeneratedAt: 2000,
	}))
	summaryRepo.saves = 0

	summary, err := svc.Summary(context.Background(), "repo-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"gin"}, summary.Frameworks)
	assert.Equal(t, 0, summaryRepo.saves, "新鲜摘要直接返回")
}

func TestSummary_FileModifiedMarkTriggersRecompute(t *testing.T) {
	svc, chunkRepo, summaryRepo, ingestRepo := newAnalyzer()

	require.NoError(t, chunkRepo.SaveChunks([]*domainRepo.Chunk{
		chunk("repo-1", "internal/server.go", `import "github.com/gin-gonic/gin"`, "go"),
		chunk("repo-1", "go.mod", "require github.com/gin-gonic/gin v1.10.0", "go"),
	}))
	require.NoError(t, ingestRepo.SaveIngestRecord(&domainRepo.IngestRecord{
		RepoID:     "repo-1",
		IngestedAt: 1000,
	}))
	require.NoError(t, summaryRepo.SaveSummary(&domainRepo.RepositorySummary{
		RepoID:      "repo-1",
		Frameworks:  []string{"gin"},
		GeneratedAt: 2000,
	}))
	summaryRepo.saves = 0

	require.NoError(t, svc.handleRepoEvent(&events.RepoEvent{
		EventType: events.RepoFileModified,
		RepoID:    "repo-1",
		EventTime: time.Now(),
	}))

	_, err := svc.Summary(context.Background(), "repo-1")
	require.NoError(t, err)
	assert.Equal(t, 1, summaryRepo.saves, "文件变更标记触发重算")
}

func TestClassifyArchitecture(t *testing.T) {
	mvc := []*domainRepo.Chunk{
		chunk("r", "app/models/user.rb", "", "ruby"),
		chunk("r", "app/views/index.erb", "", ""),
		chunk("r", "app/controllers/users_controller.rb", "", "ruby"),
	}
	assert.Equal(t, StyleMVC, ClassifyArchitecture(mvc))

	modular := []*domainRepo.Chunk{
		chunk("r", "internal/app/service.go", "", "go"),
		chunk("r", "cmd/server/main.go", "", "go"),
	}
	assert.Equal(t, StyleModular, ClassifyArchitecture(modular))

	api := []*domainRepo.Chunk{
		chunk("r", "api/users.py", "", "python"),
		chunk("r", "routes/index.js", "", "javascript"),
	}
	assert.Equal(t, StyleAPIDriven, ClassifyArchitecture(api))

	flat := []*domainRepo.Chunk{chunk("r", "main.py", "", "python")}
	assert.Equal(t, StyleMonolithic, ClassifyArchitecture(flat))
}

func TestLanguageBreakdown(t *testing.T) {
	chunks := []*domainRepo.Chunk{
		chunk("r", "a.go", "", "go"),
		chunk("r", "b.go", "", "go"),
		chunk("r", "c.go", "", "go"),
		chunk("r", "d.py", "", "python"),
	}

	breakdown := LanguageBreakdown(chunks)
	require.Len(t, breakdown, 2)
	assert.Equal(t, "go 75%", breakdown[0])
	assert.Equal(t, "python 25%", breakdown[1])

	assert.Equal(t, []string{"go", "python"}, Languages(chunks))
}
