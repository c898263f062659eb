package docsynth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repolens/backend/internal/application/retrieval"
	"github.com/repolens/backend/internal/domain/document"
	domainRepo "github.com/repolens/backend/internal/domain/repository"
	"github.com/repolens/backend/internal/infrastructure/config"
)

// fakeRetriever 返回固定片段的检索桩
type fakeRetriever struct {
	failAll bool
}

func (f *fakeRetriever) Search(ctx context.Context, repoID, query, pathGlob string, k int) ([]*domainRepo.RetrievalResult, error) {
	if f.failAll {
		return nil, fmt.Errorf("vector index unavailable")
	}
	return []*domainRepo.RetrievalResult{
		{
			ChunkID:   "chunk-a",
			Score:     0.9,
			Rank:      1,
			FilePath:  "internal/auth/auth.go",
			StartLine: 1,
			EndLine:   20,
			Text:      "func Login() {}",
		},
	}, nil
}

// fakeGenerator 大纲调用返回固定标题，章节调用按标题生成或失败
type fakeGenerator struct {
	outline       []string
	failSections  map[string]bool
	mu            sync.Mutex
	inflight      int
	maxInflight   int
	generateCalls int
}

func (f *fakeGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.mu.Lock()
	f.generateCalls++
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	if strings.Contains(systemPrompt, "outline") {
		return strings.Join(f.outline, "\n"), nil
	}

	time.Sleep(5 * time.Millisecond)
	for title := range f.failSections {
		if strings.Contains(userPrompt, "Section title: "+title) {
			return "", fmt.Errorf("llm exhausted retries")
		}
	}
	return "generated content", nil
}

// memDraftRepo 内存草稿仓库
type memDraftRepo struct {
	drafts map[string]*document.DocumentDraft
}

func newMemDraftRepo() *memDraftRepo {
	return &memDraftRepo{drafts: make(map[string]*document.DocumentDraft)}
}

func (m *memDraftRepo) SaveDraft(draft *document.DocumentDraft) error {
	m.drafts[draft.DocID] = draft
	return nil
}

func (m *memDraftRepo) GetDraft(docID string) (*document.DocumentDraft, error) {
	return m.drafts[docID], nil
}

func (m *memDraftRepo) GetDraftsByRepo(repoID string) ([]*document.DocumentDraft, error) {
	var out []*document.DocumentDraft
	for _, d := range m.drafts {
		if d.RepoID == repoID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDraftRepo) DeleteDraftsByRepo(repoID string) error {
	for id, d := range m.drafts {
		if d.RepoID == repoID {
			delete(m.drafts, id)
		}
	}
	return nil
}

// memSummaryRepo 内存摘要仓库（大纲提示词用）
type memSummaryRepo struct {
	summary *domainRepo.RepositorySummary
}

func (m *memSummaryRepo) SaveSummary(summary *domainRepo.RepositorySummary) error {
	m.summary = summary
	return nil
}

func (m *memSummaryRepo) GetSummary(repoID string) (*domainRepo.RepositorySummary, error) {
	return m.summary, nil
}

func (m *memSummaryRepo) DeleteSummary(repoID string) error {
	m.summary = nil
	return nil
}

func newTestService(t *testing.T, retriever Retriever, generator *fakeGenerator, maxConcurrent int) (*Service, *memDraftRepo) {
	t.Helper()

	orchestratorCfg := &config.OrchestratorConfig{
		SearchLimit:      12,
		TokenBudget:      4000,
		ContextCharLimit: 12000,
	}
	assembler, err := retrieval.NewContextAssembler(orchestratorCfg)
	require.NoError(t, err)

	draftRepo := newMemDraftRepo()
	svc := NewService(
		retriever,
		assembler,
		generator,
		&memSummaryRepo{},
		draftRepo,
		&config.DocumentationConfig{MaxConcurrentSections: maxConcurrent, DefaultPersona: "both"},
		orchestratorCfg,
	)
	return svc, draftRepo
}

func fiveSectionOutline() []string {
	return []string{"Overview", "Architecture", "Core API", "Storage Layer", "Deployment"}
}

func TestGenerateDocumentation_SectionFailureYieldsPlaceholder(t *testing.T) {
	generator := &fakeGenerator{
		outline:      fiveSectionOutline(),
		failSections: map[string]bool{"Core API": true},
	}
	svc, draftRepo := newTestService(t, &fakeRetriever{}, generator, 4)

	draft, err := svc.GenerateDocumentation(context.Background(), "repo-1", "")
	require.NoError(t, err)
	require.Len(t, draft.Sections, 5)

	// 顺序以大纲为准，不受完成先后影响
	for i, title := range fiveSectionOutline() {
		assert.Equal(t, title, draft.Sections[i].Title)
	}

	assert.True(t, draft.Sections[2].Placeholder, "失败章节必须标记占位")
	assert.Equal(t, placeholderContent, draft.Sections[2].Content)
	for i, section := range draft.Sections {
		if i == 2 {
			continue
		}
		assert.False(t, section.Placeholder)
		assert.Equal(t, "generated content", section.Content)
		assert.Equal(t, []string{"chunk-a"}, section.SourceChunkIDs)
	}

	// 全部章节就绪后一次性持久化
	saved, err := draftRepo.GetDraft(draft.DocID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Len(t, saved.Sections, 5)
}

func TestGenerateDocumentation_RetrievalDegradedStillCompletes(t *testing.T) {
	generator := &fakeGenerator{outline: fiveSectionOutline()}
	svc, _ := newTestService(t, &fakeRetriever{failAll: true}, generator, 4)

	draft, err := svc.GenerateDocumentation(context.Background(), "repo-1", "")
	require.NoError(t, err)
	require.Len(t, draft.Sections, 5)

	for _, section := range draft.Sections {
		assert.False(t, section.Placeholder, "检索降级不产生占位章节")
		assert.Empty(t, section.SourceChunkIDs)
	}
}

func TestGenerateDocumentation_ConcurrencyBounded(t *testing.T) {
	generator := &fakeGenerator{outline: fiveSectionOutline()}
	svc, _ := newTestService(t, &fakeRetriever{}, generator, 2)

	_, err := svc.GenerateDocumentation(context.Background(), "repo-1", "")
	require.NoError(t, err)

	// 大纲调用在章节并发开始前完成，章节并发受配置约束
	assert.LessOrEqual(t, generator.maxInflight, 2)
	assert.Equal(t, 6, generator.generateCalls, "1 次大纲 + 5 次章节")
}

func TestGenerateDocumentation_EmptyOutlineIsError(t *testing.T) {
	generator := &fakeGenerator{outline: []string{"", "  "}}
	svc, _ := newTestService(t, &fakeRetriever{}, generator, 4)

	_, err := svc.GenerateDocumentation(context.Background(), "repo-1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outline")
}

func TestResolvePersona(t *testing.T) {
	tests := []struct {
		name      string
		project   string
		requested string
		want      Persona
		wantErr   bool
	}{
		{"项目both请求sde", "both", "sde", PersonaSDE, false},
		{"项目both请求为空", "both", "", PersonaBoth, false},
		{"项目sde请求pm被收窄", "sde", "pm", PersonaSDE, false},
		{"项目pm请求both被收窄", "pm", "both", PersonaPM, false},
		{"项目配置为空视为both", "", "pm", PersonaPM, false},
		{"非法请求", "both", "architect", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePersona(tt.project, tt.requested)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOutline(t *testing.T) {
	raw := "# 1. Overview\n- Architecture\n\n2) Core API\n* Storage Layer\n•  Deployment"
	titles := parseOutline(raw)
	assert.Equal(t, fiveSectionOutline(), titles)
}

func TestParseOutline_CapsSectionCount(t *testing.T) {
	var lines []string
	for i := 0; i < 30; i++ {
		lines = append(lines, fmt.Sprintf("Section %d", i))
	}
	titles := parseOutline(strings.Join(lines, "\n"))
	assert.Len(t, titles, MaxOutlineSections)
}
