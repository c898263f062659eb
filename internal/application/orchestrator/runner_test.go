package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repolens/backend/internal/application/retrieval"
	domainConv "github.com/repolens/backend/internal/domain/conversation"
	domainRepo "github.com/repolens/backend/internal/domain/repository"
	"github.com/repolens/backend/internal/infrastructure/config"
)

// fakeRetriever 固定结果的检索实现
type fakeRetriever struct {
	results []*domainRepo.RetrievalResult
	fail    bool
	calls   int
}

func (f *fakeRetriever) Search(ctx context.Context, repoID, query, pathGlob string, k int) ([]*domainRepo.RetrievalResult, error) {
	f.calls++
	if f.fail {
		return nil, &retrieval.RetrievalDegradedError{RepoID: repoID, Err: fmt.Errorf("index down")}
	}
	return f.results, nil
}

// fakeSummaryProvider 固定摘要的提供实现
type fakeSummaryProvider struct {
	summary *domainRepo.RepositorySummary
	err     error
	calls   int
}

func (f *fakeSummaryProvider) Summary(ctx context.Context, repoID string) (*domainRepo.RepositorySummary, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.summary, nil
}

var promptChunkPattern = regexp.MustCompile(`\(chunk ([A-Za-z0-9_-]+)\)`)

// fakeGenerator 确定性生成器
// 默认引用上下文中的首个片段；badReplies 控制前 N 次返回无效引用
type fakeGenerator struct {
	badReplies     int
	failAll        bool
	calls          int
	lastUserPrompt string
}

func (f *fakeGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	f.lastUserPrompt = userPrompt
	if f.failAll {
		return "", fmt.Errorf("llm exhausted retries")
	}
	if f.calls <= f.badReplies {
		return "It happens in `made_up.go` [chunk:bogus].", nil
	}

	match := promptChunkPattern.FindStringSubmatch(userPrompt)
	if match == nil {
		return "The repository context is unavailable, so this answer is not grounded in the code.", nil
	}
	return fmt.Sprintf("The logic lives here [chunk:%s].", match[1]), nil
}

// memConvRepo 内存会话仓库
type memConvRepo struct {
	turns map[string][]*domainConv.Turn
}

func newMemConvRepo() *memConvRepo {
	return &memConvRepo{turns: make(map[string][]*domainConv.Turn)}
}

func (m *memConvRepo) AppendTurn(sessionID, repoID string, turn *domainConv.Turn) error {
	m.turns[sessionID] = append(m.turns[sessionID], turn)
	return nil
}

func (m *memConvRepo) GetTurns(sessionID string) ([]*domainConv.Turn, error) {
	return m.turns[sessionID], nil
}

func (m *memConvRepo) GetState(sessionID string) (*domainConv.ConversationState, error) {
	return &domainConv.ConversationState{SessionID: sessionID, Turns: m.turns[sessionID]}, nil
}

func (m *memConvRepo) DeleteSession(sessionID string) error {
	delete(m.turns, sessionID)
	return nil
}

// memCkptRepo 内存检查点仓库，记录每次保存的快照
type memCkptRepo struct {
	current   map[string][]byte
	snapshots [][]byte
}

func newMemCkptRepo() *memCkptRepo {
	return &memCkptRepo{current: make(map[string][]byte)}
}

func (m *memCkptRepo) SaveCheckpoint(sessionID string, payload []byte) error {
	snapshot := make([]byte, len(payload))
	copy(snapshot, payload)
	m.current[sessionID] = snapshot
	m.snapshots = append(m.snapshots, snapshot)
	return nil
}

func (m *memCkptRepo) GetCheckpoint(sessionID string) ([]byte, error) {
	return m.current[sessionID], nil
}

func (m *memCkptRepo) DeleteCheckpoint(sessionID string) error {
	delete(m.current, sessionID)
	return nil
}

type runnerFixture struct {
	runner    *Runner
	retriever *fakeRetriever
	generator *fakeGenerator
	summaries *fakeSummaryProvider
	convRepo  *memConvRepo
	ckptRepo  *memCkptRepo
}

func sampleSummary() *domainRepo.RepositorySummary {
	return &domainRepo.RepositorySummary{
		RepoID:            "repo-1",
		Frameworks:        []string{"gin"},
		Languages:         []string{"go"},
		ArchitectureNotes: []string{"architecture: Modular"},
		GeneratedAt:       1,
	}
}

func newRunnerFixture(t *testing.T, retriever *fakeRetriever, generator *fakeGenerator) *runnerFixture {
	t.Helper()
	return newRunnerFixtureWithSummaries(t, retriever, generator, &fakeSummaryProvider{summary: sampleSummary()})
}

func newRunnerFixtureWithSummaries(t *testing.T, retriever *fakeRetriever, generator *fakeGenerator, summaries *fakeSummaryProvider) *runnerFixture {
	t.Helper()

	cfg := &config.OrchestratorConfig{
		SearchLimit:          12,
		TokenBudget:          4000,
		ContextCharLimit:     12000,
		MaxValidationRetries: 2,
		HistoryWindow:        10,
	}

	assembler, err := retrieval.NewContextAssembler(cfg)
	require.NoError(t, err)

	convRepo := newMemConvRepo()
	ckptRepo := newMemCkptRepo()

	runner := NewRunner(NewMachine(assembler, cfg), retriever, generator, summaries, convRepo, ckptRepo, nil, cfg)
	return &runnerFixture{
		runner:    runner,
		retriever: retriever,
		generator: generator,
		summaries: summaries,
		convRepo:  convRepo,
		ckptRepo:  ckptRepo,
	}
}

func TestRunner_HappyPath(t *testing.T) {
	fx := newRunnerFixture(t, &fakeRetriever{results: sampleResults()}, &fakeGenerator{})

	answer, err := fx.runner.Ask(context.Background(), "s1", "repo-1", "how does token validation work")
	require.NoError(t, err)
	require.NotNil(t, answer)

	assert.Equal(t, domainConv.ConfidenceNormal, answer.Confidence)
	assert.Equal(t, []string{"chunk-a"}, answer.CitedChunkIDs)

	// 问答双方都已持久化
	turns, _ := fx.convRepo.GetTurns("s1")
	require.Len(t, turns, 2)
	assert.Equal(t, domainConv.RoleUser, turns[0].Role)
	assert.Equal(t, domainConv.RoleAssistant, turns[1].Role)
	assert.Equal(t, answer.CitedChunkIDs, turns[1].RetrievedChunkIDs)

	// 每次转移都有检查点
	assert.NotEmpty(t, fx.ckptRepo.snapshots)
}

func TestRunner_SmalltalkSkipsRetrievalAndGeneration(t *testing.T) {
	fx := newRunnerFixture(t, &fakeRetriever{}, &fakeGenerator{})

	answer, err := fx.runner.Ask(context.Background(), "s1", "repo-1", "hello")
	require.NoError(t, err)
	require.NotNil(t, answer)

	assert.Equal(t, 0, fx.retriever.calls)
	assert.Equal(t, 0, fx.generator.calls)
	assert.Equal(t, 0, fx.summaries.calls, "寒暄短路不获取摘要")
	assert.Equal(t, domainConv.ConfidenceNormal, answer.Confidence)
}

func TestRunner_SummaryGroundsGeneration(t *testing.T) {
	fx := newRunnerFixture(t, &fakeRetriever{results: sampleResults()}, &fakeGenerator{})

	_, err := fx.runner.Ask(context.Background(), "s1", "repo-1", "how does token validation work")
	require.NoError(t, err)

	assert.Equal(t, 1, fx.summaries.calls)
	assert.Contains(t, fx.generator.lastUserPrompt, "Repository overview:")
	assert.Contains(t, fx.generator.lastUserPrompt, "gin")
	assert.Contains(t, fx.generator.lastUserPrompt, "architecture: Modular")
}

func TestRunner_SummaryUnavailableStillAnswers(t *testing.T) {
	summaries := &fakeSummaryProvider{err: fmt.Errorf("repository repo-1 has no ingested chunks")}
	fx := newRunnerFixtureWithSummaries(t, &fakeRetriever{results: sampleResults()}, &fakeGenerator{}, summaries)

	answer, err := fx.runner.Ask(context.Background(), "s1", "repo-1", "how does token validation work")
	require.NoError(t, err)
	require.NotNil(t, answer)

	assert.Equal(t, domainConv.ConfidenceNormal, answer.Confidence)
	assert.NotContains(t, fx.generator.lastUserPrompt, "Repository overview:")
}

func TestRunner_RetrievalDegradedYieldsLowConfidence(t *testing.T) {
	fx := newRunnerFixture(t, &fakeRetriever{fail: true}, &fakeGenerator{})

	answer, err := fx.runner.Ask(context.Background(), "s1", "repo-1", "how does auth work")
	require.NoError(t, err)
	require.NotNil(t, answer)

	assert.Equal(t, domainConv.ConfidenceLow, answer.Confidence)
	assert.Empty(t, answer.CitedChunkIDs)
}

func TestRunner_GenerationFailureIsError(t *testing.T) {
	fx := newRunnerFixture(t, &fakeRetriever{results: sampleResults()}, &fakeGenerator{failAll: true})

	answer, err := fx.runner.Ask(context.Background(), "s1", "repo-1", "how does auth work")
	require.Error(t, err)
	assert.Nil(t, answer, "生成失败绝不返回空答案冒充成功")

	var genErr *GenerationError
	assert.ErrorAs(t, err, &genErr)
}

func TestRunner_ValidationRetryRecovers(t *testing.T) {
	fx := newRunnerFixture(t, &fakeRetriever{results: sampleResults()}, &fakeGenerator{badReplies: 1})

	answer, err := fx.runner.Ask(context.Background(), "s1", "repo-1", "how does auth work")
	require.NoError(t, err)
	require.NotNil(t, answer)

	assert.Equal(t, domainConv.ConfidenceNormal, answer.Confidence)
	assert.Equal(t, 2, fx.generator.calls, "首次校验失败后改写查询并重新生成")
	assert.Equal(t, 2, fx.retriever.calls, "查询改写触发第二次检索")
}

func TestRunner_ValidationExhaustedYieldsLowConfidence(t *testing.T) {
	fx := newRunnerFixture(t, &fakeRetriever{results: sampleResults()}, &fakeGenerator{badReplies: 100})

	answer, err := fx.runner.Ask(context.Background(), "s1", "repo-1", "how does auth work")
	require.NoError(t, err)
	require.NotNil(t, answer)

	assert.Equal(t, domainConv.ConfidenceLow, answer.Confidence)
	assert.Empty(t, answer.CitedChunkIDs)
}

func TestRunner_ResumeFromEveryCheckpointYieldsSameAnswer(t *testing.T) {
	// 先跑一次完整流程，收集每个检查点
	fx := newRunnerFixture(t, &fakeRetriever{results: sampleResults()}, &fakeGenerator{})

	want, err := fx.runner.Ask(context.Background(), "s1", "repo-1", "how does token validation work")
	require.NoError(t, err)
	require.NotEmpty(t, fx.ckptRepo.snapshots)

	for i, snapshot := range fx.ckptRepo.snapshots {
		state, err := UnmarshalState(snapshot)
		require.NoError(t, err)
		if state.Node.Terminal() {
			continue
		}

		// 用相同的确定性依赖从该检查点恢复
		resumed := newRunnerFixture(t, &fakeRetriever{results: sampleResults()}, &fakeGenerator{})
		require.NoError(t, resumed.ckptRepo.SaveCheckpoint("s1", snapshot))

		answer, err := resumed.runner.Resume(context.Background(), "s1")
		require.NoError(t, err, "checkpoint %d (node %s)", i, state.Node)
		require.NotNil(t, answer)
		assert.Equal(t, want.Text, answer.Text, "checkpoint %d (node %s)", i, state.Node)
		assert.Equal(t, want.CitedChunkIDs, answer.CitedChunkIDs, "checkpoint %d", i)
		assert.Equal(t, want.Confidence, answer.Confidence, "checkpoint %d", i)
	}
}

func TestRunner_ResumeCompletedSessionReturnsAnswer(t *testing.T) {
	fx := newRunnerFixture(t, &fakeRetriever{results: sampleResults()}, &fakeGenerator{})

	want, err := fx.runner.Ask(context.Background(), "s1", "repo-1", "how does token validation work")
	require.NoError(t, err)

	answer, err := fx.runner.Resume(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, want.Text, answer.Text)

	// 已完成会话的恢复不触发新的问答持久化
	turns, _ := fx.convRepo.GetTurns("s1")
	assert.Len(t, turns, 2)
}

func TestRunner_ResumeWithoutCheckpoint(t *testing.T) {
	fx := newRunnerFixture(t, &fakeRetriever{}, &fakeGenerator{})

	_, err := fx.runner.Resume(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrNoCheckpoint)
}

func TestRunner_ContextCancellation(t *testing.T) {
	fx := newRunnerFixture(t, &fakeRetriever{results: sampleResults()}, &fakeGenerator{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.runner.Ask(ctx, "s1", "repo-1", "how does auth work")
	assert.ErrorIs(t, err, context.Canceled)
}
