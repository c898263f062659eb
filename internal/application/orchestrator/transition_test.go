package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repolens/backend/internal/application/retrieval"
	domainConv "github.com/repolens/backend/internal/domain/conversation"
	domainRepo "github.com/repolens/backend/internal/domain/repository"
	"github.com/repolens/backend/internal/infrastructure/config"
)

func newTestMachine(t *testing.T) *Machine {
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

	return NewMachine(assembler, cfg)
}

func sampleResults() []*domainRepo.RetrievalResult {
	return []*domainRepo.RetrievalResult{
		{ChunkID: "chunk-a", FilePath: "auth.go", StartLine: 1, EndLine: 5, Text: "func validateToken() {}", Rank: 1, Score: 0.9},
		{ChunkID: "chunk-b", FilePath: "user.go", StartLine: 1, EndLine: 5, Text: "func loadUser() {}", Rank: 2, Score: 0.8},
	}
}

func TestTransition_StartGoesToFetchSummary(t *testing.T) {
	machine := newTestMachine(t)
	state := NewState("s1", "repo-1", "how does token validation work")

	next, effects := machine.Transition(state, Input{Kind: InputStart})

	assert.Equal(t, NodeFetchSummary, next.Node)
	assert.Equal(t, IntentCode, next.Intent)

	require.Len(t, effects, 2)
	assert.Equal(t, EffectEmitTransition, effects[0].Kind)
	assert.Equal(t, EffectFetchSummary, effects[1].Kind)
	assert.Equal(t, "repo-1", effects[1].FetchSummary.RepoID)
}

func TestTransition_SummaryFetchedFlowsToRetrieve(t *testing.T) {
	machine := newTestMachine(t)

	state := NewState("s1", "repo-1", "how does token validation work")
	state.Node = NodeFetchSummary

	next, effects := machine.Transition(state, Input{Kind: InputSummaryFetched, Summary: sampleSummary()})

	assert.Equal(t, NodeRetrieve, next.Node)
	require.NotNil(t, next.Summary)
	assert.Equal(t, []string{"gin"}, next.Summary.Frameworks)

	require.Len(t, effects, 2)
	assert.Equal(t, EffectSearch, effects[1].Kind)
	assert.Equal(t, "repo-1", effects[1].Search.RepoID)
	assert.Equal(t, 12, effects[1].Search.K)
}

func TestTransition_MissingSummaryStillRetrieves(t *testing.T) {
	machine := newTestMachine(t)

	state := NewState("s1", "repo-1", "query")
	state.Node = NodeFetchSummary

	next, _ := machine.Transition(state, Input{Kind: InputSummaryFetched, Summary: nil})

	assert.Equal(t, NodeRetrieve, next.Node)
	assert.Nil(t, next.Summary)
}

func TestTransition_SmalltalkShortCircuits(t *testing.T) {
	machine := newTestMachine(t)
	state := NewState("s1", "repo-1", "hello!")

	next, effects := machine.Transition(state, Input{Kind: InputStart})

	assert.Equal(t, NodeDone, next.Node)
	require.NotNil(t, next.Answer)
	assert.Equal(t, domainConv.ConfidenceNormal, next.Answer.Confidence)
	assert.Empty(t, next.Answer.CitedChunkIDs)

	// 短路路径不得出现检索副作用
	for _, effect := range effects {
		assert.NotEqual(t, EffectSearch, effect.Kind)
	}
}

func TestTransition_RetrievedFlowsThroughRerankAndAssemble(t *testing.T) {
	machine := newTestMachine(t)

	state := NewState("s1", "repo-1", "token validation")
	state.Node = NodeRetrieve

	state, _ = machine.Transition(state, Input{Kind: InputRetrieved, Results: sampleResults()})
	assert.Equal(t, NodeRerank, state.Node)

	state, _ = machine.Transition(state, Input{Kind: InputContinue})
	assert.Equal(t, NodeAssembleContext, state.Node)

	state, effects := machine.Transition(state, Input{Kind: InputContinue})
	assert.Equal(t, NodeGenerate, state.Node)
	assert.NotEmpty(t, state.ContextText)
	assert.Equal(t, []string{"chunk-a", "chunk-b"}, state.IncludedChunkIDs)

	require.Len(t, effects, 2)
	assert.Equal(t, EffectGenerate, effects[1].Kind)
	assert.Contains(t, effects[1].Generate.UserPrompt, "token validation")
	assert.Contains(t, effects[1].Generate.UserPrompt, "chunk-a")
}

func TestTransition_GeneratePromptCarriesSummaryPreamble(t *testing.T) {
	machine := newTestMachine(t)

	state := NewState("s1", "repo-1", "token validation")
	state.Node = NodeAssembleContext
	state.Summary = sampleSummary()
	state.Results = sampleResults()

	next, effects := machine.Transition(state, Input{Kind: InputContinue})

	assert.Equal(t, NodeGenerate, next.Node)
	require.Len(t, effects, 2)
	assert.Contains(t, effects[1].Generate.UserPrompt, "Repository overview:")
	assert.Contains(t, effects[1].Generate.UserPrompt, "frameworks: gin")
	assert.Contains(t, effects[1].Generate.UserPrompt, "languages: go")
}

func TestTransition_DegradedSkipsToGenerate(t *testing.T) {
	machine := newTestMachine(t)

	state := NewState("s1", "repo-1", "query")
	state.Node = NodeRetrieve

	next, effects := machine.Transition(state, Input{Kind: InputRetrievalDegraded, Err: "index down"})

	assert.Equal(t, NodeGenerate, next.Node)
	assert.True(t, next.Degraded)
	assert.Empty(t, next.ContextText)

	require.Len(t, effects, 2)
	assert.Contains(t, effects[1].Generate.SystemPrompt, "not grounded")
}

func TestTransition_DegradedAnswerIsLowConfidence(t *testing.T) {
	machine := newTestMachine(t)

	state := NewState("s1", "repo-1", "query")
	state.Node = NodeGenerate
	state.Degraded = true

	next, _ := machine.Transition(state, Input{Kind: InputGenerated, Text: "best effort answer"})

	assert.Equal(t, NodeDone, next.Node)
	require.NotNil(t, next.Answer)
	assert.Equal(t, domainConv.ConfidenceLow, next.Answer.Confidence)
	assert.Empty(t, next.Answer.CitedChunkIDs)
}

func TestTransition_ValidAnswerCompletes(t *testing.T) {
	machine := newTestMachine(t)

	state := NewState("s1", "repo-1", "query")
	state.Node = NodeValidate
	state.Results = sampleResults()
	state.IncludedChunkIDs = []string{"chunk-a", "chunk-b"}
	state.DraftText = "Token validation lives in `auth.go` [chunk:chunk-a]."

	next, effects := machine.Transition(state, Input{Kind: InputContinue})

	assert.Equal(t, NodeDone, next.Node)
	require.NotNil(t, next.Answer)
	assert.Equal(t, domainConv.ConfidenceNormal, next.Answer.Confidence)
	assert.Equal(t, []string{"chunk-a"}, next.Answer.CitedChunkIDs)

	// 完成时持久化本轮问答
	var persisted bool
	for _, effect := range effects {
		if effect.Kind == EffectPersistAnswer {
			persisted = true
		}
	}
	assert.True(t, persisted)
}

func TestTransition_FirstValidationFailureRewritesQuery(t *testing.T) {
	machine := newTestMachine(t)

	state := NewState("s1", "repo-1", "how does token validation work")
	state.Node = NodeValidate
	state.Results = sampleResults()
	state.IncludedChunkIDs = []string{"chunk-a"}
	state.DraftText = "See [chunk:bogus]."

	next, effects := machine.Transition(state, Input{Kind: InputContinue})

	assert.Equal(t, NodeRetrieve, next.Node)
	assert.Equal(t, 1, next.ValidationRetries)
	assert.True(t, next.QueryRewritten)
	assert.NotEqual(t, next.Query, next.EffectiveQuery)
	assert.NotEmpty(t, next.CorrectiveNote)

	require.Len(t, effects, 2)
	assert.Equal(t, next.EffectiveQuery, effects[1].Search.Query)
}

func TestTransition_SecondValidationFailureRegenerates(t *testing.T) {
	machine := newTestMachine(t)

	state := NewState("s1", "repo-1", "query")
	state.Node = NodeValidate
	state.QueryRewritten = true
	state.ValidationRetries = 1
	state.IncludedChunkIDs = []string{"chunk-a"}
	state.DraftText = "See [chunk:bogus]."

	next, effects := machine.Transition(state, Input{Kind: InputContinue})

	assert.Equal(t, NodeGenerate, next.Node)
	assert.Equal(t, 2, next.ValidationRetries)

	require.Len(t, effects, 2)
	assert.Contains(t, effects[1].Generate.UserPrompt, "Correction:")
}

func TestTransition_ExhaustedValidationReturnsLowConfidence(t *testing.T) {
	machine := newTestMachine(t)

	state := NewState("s1", "repo-1", "query")
	state.Node = NodeValidate
	state.QueryRewritten = true
	state.ValidationRetries = 2 // 已达 MaxValidationRetries
	state.IncludedChunkIDs = []string{"chunk-a"}
	state.DraftText = "See [chunk:bogus] and [chunk:chunk-a]."

	next, _ := machine.Transition(state, Input{Kind: InputContinue})

	assert.Equal(t, NodeDone, next.Node)
	require.NotNil(t, next.Answer)
	assert.Equal(t, domainConv.ConfidenceLow, next.Answer.Confidence)
	// 引用过滤到真实存在于上下文的片段
	assert.Equal(t, []string{"chunk-a"}, next.Answer.CitedChunkIDs)
}

func TestTransition_GenerationFailureTerminates(t *testing.T) {
	machine := newTestMachine(t)

	state := NewState("s1", "repo-1", "query")
	state.Node = NodeGenerate

	next, _ := machine.Transition(state, Input{Kind: InputGenerationFailed, Err: "llm exhausted retries"})

	assert.Equal(t, NodeFailed, next.Node)
	assert.Equal(t, "llm exhausted retries", next.FailureReason)
	assert.Nil(t, next.Answer)
}

func TestTransition_ResumeRedeclaresPendingEffects(t *testing.T) {
	machine := newTestMachine(t)

	state := NewState("s1", "repo-1", "query")
	state.Node = NodeRetrieve
	state.EffectiveQuery = "query"

	next, effects := machine.Transition(state, Input{Kind: InputResume})

	// 恢复不改变状态，只重新声明待执行副作用
	assert.Equal(t, NodeRetrieve, next.Node)
	require.Len(t, effects, 2)
	assert.Equal(t, EffectSearch, effects[1].Kind)
	assert.Equal(t, "query", effects[1].Search.Query)
}

func TestStateCheckpointRoundTrip(t *testing.T) {
	state := NewState("s1", "repo-1", "query")
	state.Node = NodeGenerate
	state.Summary = sampleSummary()
	state.Results = sampleResults()
	state.IncludedChunkIDs = []string{"chunk-a"}
	state.ContextText = "ctx"
	state.Degraded = false
	state.ValidationRetries = 1

	payload, err := state.Marshal()
	require.NoError(t, err)

	restored, err := UnmarshalState(payload)
	require.NoError(t, err)
	assert.Equal(t, state.Node, restored.Node)
	assert.Equal(t, state.IncludedChunkIDs, restored.IncludedChunkIDs)
	assert.Equal(t, state.ValidationRetries, restored.ValidationRetries)
	assert.Len(t, restored.Results, 2)
	require.NotNil(t, restored.Summary)
	assert.Equal(t, []string{"gin"}, restored.Summary.Frameworks)
}
