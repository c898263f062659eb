package orchestrator

import (
	"github.com/repolens/backend/internal/application/retrieval"
	domainConv "github.com/repolens/backend/internal/domain/conversation"
	"github.com/repolens/backend/internal/infrastructure/config"
)

// Machine 编排器转移机
// Transition 是纯函数：不做 IO、不修改入参，只返回新状态与待执行副作用
// 检查点持久化与副作用执行由 Runner 负责
type Machine struct {
	assembler            *retrieval.ContextAssembler
	searchLimit          int
	maxValidationRetries int
}

// NewMachine 创建转移机
func NewMachine(assembler *retrieval.ContextAssembler, cfg *config.OrchestratorConfig) *Machine {
	return &Machine{
		assembler:            assembler,
		searchLimit:          cfg.SearchLimit,
		maxValidationRetries: cfg.MaxValidationRetries,
	}
}

// Transition 执行一次状态转移
func (m *Machine) Transition(state State, input Input) (State, []Effect) {
	prev := state.Node
	next := m.apply(state, input)
	return next, m.effectsFor(prev, next)
}

// apply 计算新状态
func (m *Machine) apply(state State, input Input) State {
	if input.Kind == InputResume || state.Node.Terminal() {
		return state
	}

	switch state.Node {
	case NodeClassifyIntent:
		intent, reply := ClassifyIntent(state.Query)
		state.Intent = intent
		if intent == IntentSmalltalk {
			// 寒暄短路：不经过检索与生成
			state.Answer = &domainConv.Answer{
				Text:       reply,
				Confidence: domainConv.ConfidenceNormal,
			}
			state.Node = NodeDone
		} else {
			state.Node = NodeFetchSummary
		}

	case NodeFetchSummary:
		if input.Kind == InputSummaryFetched {
			state.Summary = input.Summary
			state.Node = NodeRetrieve
		}

	case NodeRetrieve:
		switch input.Kind {
		case InputRetrieved:
			state.Results = input.Results
			state.Node = NodeRerank
		case InputRetrievalDegraded:
			// 检索降级：跳过重排与组装，走无依据的低置信生成
			state.Degraded = true
			state.Results = nil
			state.ContextText = ""
			state.IncludedChunkIDs = nil
			state.Node = NodeGenerate
		}

	case NodeRerank:
		state.Results = retrieval.Rerank(state.EffectiveQuery, state.Results)
		state.Node = NodeAssembleContext

	case NodeAssembleContext:
		assembled := m.assembler.Assemble(state.Results)
		state.ContextText = assembled.Text
		state.IncludedChunkIDs = assembled.IncludedChunkIDs
		state.Node = NodeGenerate

	case NodeGenerate:
		switch input.Kind {
		case InputGenerated:
			state.DraftText = input.Text
			if state.Degraded {
				state.Answer = &domainConv.Answer{
					Text:       input.Text,
					Confidence: domainConv.ConfidenceLow,
				}
				state.Node = NodeDone
			} else {
				state.Node = NodeValidate
			}
		case InputGenerationFailed:
			state.FailureReason = input.Err
			state.Node = NodeFailed
		}

	case NodeValidate:
		state = m.applyValidation(state)
	}

	return state
}

// applyValidation 校验草稿并决定重试、改写或终止
func (m *Machine) applyValidation(state State) State {
	paths := make(map[string]bool)
	for _, result := range state.Results {
		if result.FilePath != "" {
			paths[result.FilePath] = true
		}
	}

	verdict := ValidateDraft(state.DraftText, state.IncludedChunkIDs, paths)

	if verdict.Valid {
		state.Answer = &domainConv.Answer{
			Text:          state.DraftText,
			CitedChunkIDs: verdict.Citations,
			Confidence:    domainConv.ConfidenceNormal,
		}
		state.Node = NodeDone
		return state
	}

	if state.ValidationRetries >= m.maxValidationRetries {
		// 重试耗尽：以低置信度返回当前草稿，不算失败
		state.Answer = &domainConv.Answer{
			Text:          state.DraftText,
			CitedChunkIDs: intersect(verdict.Citations, state.IncludedChunkIDs),
			Confidence:    domainConv.ConfidenceLow,
		}
		state.Node = NodeDone
		return state
	}

	state.ValidationRetries++
	state.CorrectiveNote = verdict.Reason +
		". Cite only chunk ids from the provided context and do not mention files outside it."

	if !state.QueryRewritten {
		// 首次失败：改写查询并重新检索一次
		state.QueryRewritten = true
		state.EffectiveQuery = rewriteQuery(state.Query)
		state.Node = NodeRetrieve
	} else {
		state.Node = NodeGenerate
	}

	return state
}

// effectsFor 声明新节点的待执行副作用
// 只依赖状态本身，恢复时可重新声明同样的副作用
func (m *Machine) effectsFor(from Node, state State) []Effect {
	effects := []Effect{{Kind: EffectEmitTransition, From: from, To: state.Node}}

	switch state.Node {
	case NodeFetchSummary:
		effects = append(effects, Effect{
			Kind:         EffectFetchSummary,
			FetchSummary: &FetchSummarySpec{RepoID: state.RepoID},
		})
	case NodeRetrieve:
		effects = append(effects, Effect{
			Kind: EffectSearch,
			Search: &SearchSpec{
				RepoID: state.RepoID,
				Query:  state.EffectiveQuery,
				K:      m.searchLimit,
			},
		})
	case NodeGenerate:
		effects = append(effects, Effect{
			Kind: EffectGenerate,
			Generate: &GenerateSpec{
				SystemPrompt: buildSystemPrompt(state.Degraded),
				UserPrompt:   buildUserPrompt(state), // 含仓库摘要前言（如有）
			},
		})
	case NodeDone:
		if state.Answer != nil {
			effects = append(effects, Effect{
				Kind:   EffectPersistAnswer,
				Answer: state.Answer,
			})
		}
	}

	return effects
}

// intersect 保序取交集
func intersect(ids, allowed []string) []string {
	allowedSet := make(map[string]bool, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = true
	}

	var kept []string
	for _, id := range ids {
		if allowedSet[id] {
			kept = append(kept, id)
		}
	}
	return kept
}
