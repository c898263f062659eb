package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/repolens/backend/internal/application/retrieval"
	domainConv "github.com/repolens/backend/internal/domain/conversation"
	domainRepo "github.com/repolens/backend/internal/domain/repository"
	"github.com/repolens/backend/internal/infrastructure/config"
	"github.com/repolens/backend/internal/infrastructure/log"
)

// Retriever 检索接口
type Retriever interface {
	Search(ctx context.Context, repoID, query, pathGlob string, k int) ([]*domainRepo.RetrievalResult, error)
}

// Generator LLM 生成接口
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// SummaryProvider 仓库摘要提供接口
// 实现方负责在摘要过期时同步重算后再返回
type SummaryProvider interface {
	Summary(ctx context.Context, repoID string) (*domainRepo.RepositorySummary, error)
}

// TransitionNotifier 节点转移通知接口，推送为尽力而为
type TransitionNotifier interface {
	PushNodeTransition(sessionID, from, to string)
}

// Runner 编排器执行器
// 驱动转移机、执行副作用，并在每次转移后持久化检查点
// 进程中断后可从最近的检查点恢复并得到相同的终态
type Runner struct {
	machine       *Machine
	retriever     Retriever
	generator     Generator
	summaries     SummaryProvider
	convRepo      domainConv.ConversationRepository
	ckptRepo      domainConv.CheckpointRepository
	notifier      TransitionNotifier
	historyWindow int
	logger        *slog.Logger
}

// NewRunner 创建执行器
func NewRunner(
	machine *Machine,
	retriever Retriever,
	generator Generator,
	summaries SummaryProvider,
	convRepo domainConv.ConversationRepository,
	ckptRepo domainConv.CheckpointRepository,
	notifier TransitionNotifier,
	cfg *config.OrchestratorConfig,
) *Runner {
	return &Runner{
		machine:       machine,
		retriever:     retriever,
		generator:     generator,
		summaries:     summaries,
		convRepo:      convRepo,
		ckptRepo:      ckptRepo,
		notifier:      notifier,
		historyWindow: cfg.HistoryWindow,
		logger:        log.NewModuleLogger("orchestrator", "runner"),
	}
}

// Ask 执行一次完整的问答编排
func (r *Runner) Ask(ctx context.Context, sessionID, repoID, query string) (*domainConv.Answer, error) {
	if sessionID == "" || repoID == "" || query == "" {
		return nil, fmt.Errorf("session id, repo id and query are required")
	}

	history, err := r.loadHistory(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	state := NewState(sessionID, repoID, query)
	state.History = history

	return r.run(ctx, state, Input{Kind: InputStart})
}

// Resume 从最近的检查点恢复编排
// 已完成的会话直接返回其答案
func (r *Runner) Resume(ctx context.Context, sessionID string) (*domainConv.Answer, error) {
	payload, err := r.ckptRepo.GetCheckpoint(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if payload == nil {
		return nil, ErrNoCheckpoint
	}

	state, err := UnmarshalState(payload)
	if err != nil {
		return nil, err
	}

	if state.Node == NodeDone {
		return state.Answer, nil
	}
	if state.Node == NodeFailed {
		return nil, &GenerationError{SessionID: sessionID, Reason: state.FailureReason}
	}

	r.logger.Info("Resuming orchestration from checkpoint",
		"session_id", sessionID,
		"node", state.Node,
	)
	return r.run(ctx, state, Input{Kind: InputResume})
}

// run 驱动转移循环直到终态
func (r *Runner) run(ctx context.Context, state State, input Input) (*domainConv.Answer, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next, effects := r.machine.Transition(state, input)

		if err := r.saveCheckpoint(next); err != nil {
			return nil, err
		}

		nextInput, err := r.executeEffects(ctx, next, effects)
		if err != nil {
			return nil, err
		}

		state = next
		input = nextInput

		switch state.Node {
		case NodeDone:
			return state.Answer, nil
		case NodeFailed:
			return nil, &GenerationError{SessionID: state.SessionID, Reason: state.FailureReason}
		}
	}
}

// executeEffects 执行副作用并收敛为下一个转移输入
func (r *Runner) executeEffects(ctx context.Context, state State, effects []Effect) (Input, error) {
	input := Input{Kind: InputContinue}

	for _, effect := range effects {
		switch effect.Kind {
		case EffectEmitTransition:
			if r.notifier != nil {
				r.notifier.PushNodeTransition(state.SessionID, string(effect.From), string(effect.To))
			}

		case EffectFetchSummary:
			summary, err := r.summaries.Summary(ctx, effect.FetchSummary.RepoID)
			if err != nil {
				// 摘要缺失或重算失败不阻塞问答，继续无前言生成
				r.logger.Warn("Repository summary unavailable",
					"session_id", state.SessionID,
					"repo_id", effect.FetchSummary.RepoID,
					"error", err,
				)
				summary = nil
			}
			input = Input{Kind: InputSummaryFetched, Summary: summary}

		case EffectSearch:
			results, err := r.retriever.Search(ctx, effect.Search.RepoID, effect.Search.Query, effect.Search.PathGlob, effect.Search.K)
			if err != nil {
				var degraded *retrieval.RetrievalDegradedError
				if !errors.As(err, &degraded) {
					r.logger.Error("Unexpected retrieval failure, degrading", "session_id", state.SessionID, "error", err)
				} else {
					r.logger.Warn("Retrieval degraded", "session_id", state.SessionID, "error", err)
				}
				input = Input{Kind: InputRetrievalDegraded, Err: err.Error()}
			} else {
				input = Input{Kind: InputRetrieved, Results: results}
			}

		case EffectGenerate:
			text, err := r.generator.Generate(ctx, effect.Generate.SystemPrompt, effect.Generate.UserPrompt)
			if err != nil {
				if ctx.Err() != nil {
					return Input{}, ctx.Err()
				}
				input = Input{Kind: InputGenerationFailed, Err: err.Error()}
			} else {
				input = Input{Kind: InputGenerated, Text: text}
			}

		case EffectPersistAnswer:
			if err := r.persistAnswer(state, effect.Answer); err != nil {
				return Input{}, fmt.Errorf("failed to persist answer: %w", err)
			}
		}
	}

	return input, nil
}

// persistAnswer 持久化本轮问答
func (r *Runner) persistAnswer(state State, answer *domainConv.Answer) error {
	now := time.Now().UnixMilli()

	if err := r.convRepo.AppendTurn(state.SessionID, state.RepoID, &domainConv.Turn{
		Role:      domainConv.RoleUser,
		Text:      state.Query,
		Timestamp: now,
	}); err != nil {
		return err
	}

	return r.convRepo.AppendTurn(state.SessionID, state.RepoID, &domainConv.Turn{
		Role:              domainConv.RoleAssistant,
		Text:              answer.Text,
		RetrievedChunkIDs: answer.CitedChunkIDs,
		Timestamp:         now,
	})
}

// saveCheckpoint 持久化检查点（每次转移后整体替换）
func (r *Runner) saveCheckpoint(state State) error {
	payload, err := state.Marshal()
	if err != nil {
		return err
	}
	if err := r.ckptRepo.SaveCheckpoint(state.SessionID, payload); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// loadHistory 加载窗口内的会话历史
func (r *Runner) loadHistory(sessionID string) ([]*domainConv.Turn, error) {
	turns, err := r.convRepo.GetTurns(sessionID)
	if err != nil {
		return nil, err
	}
	if r.historyWindow > 0 && len(turns) > r.historyWindow {
		turns = turns[len(turns)-r.historyWindow:]
	}
	return turns, nil
}
