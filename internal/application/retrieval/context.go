package retrieval

import (
	"fmt"
	"strings"

	domainRepo "github.com/repolens/backend/internal/domain/repository"
	"github.com/repolens/backend/internal/infrastructure/config"
	"github.com/repolens/backend/internal/infrastructure/tokenizer"
)

// AssembledContext 组装好的生成上下文
type AssembledContext struct {
	Text             string   // 提示词中的上下文部分
	IncludedChunkIDs []string // 实际纳入的片段 ID，按纳入顺序
	TokenCount       int
	Truncated        bool
}

// ContextAssembler 上下文组装器
// 按重排顺序整片纳入，遇到首个放不下的片段即停止：纳入集始终是重排结果的前缀
// 片段从不跨预算截断；唯一例外是首个片段独自超预算时按行截断
type ContextAssembler struct {
	counter     *tokenizer.TokenCounter
	tokenBudget int
	charLimit   int
}

// NewContextAssembler 创建上下文组装器
func NewContextAssembler(cfg *config.OrchestratorConfig) (*ContextAssembler, error) {
	counter, err := tokenizer.GetTokenCounter()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token counter: %w", err)
	}

	return &ContextAssembler{
		counter:     counter,
		tokenBudget: cfg.TokenBudget,
		charLimit:   cfg.ContextCharLimit,
	}, nil
}

// Assemble 组装上下文
func (a *ContextAssembler) Assemble(results []*domainRepo.RetrievalResult) *AssembledContext {
	assembled := &AssembledContext{}
	if len(results) == 0 {
		return assembled
	}

	var sb strings.Builder
	remaining := a.tokenBudget

	for i, result := range results {
		block := formatChunkBlock(result)
		tokens := a.counter.CountTokens(block)

		if tokens > remaining {
			// 首片段独自超预算：按行截断而非丢弃，保证上下文非空
			if i == 0 {
				block, tokens = a.truncateToBudget(result, remaining)
				if block == "" {
					break
				}
				assembled.Truncated = true
			} else {
				// 后续片段放不下即停止，不得跳过后继续纳入更小的片段
				assembled.Truncated = true
				break
			}
		}

		if sb.Len()+len(block) > a.charLimit {
			assembled.Truncated = true
			break
		}

		sb.WriteString(block)
		remaining -= tokens
		assembled.TokenCount += tokens
		assembled.IncludedChunkIDs = append(assembled.IncludedChunkIDs, result.ChunkID)
	}

	assembled.Text = sb.String()
	return assembled
}

// truncateToBudget 按行截断片段直到 Token 预算内
func (a *ContextAssembler) truncateToBudget(result *domainRepo.RetrievalResult, budget int) (string, int) {
	lines := strings.Split(result.Text, "\n")

	for len(lines) > 1 {
		lines = lines[:len(lines)-1]
		candidate := formatChunkBlock(&domainRepo.RetrievalResult{
			ChunkID:   result.ChunkID,
			FilePath:  result.FilePath,
			StartLine: result.StartLine,
			EndLine:   result.StartLine + len(lines) - 1,
			Text:      strings.Join(lines, "\n"),
		})
		if tokens := a.counter.CountTokens(candidate); tokens <= budget {
			return candidate, tokens
		}
	}

	return "", 0
}

// formatChunkBlock 格式化单个片段的上下文块
func formatChunkBlock(result *domainRepo.RetrievalResult) string {
	return fmt.Sprintf("--- %s:%d-%d (chunk %s)\n%s\n\n",
		result.FilePath, result.StartLine, result.EndLine, result.ChunkID, result.Text)
}
