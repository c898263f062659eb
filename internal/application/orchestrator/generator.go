package orchestrator

import (
	"context"

	"github.com/repolens/backend/internal/infrastructure/llm"
)

// llmGenerator 基于 LLM 客户端的生成实现
type llmGenerator struct {
	client *llm.Client
}

// NewLLMGenerator 创建 LLM 生成器
func NewLLMGenerator(client *llm.Client) Generator {
	return &llmGenerator{client: client}
}

// Generate 实现 Generator 接口
func (g *llmGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return g.client.Chat(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	})
}
