package orchestrator

import (
	domainConv "github.com/repolens/backend/internal/domain/conversation"
	domainRepo "github.com/repolens/backend/internal/domain/repository"
)

// EffectKind 副作用类型
type EffectKind string

const (
	// EffectEmitTransition 推送节点转移事件（尽力而为）
	EffectEmitTransition EffectKind = "emit_transition"
	// EffectFetchSummary 获取仓库摘要（过期时由提供方同步重算）
	EffectFetchSummary EffectKind = "fetch_summary"
	// EffectSearch 执行向量检索
	EffectSearch EffectKind = "search"
	// EffectGenerate 调用 LLM 生成
	EffectGenerate EffectKind = "generate"
	// EffectPersistAnswer 持久化本轮问答
	EffectPersistAnswer EffectKind = "persist_answer"
)

// FetchSummarySpec 摘要获取副作用参数
type FetchSummarySpec struct {
	RepoID string
}

// SearchSpec 检索副作用参数
type SearchSpec struct {
	RepoID   string
	Query    string
	PathGlob string
	K        int
}

// GenerateSpec 生成副作用参数
type GenerateSpec struct {
	SystemPrompt string
	UserPrompt   string
}

// Effect 待执行的副作用
// 转移函数只声明副作用，执行由 Runner 负责
type Effect struct {
	Kind         EffectKind
	From, To     Node               // EffectEmitTransition
	FetchSummary *FetchSummarySpec  // EffectFetchSummary
	Search       *SearchSpec        // EffectSearch
	Generate     *GenerateSpec      // EffectGenerate
	Answer       *domainConv.Answer // EffectPersistAnswer
}

// InputKind 转移输入类型
type InputKind string

const (
	// InputStart 启动编排
	InputStart InputKind = "start"
	// InputResume 从检查点恢复，不改变状态，仅重新声明待执行副作用
	InputResume InputKind = "resume"
	// InputContinue 纯计算节点的推进信号
	InputContinue InputKind = "continue"
	// InputSummaryFetched 摘要获取完成（缺失时 Summary 为 nil）
	InputSummaryFetched InputKind = "summary_fetched"
	// InputRetrieved 检索完成
	InputRetrieved InputKind = "retrieved"
	// InputRetrievalDegraded 检索降级
	InputRetrievalDegraded InputKind = "retrieval_degraded"
	// InputGenerated 生成完成
	InputGenerated InputKind = "generated"
	// InputGenerationFailed 生成失败（重试已耗尽）
	InputGenerationFailed InputKind = "generation_failed"
)

// Input 转移输入
type Input struct {
	Kind    InputKind
	Summary *domainRepo.RepositorySummary
	Results []*domainRepo.RetrievalResult
	Text    string
	Err     string
}
