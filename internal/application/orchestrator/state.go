package orchestrator

import (
	"encoding/json"
	"fmt"

	domainConv "github.com/repolens/backend/internal/domain/conversation"
	domainRepo "github.com/repolens/backend/internal/domain/repository"
)

// Node 编排器节点（显式标注状态）
type Node string

const (
	NodeClassifyIntent  Node = "classify_intent"
	NodeFetchSummary    Node = "fetch_summary"
	NodeRetrieve        Node = "retrieve"
	NodeRerank          Node = "rerank"
	NodeAssembleContext Node = "assemble_context"
	NodeGenerate        Node = "generate"
	NodeValidate        Node = "validate"
	NodeDone            Node = "done"
	NodeFailed          Node = "failed"
)

// Terminal 是否为终止节点
func (n Node) Terminal() bool {
	return n == NodeDone || n == NodeFailed
}

// Intent 问题意图
type Intent string

const (
	IntentUnknown   Intent = ""
	IntentSmalltalk Intent = "smalltalk"
	IntentCode      Intent = "code"
)

// State 编排器完整状态
// 每次节点转移后整体序列化为检查点，可从任意检查点恢复
type State struct {
	Node      Node   `json:"node"`
	SessionID string `json:"session_id"`
	RepoID    string `json:"repo_id"`
	Query     string `json:"query"`

	// EffectiveQuery 实际用于检索的查询（校验失败后可被改写一次）
	EffectiveQuery string `json:"effective_query"`
	QueryRewritten bool   `json:"query_rewritten,omitempty"`

	Intent  Intent             `json:"intent,omitempty"`
	History []*domainConv.Turn `json:"history,omitempty"`

	// Summary 仓库摘要，作为生成提示词的背景前言；缺失时为 nil
	Summary *domainRepo.RepositorySummary `json:"summary,omitempty"`

	Results          []*domainRepo.RetrievalResult `json:"results,omitempty"`
	Degraded         bool                          `json:"degraded,omitempty"`
	ContextText      string                        `json:"context_text,omitempty"`
	IncludedChunkIDs []string                      `json:"included_chunk_ids,omitempty"`

	DraftText         string `json:"draft_text,omitempty"`
	ValidationRetries int    `json:"validation_retries,omitempty"`
	CorrectiveNote    string `json:"corrective_note,omitempty"`

	Answer        *domainConv.Answer `json:"answer,omitempty"`
	FailureReason string             `json:"failure_reason,omitempty"`
}

// NewState 创建初始状态
func NewState(sessionID, repoID, query string) State {
	return State{
		Node:           NodeClassifyIntent,
		SessionID:      sessionID,
		RepoID:         repoID,
		Query:          query,
		EffectiveQuery: query,
	}
}

// Marshal 序列化为检查点载荷
func (s State) Marshal() ([]byte, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal orchestrator state: %w", err)
	}
	return payload, nil
}

// UnmarshalState 从检查点载荷恢复状态
func UnmarshalState(payload []byte) (State, error) {
	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return State{}, fmt.Errorf("failed to unmarshal orchestrator state: %w", err)
	}
	return state, nil
}
