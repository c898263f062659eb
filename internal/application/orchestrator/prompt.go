package orchestrator

import (
	"fmt"
	"strings"

	domainRepo "github.com/repolens/backend/internal/domain/repository"
)

const groundedSystemPrompt = `You are a repository assistant. Answer the question using ONLY the code context below.
Cite every claim with the chunk id of its source in the form [chunk:<id>].
If the context does not contain the answer, say so explicitly.
Do not mention files that are not present in the context.`

const ungroundedSystemPrompt = `You are a repository assistant. Retrieval is currently unavailable, so no code context could be provided.
Answer from general knowledge, clearly state that the answer is not grounded in the repository, and do not fabricate file names or code.`

// buildSystemPrompt 构建系统提示词
func buildSystemPrompt(degraded bool) string {
	if degraded {
		return ungroundedSystemPrompt
	}
	return groundedSystemPrompt
}

// buildUserPrompt 构建用户提示词：摘要前言 + 历史 + 上下文 + 问题 + 纠正指令
func buildUserPrompt(state State) string {
	var sb strings.Builder

	if state.Summary != nil {
		sb.WriteString("Repository overview:\n")
		sb.WriteString(formatSummary(state.Summary))
		sb.WriteString("\n")
	}

	if len(state.History) > 0 {
		sb.WriteString("Conversation so far:\n")
		for _, turn := range state.History {
			fmt.Fprintf(&sb, "%s: %s\n", turn.Role, turn.Text)
		}
		sb.WriteString("\n")
	}

	if state.ContextText != "" {
		sb.WriteString("Code context:\n")
		sb.WriteString(state.ContextText)
		sb.WriteString("\n")
	}

	if state.CorrectiveNote != "" {
		sb.WriteString("Correction: ")
		sb.WriteString(state.CorrectiveNote)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Question: ")
	sb.WriteString(state.Query)

	return sb.String()
}

// formatSummary 将仓库摘要格式化为提示词前言
func formatSummary(summary *domainRepo.RepositorySummary) string {
	var sb strings.Builder

	if len(summary.Frameworks) > 0 {
		fmt.Fprintf(&sb, "frameworks: %s\n", strings.Join(summary.Frameworks, ", "))
	}
	if len(summary.Languages) > 0 {
		fmt.Fprintf(&sb, "languages: %s\n", strings.Join(summary.Languages, ", "))
	}
	for _, note := range summary.ArchitectureNotes {
		sb.WriteString(note)
		sb.WriteString("\n")
	}

	return sb.String()
}

// rewriteQuery 确定性查询改写
// 去掉疑问引导词，保留关键词并补充检索意图词
func rewriteQuery(query string) string {
	lowered := strings.ToLower(query)
	for _, prefix := range []string{"how does", "how do", "how is", "what is", "what are", "where is", "where are", "why does", "can you explain"} {
		if strings.HasPrefix(lowered, prefix) {
			query = strings.TrimSpace(query[len(prefix):])
			break
		}
	}
	return strings.TrimSpace(query + " implementation definition")
}
