package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/repolens/backend/internal/application/retrieval"
	"github.com/repolens/backend/internal/application/session"
)

// SearchRepositoryInput 仓库检索工具输入
type SearchRepositoryInput struct {
	RepoID   string `json:"repo_id" jsonschema:"Repository identifier used at ingestion time (required)"`
	Query    string `json:"query" jsonschema:"Natural language description of the code to find (required)"`
	PathGlob string `json:"path_glob,omitempty" jsonschema:"Optional file path glob filter, e.g. internal/**/*.go"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum number of results (1-100), defaults to server config"`
}

// SearchResultItem 单条检索结果
type SearchResultItem struct {
	ChunkID   string  `json:"chunk_id" jsonschema:"Stable chunk identifier"`
	FilePath  string  `json:"file_path" jsonschema:"File path within the repository"`
	StartLine int     `json:"start_line" jsonschema:"First line of the chunk (1-based)"`
	EndLine   int     `json:"end_line" jsonschema:"Last line of the chunk (inclusive)"`
	Score     float32 `json:"score" jsonschema:"Similarity score"`
	Text      string  `json:"text" jsonschema:"Chunk text"`
}

// SearchRepositoryOutput 仓库检索工具输出
type SearchRepositoryOutput struct {
	Results    []*SearchResultItem `json:"results" jsonschema:"Ranked list of matching code chunks"`
	TotalCount int                 `json:"total_count" jsonschema:"Number of results returned"`
}

// searchRepositoryTool 仓库检索工具实现
func (s *MCPServer) searchRepositoryTool(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SearchRepositoryInput,
) (*mcp.CallToolResult, SearchRepositoryOutput, error) {
	output := SearchRepositoryOutput{
		Results: []*SearchResultItem{},
	}

	if input.RepoID == "" {
		return nil, output, fmt.Errorf("repo_id is required")
	}
	if input.Query == "" {
		return nil, output, fmt.Errorf("query is required")
	}

	results, err := s.retrievalSvc.Search(ctx, input.RepoID, input.Query, input.PathGlob, input.Limit)
	if err != nil {
		return nil, output, fmt.Errorf("search failed: %w", err)
	}
	results = retrieval.Rerank(input.Query, results)

	output.Results = make([]*SearchResultItem, 0, len(results))
	for _, r := range results {
		output.Results = append(output.Results, &SearchResultItem{
			ChunkID:   r.ChunkID,
			FilePath:  r.FilePath,
			StartLine: r.StartLine,
			EndLine:   r.EndLine,
			Score:     r.Score,
			Text:      r.Text,
		})
	}
	output.TotalCount = len(output.Results)

	return nil, output, nil
}

// AskRepositoryInput 仓库问答工具输入
type AskRepositoryInput struct {
	RepoID    string `json:"repo_id" jsonschema:"Repository identifier used at ingestion time (required)"`
	Query     string `json:"query" jsonschema:"The question to answer (required)"`
	SessionID string `json:"session_id,omitempty" jsonschema:"Session to continue; omit to start a new conversation"`
}

// AskRepositoryOutput 仓库问答工具输出
type AskRepositoryOutput struct {
	SessionID     string   `json:"session_id" jsonschema:"Session ID for follow-up questions"`
	Text          string   `json:"text" jsonschema:"Answer text"`
	CitedChunkIDs []string `json:"cited_chunk_ids,omitempty" jsonschema:"Chunk IDs the answer cites"`
	Confidence    string   `json:"confidence" jsonschema:"Answer confidence: normal or low"`
}

// askRepositoryTool 仓库问答工具实现
func (s *MCPServer) askRepositoryTool(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input AskRepositoryInput,
) (*mcp.CallToolResult, AskRepositoryOutput, error) {
	output := AskRepositoryOutput{}

	if input.RepoID == "" {
		return nil, output, fmt.Errorf("repo_id is required")
	}
	if input.Query == "" {
		return nil, output, fmt.Errorf("query is required")
	}

	sessionID := input.SessionID
	if sessionID == "" {
		sessionID = session.NewSessionID()
	}

	answer, err := s.sessions.Ask(ctx, sessionID, input.RepoID, input.Query)
	if err != nil {
		return nil, output, fmt.Errorf("ask failed: %w", err)
	}

	output.SessionID = sessionID
	output.Text = answer.Text
	output.CitedChunkIDs = answer.CitedChunkIDs
	output.Confidence = string(answer.Confidence)

	return nil, output, nil
}

// RepositorySummaryInput 仓库摘要工具输入
type RepositorySummaryInput struct {
	RepoID string `json:"repo_id" jsonschema:"Repository identifier used at ingestion time (required)"`
}

// RepositorySummaryOutput 仓库摘要工具输出
type RepositorySummaryOutput struct {
	Frameworks        []string `json:"frameworks" jsonschema:"Detected frameworks"`
	Languages         []string `json:"languages" jsonschema:"Detected languages, by share descending"`
	ArchitectureNotes []string `json:"architecture_notes" jsonschema:"Architecture style and language breakdown"`
}

// repositorySummaryTool 仓库摘要工具实现
func (s *MCPServer) repositorySummaryTool(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input RepositorySummaryInput,
) (*mcp.CallToolResult, RepositorySummaryOutput, error) {
	output := RepositorySummaryOutput{}

	if input.RepoID == "" {
		return nil, output, fmt.Errorf("repo_id is required")
	}

	summary, err := s.analyzerService.Summary(ctx, input.RepoID)
	if err != nil {
		return nil, output, fmt.Errorf("failed to get summary: %w", err)
	}

	output.Frameworks = summary.Frameworks
	output.Languages = summary.Languages
	output.ArchitectureNotes = summary.ArchitectureNotes

	return nil, output, nil
}
