package docsynth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/repolens/backend/internal/application/orchestrator"
	"github.com/repolens/backend/internal/application/retrieval"
	"github.com/repolens/backend/internal/domain/document"
	domainRepo "github.com/repolens/backend/internal/domain/repository"
	"github.com/repolens/backend/internal/infrastructure/config"
	"github.com/repolens/backend/internal/infrastructure/log"
)

// MaxOutlineSections 大纲章节数上限，超出部分截断
const MaxOutlineSections = 12

// placeholderContent 章节生成失败时的占位内容
const placeholderContent = "This section could not be generated. Regenerate the document to retry."

// Retriever 章节检索接口
type Retriever interface {
	Search(ctx context.Context, repoID, query, pathGlob string, k int) ([]*domainRepo.RetrievalResult, error)
}

// Service 文档合成服务
// 大纲先行：一次生成调用产出章节标题，再逐章检索+生成
// 章节之间无共享可变状态，可并发执行；最终顺序以大纲为准
type Service struct {
	retriever   Retriever
	assembler   *retrieval.ContextAssembler
	generator   orchestrator.Generator
	summaryRepo domainRepo.SummaryRepository
	draftRepo   document.DraftRepository
	cfg         *config.DocumentationConfig
	searchLimit int
	logger      *slog.Logger
}

// NewService 创建文档合成服务
func NewService(
	retriever Retriever,
	assembler *retrieval.ContextAssembler,
	generator orchestrator.Generator,
	summaryRepo domainRepo.SummaryRepository,
	draftRepo document.DraftRepository,
	cfg *config.DocumentationConfig,
	orchestratorCfg *config.OrchestratorConfig,
) *Service {
	return &Service{
		retriever:   retriever,
		assembler:   assembler,
		generator:   generator,
		summaryRepo: summaryRepo,
		draftRepo:   draftRepo,
		cfg:         cfg,
		searchLimit: orchestratorCfg.SearchLimit,
		logger:      log.NewModuleLogger("docsynth", "service"),
	}
}

// GenerateDocumentation 为仓库生成完整文档草稿
// 部分章节失败不阻断整体：失败章节以占位内容输出并记录警告
// 草稿仅在全部章节就绪后一次性持久化
func (s *Service) GenerateDocumentation(ctx context.Context, repoID, personaMode string) (*document.DocumentDraft, error) {
	if repoID == "" {
		return nil, fmt.Errorf("repo_id is required")
	}

	persona, err := ResolvePersona(s.cfg.DefaultPersona, personaMode)
	if err != nil {
		return nil, err
	}

	titles, err := s.generateOutline(ctx, repoID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate outline: %w", err)
	}

	sections := make([]*document.Section, len(titles))
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.maxConcurrent())

	for i, title := range titles {
		wg.Add(1)
		go func(idx int, title string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			sections[idx] = s.generateSection(ctx, repoID, title, persona)
		}(i, title)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	draft := &document.DocumentDraft{
		DocID:     uuid.New().String(),
		RepoID:    repoID,
		Sections:  sections,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := s.draftRepo.SaveDraft(draft); err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}

	s.logger.Info("Documentation generated",
		"repo_id", repoID,
		"doc_id", draft.DocID,
		"sections", len(sections),
		"placeholders", countPlaceholders(sections),
	)
	return draft, nil
}

// generateOutline 通过一次生成调用产出有序章节标题
func (s *Service) generateOutline(ctx context.Context, repoID string) ([]string, error) {
	systemPrompt := "You are a technical writer. Produce a documentation outline for a source code repository. " +
		"Output only section titles, one per line, no numbering, no commentary."

	var sb strings.Builder
	fmt.Fprintf(&sb, "Repository: %s\n", repoID)
	if summary, err := s.summaryRepo.GetSummary(repoID); err == nil && summary != nil {
		if len(summary.Frameworks) > 0 {
			fmt.Fprintf(&sb, "Detected frameworks: %s\n", strings.Join(summary.Frameworks, ", "))
		}
		if len(summary.Languages) > 0 {
			fmt.Fprintf(&sb, "Languages: %s\n", strings.Join(summary.Languages, ", "))
		}
	}
	sb.WriteString("Write the outline now.")

	raw, err := s.generator.Generate(ctx, systemPrompt, sb.String())
	if err != nil {
		return nil, err
	}

	titles := parseOutline(raw)
	if len(titles) == 0 {
		return nil, fmt.Errorf("outline generation returned no section titles")
	}
	return titles, nil
}

// generateSection 检索章节主题相关片段并生成章节内容
// 任何失败都降级为占位章节，绝不让单章失败拖垮整篇文档
func (s *Service) generateSection(ctx context.Context, repoID, title string, persona Persona) *document.Section {
	results, err := s.retriever.Search(ctx, repoID, title, "", s.searchLimit)
	if err != nil {
		s.logger.Warn("Section retrieval degraded, continuing without context",
			"repo_id", repoID, "section", title, "error", err)
		results = nil
	}
	results = retrieval.Rerank(title, results)
	assembled := s.assembler.Assemble(results)

	systemPrompt := "You are a technical writer producing one section of repository documentation. " +
		persona.instruction() +
		" Base the section only on the provided code context."

	var sb strings.Builder
	fmt.Fprintf(&sb, "Section title: %s\n\n", title)
	if assembled.Text != "" {
		fmt.Fprintf(&sb, "Code context:\n%s\n", assembled.Text)
	} else {
		sb.WriteString("No code context is available. Write a brief general section and say so.\n")
	}

	content, err := s.generator.Generate(ctx, systemPrompt, sb.String())
	if err != nil {
		s.logger.Warn("Section generation failed, emitting placeholder",
			"repo_id", repoID, "section", title, "error", err)
		return &document.Section{
			Title:       title,
			Content:     placeholderContent,
			Placeholder: true,
		}
	}

	return &document.Section{
		Title:          title,
		Content:        content,
		SourceChunkIDs: assembled.IncludedChunkIDs,
	}
}

// GetDraft 按 ID 读取文档草稿
func (s *Service) GetDraft(docID string) (*document.DocumentDraft, error) {
	draft, err := s.draftRepo.GetDraft(docID)
	if err != nil {
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}
	return draft, nil
}

// ListDrafts 列出仓库的全部文档草稿
func (s *Service) ListDrafts(repoID string) ([]*document.DocumentDraft, error) {
	drafts, err := s.draftRepo.GetDraftsByRepo(repoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	return drafts, nil
}

func (s *Service) maxConcurrent() int {
	if s.cfg.MaxConcurrentSections > 0 {
		return s.cfg.MaxConcurrentSections
	}
	return 1
}

// parseOutline 解析生成结果为章节标题列表
// 容忍编号、项目符号与 markdown 标题前缀
func parseOutline(raw string) []string {
	var titles []string
	for _, line := range strings.Split(raw, "\n") {
		title := strings.TrimSpace(line)
		title = strings.TrimLeft(title, "#-*• \t")
		title = strings.TrimLeft(title, "0123456789.) \t")
		title = strings.TrimSpace(title)
		if title == "" {
			continue
		}
		titles = append(titles, title)
		if len(titles) >= MaxOutlineSections {
			break
		}
	}
	return titles
}

func countPlaceholders(sections []*document.Section) int {
	n := 0
	for _, section := range sections {
		if section.Placeholder {
			n++
		}
	}
	return n
}
