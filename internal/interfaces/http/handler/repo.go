package handler

import (
	"errors"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/repolens/backend/internal/application/analyzer"
	"github.com/repolens/backend/internal/application/ingestion"
	"github.com/repolens/backend/internal/application/retrieval"
	domainRepo "github.com/repolens/backend/internal/domain/repository"
	"github.com/repolens/backend/internal/infrastructure/log"
	"github.com/repolens/backend/internal/infrastructure/watcher"
)

// RepoHandler 仓库摄入/检索/摘要处理器
type RepoHandler struct {
	ingestService   *ingestion.Service
	retrievalSvc    *retrieval.Service
	analyzerService *analyzer.Service
	repoWatcher     *watcher.RepoWatcher
	logger          *slog.Logger
}

// NewRepoHandler 创建仓库处理器
func NewRepoHandler(
	ingestService *ingestion.Service,
	retrievalSvc *retrieval.Service,
	analyzerService *analyzer.Service,
	repoWatcher *watcher.RepoWatcher,
) *RepoHandler {
	return &RepoHandler{
		ingestService:   ingestService,
		retrievalSvc:    retrievalSvc,
		analyzerService: analyzerService,
		repoWatcher:     repoWatcher,
		logger:          log.NewModuleLogger("http", "repo_handler"),
	}
}

// IngestFileRequest 摄入的单个文件
type IngestFileRequest struct {
	Path    string `json:"path" binding:"required"`
	Content string `json:"content"`
}

// IngestRequest 摄入请求
type IngestRequest struct {
	Files []IngestFileRequest `json:"files" binding:"required"`
	// RootDir 本地仓库根目录，提供时开启文件变更监听
	RootDir string `json:"root_dir,omitempty"`
}

// Ingest 摄入仓库文件
// POST /api/repos/:repoID/ingest
func (h *RepoHandler) Ingest(c *gin.Context) {
	repoID := c.Param("repoID")

	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	files := make([]*ingestion.SourceFile, len(req.Files))
	for i, f := range req.Files {
		files[i] = &ingestion.SourceFile{
			Path:    f.Path,
			Content: []byte(f.Content),
		}
	}

	result, err := h.ingestService.Ingest(c.Request.Context(), repoID, files)
	if err != nil {
		var ingestErr *ingestion.IngestionError
		if errors.As(err, &ingestErr) {
			h.logger.Error("Ingestion failed",
				"repo_id", repoID,
				"stage", ingestErr.Stage,
				"error", err,
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "stage": ingestErr.Stage})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 摄入成功后注册目录监听，文件变更会将摘要标记为过期
	if req.RootDir != "" && h.repoWatcher != nil {
		if err := h.repoWatcher.WatchRepo(repoID, req.RootDir); err != nil {
			h.logger.Warn("Failed to watch repository directory",
				"repo_id", repoID,
				"root", req.RootDir,
				"error", err,
			)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"repo_id":       result.RepoID,
		"chunk_count":   result.ChunkCount,
		"skipped_files": result.SkippedFiles,
		"stale_removed": result.StaleRemoved,
	})
}

// Search 语义检索仓库片段
// GET /api/repos/:repoID/search?q=...&k=...&path=...
func (h *RepoHandler) Search(c *gin.Context) {
	repoID := c.Param("repoID")
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}

	k := 0
	if raw := c.Query("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter k must be an integer"})
			return
		}
		k = parsed
	}
	pathGlob := c.Query("path")

	results, err := h.retrievalSvc.Search(c.Request.Context(), repoID, query, pathGlob, k)
	if err != nil {
		var degraded *retrieval.RetrievalDegradedError
		if errors.As(err, &degraded) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	results = retrieval.Rerank(query, results)
	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"count":   len(results),
	})
}

// Summary 获取仓库智能摘要（过期时同步重算）
// sync=true 时无条件重算
// GET /api/repos/:repoID/summary?sync=true
func (h *RepoHandler) Summary(c *gin.Context) {
	repoID := c.Param("repoID")

	var (
		summary *domainRepo.RepositorySummary
		err     error
	)
	if c.Query("sync") == "true" {
		summary, err = h.analyzerService.Analyze(c.Request.Context(), repoID)
	} else {
		summary, err = h.analyzerService.Summary(c.Request.Context(), repoID)
	}
	if err != nil {
		if errors.Is(err, analyzer.ErrNoChunks) {
			c.JSON(http.StatusAccepted, gin.H{"status": "analysis pending", "repo_id": repoID})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Delete 删除仓库的全部索引数据
// DELETE /api/repos/:repoID
func (h *RepoHandler) Delete(c *gin.Context) {
	repoID := c.Param("repoID")

	if err := h.ingestService.DeleteRepo(c.Request.Context(), repoID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.repoWatcher != nil {
		h.repoWatcher.UnwatchRepo(repoID)
	}

	c.JSON(http.StatusOK, gin.H{"message": "repository deleted", "repo_id": repoID})
}
