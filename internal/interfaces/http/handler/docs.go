package handler

import (
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/repolens/backend/internal/application/docsynth"
	"github.com/repolens/backend/internal/infrastructure/log"
)

// DocsHandler 文档生成处理器
type DocsHandler struct {
	docs   *docsynth.Service
	logger *slog.Logger
}

// NewDocsHandler 创建文档处理器
func NewDocsHandler(docs *docsynth.Service) *DocsHandler {
	return &DocsHandler{
		docs:   docs,
		logger: log.NewModuleLogger("http", "docs_handler"),
	}
}

// GenerateDocsRequest 文档生成请求
type GenerateDocsRequest struct {
	PersonaMode string `json:"persona_mode,omitempty"` // sde|pm|both，为空使用项目配置
}

// Generate 为仓库生成文档草稿
// POST /api/repos/:repoID/docs
func (h *DocsHandler) Generate(c *gin.Context) {
	repoID := c.Param("repoID")

	var req GenerateDocsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 允许空请求体，使用默认视角
		req.PersonaMode = ""
	}

	draft, err := h.docs.GenerateDocumentation(c.Request.Context(), repoID, req.PersonaMode)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, draft)
}

// GetDraft 按 ID 获取文档草稿
// GET /api/docs/:docID
func (h *DocsHandler) GetDraft(c *gin.Context) {
	docID := c.Param("docID")

	draft, err := h.docs.GetDraft(docID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if draft == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
		return
	}

	c.JSON(http.StatusOK, draft)
}

// ListDrafts 列出仓库的文档草稿
// GET /api/repos/:repoID/docs
func (h *DocsHandler) ListDrafts(c *gin.Context) {
	repoID := c.Param("repoID")

	drafts, err := h.docs.ListDrafts(repoID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"repo_id": repoID,
		"drafts":  drafts,
		"count":   len(drafts),
	})
}
