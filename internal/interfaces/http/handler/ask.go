package handler

import (
	"errors"
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/repolens/backend/internal/application/orchestrator"
	"github.com/repolens/backend/internal/application/session"
	"github.com/repolens/backend/internal/infrastructure/log"
)

// AskHandler 问答会话处理器
type AskHandler struct {
	sessions *session.Manager
	logger   *slog.Logger
}

// NewAskHandler 创建问答处理器
func NewAskHandler(sessions *session.Manager) *AskHandler {
	return &AskHandler{
		sessions: sessions,
		logger:   log.NewModuleLogger("http", "ask_handler"),
	}
}

// AskRequest 问答请求
type AskRequest struct {
	SessionID string `json:"session_id,omitempty"` // 为空时创建新会话
	Query     string `json:"query" binding:"required"`
}

// Ask 在会话中提问
// POST /api/repos/:repoID/ask
func (h *AskHandler) Ask(c *gin.Context) {
	repoID := c.Param("repoID")

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = session.NewSessionID()
	}

	ctx := log.WithSessionID(log.WithRepoID(c.Request.Context(), repoID), sessionID)

	answer, err := h.sessions.Ask(ctx, sessionID, repoID, req.Query)
	if err != nil {
		h.writeAskError(c, sessionID, err)
		return
	}

	h.logger.LogAttrs(ctx, slog.LevelInfo, "Question answered", log.LogCtxFromContext(ctx)...)
	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"answer":     answer,
	})
}

// Resume 恢复会话中断的编排
// POST /api/sessions/:sessionID/resume
func (h *AskHandler) Resume(c *gin.Context) {
	sessionID := c.Param("sessionID")
	ctx := log.WithSessionID(c.Request.Context(), sessionID)

	answer, err := h.sessions.Resume(ctx, sessionID)
	if err != nil {
		if errors.Is(err, orchestrator.ErrNoCheckpoint) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.writeAskError(c, sessionID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"answer":     answer,
	})
}

// History 获取会话历史
// GET /api/sessions/:sessionID/history
func (h *AskHandler) History(c *gin.Context) {
	sessionID := c.Param("sessionID")

	turns, err := h.sessions.FullHistory(sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"turns":      turns,
	})
}

// DeleteSession 删除会话历史与检查点
// DELETE /api/sessions/:sessionID
func (h *AskHandler) DeleteSession(c *gin.Context) {
	sessionID := c.Param("sessionID")

	if err := h.sessions.DeleteSession(sessionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "session deleted", "session_id": sessionID})
}

// writeAskError 按错误类型映射状态码
func (h *AskHandler) writeAskError(c *gin.Context, sessionID string, err error) {
	if errors.Is(err, session.ErrSessionBusy) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	var genErr *orchestrator.GenerationError
	if errors.As(err, &genErr) {
		h.logger.Error("Generation failed", "session_id", sessionID, "reason", genErr.Reason)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
