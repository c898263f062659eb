package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	domainConv "github.com/repolens/backend/internal/domain/conversation"
	"github.com/repolens/backend/internal/infrastructure/config"
	"github.com/repolens/backend/internal/infrastructure/log"
)

// ErrSessionBusy 同一会话已有请求在处理中
var ErrSessionBusy = errors.New("session has a request in flight")

// Asker 问答编排接口
type Asker interface {
	Ask(ctx context.Context, sessionID, repoID, query string) (*domainConv.Answer, error)
	Resume(ctx context.Context, sessionID string) (*domainConv.Answer, error)
}

// Manager 会话状态管理器
// 同一会话的请求严格串行：已有请求在处理时直接拒绝
// 不同会话互不阻塞
type Manager struct {
	asker         Asker
	convRepo      domainConv.ConversationRepository
	historyWindow int
	logger        *slog.Logger

	mu       sync.Mutex
	inflight map[string]bool
}

// NewManager 创建会话管理器
func NewManager(asker Asker, convRepo domainConv.ConversationRepository, cfg *config.OrchestratorConfig) *Manager {
	return &Manager{
		asker:         asker,
		convRepo:      convRepo,
		historyWindow: cfg.HistoryWindow,
		logger:        log.NewModuleLogger("session", "manager"),
		inflight:      make(map[string]bool),
	}
}

// NewSessionID 生成新会话 ID
func NewSessionID() string {
	return uuid.New().String()
}

// Ask 在指定会话上执行一次问答
// 会话已有请求在处理时返回 ErrSessionBusy
func (m *Manager) Ask(ctx context.Context, sessionID, repoID, query string) (*domainConv.Answer, error) {
	if sessionID == "" {
		sessionID = NewSessionID()
	}

	if !m.acquire(sessionID) {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionBusy)
	}
	defer m.release(sessionID)

	return m.asker.Ask(ctx, sessionID, repoID, query)
}

// Resume 恢复会话中断的编排
func (m *Manager) Resume(ctx context.Context, sessionID string) (*domainConv.Answer, error) {
	if !m.acquire(sessionID) {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionBusy)
	}
	defer m.release(sessionID)

	return m.asker.Resume(ctx, sessionID)
}

// AppendTurn 追加一轮对话（供外部写入，如文档合成的附注）
func (m *Manager) AppendTurn(sessionID, repoID string, turn *domainConv.Turn) error {
	return m.convRepo.AppendTurn(sessionID, repoID, turn)
}

// History 返回窗口内的会话历史（最近 N 轮，时间顺序）
func (m *Manager) History(sessionID string) ([]*domainConv.Turn, error) {
	turns, err := m.convRepo.GetTurns(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if m.historyWindow > 0 && len(turns) > m.historyWindow {
		turns = turns[len(turns)-m.historyWindow:]
	}
	return turns, nil
}

// FullHistory 返回完整会话历史
func (m *Manager) FullHistory(sessionID string) ([]*domainConv.Turn, error) {
	return m.convRepo.GetTurns(sessionID)
}

// DeleteSession 删除会话历史与检查点
func (m *Manager) DeleteSession(sessionID string) error {
	return m.convRepo.DeleteSession(sessionID)
}

// acquire 标记会话进行中，已进行中返回 false
func (m *Manager) acquire(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inflight[sessionID] {
		return false
	}
	m.inflight[sessionID] = true
	return true
}

// release 解除会话进行中标记
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, sessionID)
}
