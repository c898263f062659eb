package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainConv "github.com/repolens/backend/internal/domain/conversation"
	"github.com/repolens/backend/internal/infrastructure/config"
)

// blockingAsker 可控阻塞的问答实现
type blockingAsker struct {
	started   chan struct{}
	release   chan struct{}
	startOnce sync.Once
}

func newBlockingAsker() *blockingAsker {
	return &blockingAsker{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (b *blockingAsker) Ask(ctx context.Context, sessionID, repoID, query string) (*domainConv.Answer, error) {
	b.startOnce.Do(func() { close(b.started) })
	<-b.release
	return &domainConv.Answer{Text: "done", Confidence: domainConv.ConfidenceNormal}, nil
}

func (b *blockingAsker) Resume(ctx context.Context, sessionID string) (*domainConv.Answer, error) {
	return &domainConv.Answer{Text: "resumed", Confidence: domainConv.ConfidenceNormal}, nil
}

// memConvRepo 内存会话仓库
type memConvRepo struct {
	mu    sync.Mutex
	turns map[string][]*domainConv.Turn
}

func newMemConvRepo() *memConvRepo {
	return &memConvRepo{turns: make(map[string][]*domainConv.Turn)}
}

func (m *memConvRepo) AppendTurn(sessionID, repoID string, turn *domainConv.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[sessionID] = append(m.turns[sessionID], turn)
	return nil
}

func (m *memConvRepo) GetTurns(sessionID string) ([]*domainConv.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turns[sessionID], nil
}

func (m *memConvRepo) GetState(sessionID string) (*domainConv.ConversationState, error) {
	return nil, nil
}

func (m *memConvRepo) DeleteSession(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.turns, sessionID)
	return nil
}

func newTestManager(asker Asker) (*Manager, *memConvRepo) {
	repo := newMemConvRepo()
	return NewManager(asker, repo, &config.OrchestratorConfig{HistoryWindow: 4}), repo
}

func TestAsk_RejectsConcurrentRequestOnSameSession(t *testing.T) {
	asker := newBlockingAsker()
	manager, _ := newTestManager(asker)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := manager.Ask(context.Background(), "s1", "repo-1", "first")
		assert.NoError(t, err)
	}()

	// 等待首个请求进入处理
	<-asker.started

	_, err := manager.Ask(context.Background(), "s1", "repo-1", "second")
	assert.ErrorIs(t, err, ErrSessionBusy)

	close(asker.release)
	wg.Wait()

	// 请求结束后会话可再次使用
	asker2 := newBlockingAsker()
	manager2, _ := newTestManager(asker2)
	go func() { close(asker2.release) }()
	_, err = manager2.Ask(context.Background(), "s1", "repo-1", "third")
	assert.NoError(t, err)
}

func TestAsk_DifferentSessionsDoNotBlock(t *testing.T) {
	asker := newBlockingAsker()
	manager, _ := newTestManager(asker)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = manager.Ask(context.Background(), "s1", "repo-1", "first")
	}()
	<-asker.started

	// s1 阻塞期间 s2 的繁忙检查不受影响
	done := make(chan error, 1)
	go func() {
		// blockingAsker 的 started 已关闭，直接复用 release
		_, err := manager.Ask(context.Background(), "s2", "repo-1", "other")
		done <- err
	}()

	select {
	case <-time.After(50 * time.Millisecond):
		// s2 仍在 asker 内部阻塞，但没有被 ErrSessionBusy 拒绝
	case err := <-done:
		assert.NoError(t, err)
	}

	close(asker.release)
	wg.Wait()
}

func TestHistory_Window(t *testing.T) {
	manager, repo := newTestManager(newBlockingAsker())

	for i := 0; i < 6; i++ {
		require.NoError(t, repo.AppendTurn("s1", "repo-1", &domainConv.Turn{
			Role: domainConv.RoleUser,
			Text: fmt.Sprintf("turn %d", i),
		}))
	}

	windowed, err := manager.History("s1")
	require.NoError(t, err)
	require.Len(t, windowed, 4, "历史窗口为 4")
	assert.Equal(t, "turn 2", windowed[0].Text)
	assert.Equal(t, "turn 5", windowed[3].Text)

	full, err := manager.FullHistory("s1")
	require.NoError(t, err)
	assert.Len(t, full, 6)
}

func TestNewSessionID_Unique(t *testing.T) {
	assert.NotEqual(t, NewSessionID(), NewSessionID())
}
