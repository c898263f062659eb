package vector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/repolens/backend/internal/infrastructure/config"
	"github.com/repolens/backend/internal/infrastructure/log"
)

// Manager Qdrant 连接管理器
// 负责建立连接、等待就绪和集合初始化
type Manager struct {
	host       string
	grpcPort   int
	collection string
	client     *qdrant.Client
	logger     *slog.Logger
}

// NewManager 创建 Qdrant 管理器
func NewManager(cfg *config.QdrantConfig) *Manager {
	return &Manager{
		host:       cfg.Host,
		grpcPort:   cfg.GRPCPort,
		collection: cfg.Collection,
		logger:     log.NewModuleLogger("vector", "manager"),
	}
}

// Collection 返回集合名称
func (m *Manager) Collection() string {
	return m.collection
}

// Connect 建立连接并等待服务就绪
func (m *Manager) Connect(timeout time.Duration) error {
	if err := m.waitForReady(timeout); err != nil {
		return fmt.Errorf("qdrant failed to become ready: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: m.host,
		Port: m.grpcPort,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	m.client = client
	m.logger.Info("Connected to qdrant",
		"host", m.host,
		"grpc_port", m.grpcPort,
	)
	return nil
}

// Close 关闭连接
func (m *Manager) Close() error {
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	return nil
}

// GetClient 获取 Qdrant 客户端
func (m *Manager) GetClient() *qdrant.Client {
	return m.client
}

// waitForReady 等待 Qdrant 服务就绪
func (m *Manager) waitForReady(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		client, err := qdrant.NewClient(&qdrant.Config{
			Host: m.host,
			Port: m.grpcPort,
		})
		if err == nil {
			// 测试连接：尝试列出集合
			_, err = client.ListCollections(context.Background())
			if err == nil {
				client.Close()
				return nil
			}
			client.Close()
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for qdrant to be ready")
}

// EnsureCollection 确保片段集合存在
func (m *Manager) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	if m.client == nil {
		return fmt.Errorf("qdrant client not initialized")
	}

	existing, err := m.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, name := range existing {
		if name == m.collection {
			return nil
		}
	}

	err = m.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: m.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", m.collection, err)
	}

	m.logger.Info("Created qdrant collection",
		"collection", m.collection,
		"vector_size", vectorSize,
	)
	return nil
}
