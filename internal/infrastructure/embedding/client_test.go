package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repolens/backend/internal/infrastructure/config"
)

// newEmbedServer 返回一个模拟 Embedding API 的测试服务器
// 每个输入文本返回 [len(text), 1] 形式的向量，保证可断言
func newEmbedServer(t *testing.T, failures *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failures != nil && failures.Load() > 0 {
			failures.Add(-1)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var req EmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := EmbeddingResponse{}
		for i, text := range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{
				Embedding: []float32{float32(len(text)), 1},
				Index:     i,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func testConfig(baseURL string) config.EmbeddingConfig {
	return config.EmbeddingConfig{
		BaseURL:      baseURL,
		APIKey:       "test-key",
		Model:        "test-model",
		ModelVersion: "test-model-v1",
		Dimension:    2,
		BatchSize:    2,
		MaxRetries:   3,
	}
}

func TestEmbedTexts_Basic(t *testing.T) {
	server := newEmbedServer(t, nil)
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	vectors, err := client.EmbedTexts(context.Background(), []string{"ab", "abcd"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, float32(2), vectors[0][0])
	assert.Equal(t, float32(4), vectors[1][0])
}

func TestEmbedTexts_BatchBoundariesDoNotAffectOutput(t *testing.T) {
	server := newEmbedServer(t, nil)
	defer server.Close()

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}

	// 批大小 2：强制跨批
	smallBatch := NewClient(testConfig(server.URL))
	batched, err := smallBatch.EmbedTexts(context.Background(), texts)
	require.NoError(t, err)

	// 批大小足够大：单批完成
	cfg := testConfig(server.URL)
	cfg.BatchSize = 100
	singleBatch := NewClient(cfg)
	unbatched, err := singleBatch.EmbedTexts(context.Background(), texts)
	require.NoError(t, err)

	assert.Equal(t, unbatched, batched, "批边界不应影响输出向量")
}

func TestEmbedTexts_RetriesTransientFailures(t *testing.T) {
	var failures atomic.Int32
	failures.Store(1) // 第一次请求失败

	server := newEmbedServer(t, &failures)
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	vectors, err := client.EmbedTexts(context.Background(), []string{"hello"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
}

func TestEmbedTexts_ExhaustedRetriesFailsWhole(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.MaxRetries = 1 // 避免测试等待退避
	client := NewClient(cfg)

	vectors, err := client.EmbedTexts(context.Background(), []string{"a", "b", "c"})
	assert.Error(t, err)
	assert.Nil(t, vectors, "耗尽重试后不应返回部分向量")
}

func TestEmbedTexts_EmptyInput(t *testing.T) {
	client := NewClient(testConfig("http://localhost:1"))

	_, err := client.EmbedTexts(context.Background(), nil)
	assert.Error(t, err)
}

func TestEmbedQuery_SamePathAsChunks(t *testing.T) {
	server := newEmbedServer(t, nil)
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	queryVec, err := client.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)

	chunkVecs, err := client.EmbedTexts(context.Background(), []string{"hello"})
	require.NoError(t, err)

	assert.Equal(t, chunkVecs[0], queryVec, "查询与片段向量化必须一致")
}

func TestBuildEmbeddingURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{"完整路径", "https://api.example.com/v1/embeddings", "https://api.example.com/v1/embeddings"},
		{"以 v1 结尾", "https://api.example.com/v1", "https://api.example.com/v1/embeddings"},
		{"以 v1/ 结尾", "https://api.example.com/v1/", "https://api.example.com/v1/embeddings"},
		{"裸域名", "https://api.example.com", "https://api.example.com/v1/embeddings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildEmbeddingURL(tt.baseURL))
		})
	}
}
