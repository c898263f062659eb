package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv(EnvHTTPPort, "")
	t.Setenv(EnvConfigFile, "")

	cfg := NewConfig()
	assert.Equal(t, ":19870", cfg.Server.HTTPPort)
	assert.Equal(t, "repo_chunks", cfg.Qdrant.Collection)
	assert.Equal(t, 64, cfg.Embedding.BatchSize)
	assert.Equal(t, 12, cfg.Orchestrator.SearchLimit)
}

func TestNewConfig_EnvOverridePort(t *testing.T) {
	t.Setenv(EnvHTTPPort, ":29870")

	cfg := NewConfig()
	assert.Equal(t, ":29870", cfg.Server.HTTPPort)
}

func TestNewConfig_FileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "embedding:\n  model: custom-model\n  dimension: 768\norchestrator:\n  token_budget: 2000\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv(EnvConfigFile, path)
	t.Setenv(EnvHTTPPort, "")

	cfg := NewConfig()
	assert.Equal(t, "custom-model", cfg.Embedding.Model)
	assert.Equal(t, 768, cfg.Embedding.Dimension)
	assert.Equal(t, 2000, cfg.Orchestrator.TokenBudget)
	// 未覆盖的字段保持默认值
	assert.Equal(t, 64, cfg.Embedding.BatchSize)
}

func TestNewEmbeddingConfig_ReturnsCopy(t *testing.T) {
	cfg := NewConfig()
	embCfg := NewEmbeddingConfig(cfg)

	embCfg.Model = "changed"
	assert.NotEqual(t, embCfg.Model, cfg.Embedding.Model, "修改副本不应影响源配置")
}
