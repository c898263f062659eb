package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// configFilePath 返回配置文件路径
// 优先读取 REPOLENS_CONFIG_FILE，其次数据目录下的 config.yaml，不存在返回空
func configFilePath() string {
	if path := os.Getenv(EnvConfigFile); path != "" {
		return path
	}

	path := filepath.Join(GetDataDir(), "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// loadFromFile 从 yaml 文件加载配置，覆盖已有字段
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}
