package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"talent-match-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_TestEnvironmentDefaults(t *testing.T) {
	// go test 的进程参数中包含 "test"，空路径应返回默认配置
	cfg, err := config.LoadConfig("")
	require.NoError(t, err, "测试环境应返回默认配置")
	require.NotNil(t, cfg)

	assert.Equal(t, "http://localhost:6333", cfg.Qdrant.Endpoint)
	assert.Equal(t, "talent_match", cfg.Qdrant.CollectionPrefix)
	assert.Equal(t, 1024, cfg.Qdrant.Dimension)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "qwen-plus", cfg.Aliyun.Model)
	assert.Equal(t, "text-embedding-v3", cfg.Aliyun.Embedding.Model)
	assert.Equal(t, "match.events.exchange", cfg.RabbitMQ.MatchEventsExchange)
	assert.Equal(t, "match.completed", cfg.RabbitMQ.MatchCompletedRoutingKey)
	assert.Equal(t, "resume-originals", cfg.MinIO.ResumeBucket)
}

func TestLoadConfig_FromFile(t *testing.T) {
	yaml := `
aliyun:
  api_key: file-key
  model: qwen-max
qdrant:
  endpoint: http://qdrant:6333
  dimension: 512
server:
  address: ":9090"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.Aliyun.APIKey)
	assert.Equal(t, "qwen-max", cfg.Aliyun.Model)
	assert.Equal(t, "http://qdrant:6333", cfg.Qdrant.Endpoint)
	assert.Equal(t, 512, cfg.Qdrant.Dimension)
	assert.Equal(t, ":9090", cfg.Server.Address)
	// 未配置的项应落到默认值
	assert.Equal(t, "talent_match", cfg.Qdrant.CollectionPrefix)
	assert.Equal(t, "text-embedding-v3", cfg.Aliyun.Embedding.Model)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	yaml := `
aliyun:
  api_key: file-key
qdrant:
  endpoint: http://file:6333
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	t.Setenv("ALIYUN_API_KEY", "env-key")
	t.Setenv("QDRANT_ENDPOINT", "http://env:6333")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Aliyun.APIKey, "环境变量应覆盖文件配置")
	assert.Equal(t, "http://env:6333", cfg.Qdrant.Endpoint)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := config.LoadConfig("/nonexistent/config.yaml")
	assert.Error(t, err, "配置文件不存在应报错")
}

func TestConfig_Validate(t *testing.T) {
	cfg := &config.Config{}
	err := cfg.Validate()
	require.Error(t, err, "缺少必需配置应在启动时失败")
	assert.Contains(t, err.Error(), "aliyun.api_key")
	assert.Contains(t, err.Error(), "qdrant.endpoint")

	cfg.Aliyun.APIKey = "key"
	cfg.Qdrant.Endpoint = "http://localhost:6333"
	assert.NoError(t, cfg.Validate())
}
