// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoenixedu/modelgate/types"
)

// --- 默认配置测试 ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// 验证服务器默认值
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)

	// 验证预算默认值
	assert.Equal(t, 5.0, cfg.Budget.DailyLimit)
	assert.Equal(t, 50.0, cfg.Budget.MonthlyLimit)
	assert.Equal(t, 0.8, cfg.Budget.WarningFraction)

	// 验证存储默认值
	assert.Equal(t, "file", cfg.Storage.Type)
	assert.Equal(t, "localhost:6379", cfg.Storage.Redis.Addr)

	// 验证告警默认值
	assert.Equal(t, 5.0, cfg.Alert.MaxResponseTime)
	assert.Equal(t, 0.05, cfg.Alert.MaxErrorRate)
	assert.True(t, cfg.Alert.LogChannel)

	// 验证日志默认值
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	// 不指定配置文件，应该返回默认值
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 5.0, cfg.Budget.DailyLimit)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	// 创建临时配置文件
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s

budget:
  daily_limit: 12.5
  warning_fraction: 0.75

storage:
  type: sqlite
  sqlite_path: /tmp/usage.db

alert:
  max_error_rate: 0.1
  slack_webhook_url: https://hooks.slack.com/services/T0/B0/x
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 12.5, cfg.Budget.DailyLimit)
	assert.Equal(t, 0.75, cfg.Budget.WarningFraction)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "/tmp/usage.db", cfg.Storage.SQLitePath)
	assert.Equal(t, 0.1, cfg.Alert.MaxErrorRate)
	// 未覆盖的字段保留默认值
	assert.Equal(t, 50.0, cfg.Budget.MonthlyLimit)
	assert.Equal(t, 5.0, cfg.Alert.MaxResponseTime)
}

func TestLoader_EnvOverride(t *testing.T) {
	t.Setenv("MODELGATE_BUDGET_DAILY_LIMIT", "3.5")
	t.Setenv("MODELGATE_STORAGE_TYPE", "memory")
	t.Setenv("MODELGATE_LOG_LEVEL", "debug")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 3.5, cfg.Budget.DailyLimit)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("budget:\n  daily_limit: 2\n"), 0o644))

	t.Setenv("MODELGATE_BUDGET_DAILY_LIMIT", "9")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)
	assert.Equal(t, 9.0, cfg.Budget.DailyLimit)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 5.0, cfg.Budget.DailyLimit)
}

// --- 校验测试 ---

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"zero daily limit", func(c *Config) { c.Budget.DailyLimit = 0 }},
		{"negative monthly limit", func(c *Config) { c.Budget.MonthlyLimit = -1 }},
		{"warning fraction out of range", func(c *Config) { c.Budget.WarningFraction = 1.2 }},
		{"bad http port", func(c *Config) { c.Server.HTTPPort = 99999 }},
		{"unknown storage type", func(c *Config) { c.Storage.Type = "cassandra" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoader_CustomValidator(t *testing.T) {
	called := false
	_, err := NewLoader().WithValidator(func(c *Config) error {
		called = true
		return nil
	}).Load()
	require.NoError(t, err)
	assert.True(t, called)
}

// --- 目录构建测试 ---

func TestBuildCatalogDefaults(t *testing.T) {
	var cc CatalogConfig
	cat, err := cc.BuildCatalog()
	require.NoError(t, err)
	assert.True(t, cat.Contains("gpt-5"))
}

func TestBuildCatalogCustom(t *testing.T) {
	cc := CatalogConfig{
		Models: []ModelConfig{
			{ID: "tiny", InputRate: 0.001, OutputRate: 0.002, MaxUnits: 1000, Speed: "fastest", Quality: "good"},
		},
		Allowlists: map[string][]string{
			"free": {"tiny"}, "basic": {"tiny"}, "premium": {"tiny"}, "pro": {"tiny"},
		},
	}
	cat, err := cc.BuildCatalog()
	require.NoError(t, err)
	assert.True(t, cat.Contains("tiny"))
	assert.False(t, cat.Contains("gpt-5"))
	assert.True(t, cat.Allowed(types.TierFree, "tiny"))
}

func TestBuildCatalogRejectsInvalid(t *testing.T) {
	cc := CatalogConfig{
		Models: []ModelConfig{{ID: "bad", InputRate: -1}},
	}
	_, err := cc.BuildCatalog()
	assert.Error(t, err)
}

func TestStoreConfigConversion(t *testing.T) {
	s := StorageConfig{
		Type: "redis",
		Redis: RedisConfig{
			Addr: "redis:6379", DB: 2, KeyPrefix: "edu:",
		},
	}
	sc := s.StoreConfig()
	assert.Equal(t, "redis", string(sc.Type))
	assert.Equal(t, "redis:6379", sc.Redis.Addr)
	assert.Equal(t, 2, sc.Redis.DB)
	assert.Equal(t, "edu:", sc.Redis.KeyPrefix)
}
