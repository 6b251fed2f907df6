// =============================================================================
// 📦 ModelGate 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("MODELGATE").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/phoenixedu/modelgate/alert"
	"github.com/phoenixedu/modelgate/budget"
	"github.com/phoenixedu/modelgate/catalog"
	"github.com/phoenixedu/modelgate/ledger"
	"github.com/phoenixedu/modelgate/types"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 ModelGate 的完整配置结构
type Config struct {
	// Server 服务器配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Budget 预算配置
	Budget BudgetConfig `yaml:"budget" env:"BUDGET"`

	// Catalog 模型目录配置（空表示使用内置目录）
	Catalog CatalogConfig `yaml:"catalog" env:"-"`

	// Storage 存储配置（台账与告警共用）
	Storage StorageConfig `yaml:"storage" env:"STORAGE"`

	// Alert 告警配置
	Alert AlertConfig `yaml:"alert" env:"ALERT"`

	// Metrics 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// BudgetConfig 预算配置
type BudgetConfig struct {
	// 日限额（美元）
	DailyLimit float64 `yaml:"daily_limit" env:"DAILY_LIMIT"`
	// 月限额（美元）
	MonthlyLimit float64 `yaml:"monthly_limit" env:"MONTHLY_LIMIT"`
	// 预警比例 (0, 1)
	WarningFraction float64 `yaml:"warning_fraction" env:"WARNING_FRACTION"`
}

// ModelConfig 单个模型条目
type ModelConfig struct {
	ID           string   `yaml:"id"`
	Capabilities []string `yaml:"capabilities"`
	// 每千单位输入价（美元）
	InputRate float64 `yaml:"input_rate"`
	// 每千单位输出价（美元）
	OutputRate float64 `yaml:"output_rate"`
	MaxUnits   int     `yaml:"max_units"`
	Speed      string  `yaml:"speed"`
	Quality    string  `yaml:"quality"`
}

// CatalogConfig 模型目录配置。Models 为空时使用内置目录，
// Allowlists 为空时使用内置层级白名单。
type CatalogConfig struct {
	Models     []ModelConfig       `yaml:"models"`
	Allowlists map[string][]string `yaml:"allowlists"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	// 类型: memory, file, redis, sqlite
	Type string `yaml:"type" env:"TYPE"`
	// file 后端的数据目录
	BaseDir string `yaml:"base_dir" env:"BASE_DIR"`
	// sqlite 后端的数据库路径
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH"`
	// Redis 连接配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 键前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// AlertConfig 告警配置
type AlertConfig struct {
	// 性能阈值
	MaxResponseTime  float64 `yaml:"max_response_time" env:"MAX_RESPONSE_TIME"`
	MaxErrorRate     float64 `yaml:"max_error_rate" env:"MAX_ERROR_RATE"`
	MaxMemoryPercent float64 `yaml:"max_memory_percent" env:"MAX_MEMORY_PERCENT"`
	MaxCPUPercent    float64 `yaml:"max_cpu_percent" env:"MAX_CPU_PERCENT"`

	// 投递通道
	WebhookURL      string `yaml:"webhook_url" env:"WEBHOOK_URL"`
	SlackWebhookURL string `yaml:"slack_webhook_url" env:"SLACK_WEBHOOK_URL"`
	LogChannel      bool   `yaml:"log_channel" env:"LOG_CHANNEL"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Prometheus namespace
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "MODELGATE",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 固有校验加自定义验证器
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Budget.DailyLimit <= 0 {
		errs = append(errs, "daily_limit must be positive")
	}
	if c.Budget.MonthlyLimit <= 0 {
		errs = append(errs, "monthly_limit must be positive")
	}
	if c.Budget.WarningFraction <= 0 || c.Budget.WarningFraction >= 1 {
		errs = append(errs, "warning_fraction must be in (0, 1)")
	}
	switch c.Storage.Type {
	case "", "memory", "file", "redis", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("unknown storage type %q", c.Storage.Type))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// BuildCatalog 由配置构建模型目录；未配置时返回内置目录。
func (c *CatalogConfig) BuildCatalog() (*catalog.Catalog, error) {
	if len(c.Models) == 0 && len(c.Allowlists) == 0 {
		return catalog.Default(), nil
	}

	descriptors := catalog.DefaultDescriptors()
	if len(c.Models) > 0 {
		descriptors = make([]catalog.Descriptor, 0, len(c.Models))
		for _, m := range c.Models {
			descriptors = append(descriptors, catalog.Descriptor{
				ID:           m.ID,
				Capabilities: m.Capabilities,
				InputRate:    m.InputRate,
				OutputRate:   m.OutputRate,
				MaxUnits:     m.MaxUnits,
				Speed:        catalog.SpeedClass(m.Speed),
				Quality:      catalog.QualityClass(m.Quality),
			})
		}
	}

	allowlists := catalog.DefaultTierAllowlists()
	if len(c.Allowlists) > 0 {
		allowlists = make(map[types.Tier][]string, len(c.Allowlists))
		for tier, models := range c.Allowlists {
			allowlists[types.Tier(tier)] = models
		}
	}

	return catalog.New(descriptors, allowlists)
}

// Thresholds 把告警配置转换为性能阈值。
func (a *AlertConfig) Thresholds() alert.PerformanceThresholds {
	return alert.PerformanceThresholds{
		MaxResponseTime:  a.MaxResponseTime,
		MaxErrorRate:     a.MaxErrorRate,
		MaxMemoryPercent: a.MaxMemoryPercent,
		MaxCPUPercent:    a.MaxCPUPercent,
	}
}

// Limits 把预算配置转换为预算限额。
func (b *BudgetConfig) Limits() budget.Limits {
	return budget.Limits{
		DailyLimit:      b.DailyLimit,
		MonthlyLimit:    b.MonthlyLimit,
		WarningFraction: b.WarningFraction,
	}
}

// StoreConfig 把存储配置转换为台账层的存储配置。
func (s *StorageConfig) StoreConfig() ledger.StoreConfig {
	return ledger.StoreConfig{
		Type:    ledger.StoreType(s.Type),
		BaseDir: s.BaseDir,
		SQLite:  s.SQLitePath,
		Redis: ledger.RedisConfig{
			Addr:      s.Redis.Addr,
			Password:  s.Redis.Password,
			DB:        s.Redis.DB,
			KeyPrefix: s.Redis.KeyPrefix,
		},
	}
}
