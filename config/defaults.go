// =============================================================================
// 📦 ModelGate 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:  DefaultServerConfig(),
		Budget:  DefaultBudgetConfig(),
		Storage: DefaultStorageConfig(),
		Alert:   DefaultAlertConfig(),
		Metrics: DefaultMetricsConfig(),
		Log:     DefaultLogConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultBudgetConfig 返回默认预算配置
func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{
		DailyLimit:      5.0,
		MonthlyLimit:    50.0,
		WarningFraction: 0.8,
	}
}

// DefaultStorageConfig 返回默认存储配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Type:    "file",
		BaseDir: "data",
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "modelgate:",
		},
	}
}

// DefaultAlertConfig 返回默认告警配置
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		MaxResponseTime:  5.0,
		MaxErrorRate:     0.05,
		MaxMemoryPercent: 85,
		MaxCPUPercent:    80,
		LogChannel:       true,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "modelgate",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "console",
		EnableCaller: true,
	}
}
