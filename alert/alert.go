// Package alert 提供成本与性能告警：幂等触发、终态解决、多通道通知。
package alert

import (
	"context"
	"time"
)

// Level 告警级别
type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// Category 告警类别
type Category string

const (
	CategoryCost        Category = "cost"
	CategoryPerformance Category = "performance"
	CategoryError       Category = "error"
	CategorySystem      Category = "system"
	CategorySecurity    Category = "security"
)

// Alert 一条告警记录。Resolved 是终态：置位后不再翻转。
type Alert struct {
	ID         string                 `json:"id"`
	Level      Level                  `json:"level"`
	Category   Category               `json:"category"`
	Title      string                 `json:"title"`
	Message    string                 `json:"message"`
	CreatedAt  time.Time              `json:"created_at"`
	Resolved   bool                   `json:"resolved"`
	ResolvedAt *time.Time             `json:"resolved_at,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Filter 查询条件；nil 字段表示不过滤。
type Filter struct {
	Level    *Level
	Category *Category
	Resolved *bool
	Limit    int // 0 表示不限
}

// Store 告警持久化。告警量有上限且读写路径单一，
// 整体快照保存比逐条追加更简单，三个后端都按此契约实现。
type Store interface {
	Load(ctx context.Context) ([]Alert, error)
	Save(ctx context.Context, alerts []Alert) error
	Close() error
}
