package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phoenixedu/modelgate/budget"
	"github.com/phoenixedu/modelgate/types"
)

// maxRetained 内存与持久化中保留的告警条数上限，超出后淘汰最旧的。
const maxRetained = 1000

// PerformanceThresholds 性能告警阈值
type PerformanceThresholds struct {
	MaxResponseTime  float64 `yaml:"max_response_time"`  // 秒
	MaxErrorRate     float64 `yaml:"max_error_rate"`     // 0~1
	MaxMemoryPercent float64 `yaml:"max_memory_percent"` // 0~100
	MaxCPUPercent    float64 `yaml:"max_cpu_percent"`    // 0~100
}

// DefaultThresholds 返回默认性能阈值。
func DefaultThresholds() PerformanceThresholds {
	return PerformanceThresholds{
		MaxResponseTime:  5.0,
		MaxErrorRate:     0.05,
		MaxMemoryPercent: 85,
		MaxCPUPercent:    80,
	}
}

// Validate 校验阈值合法性。
func (p PerformanceThresholds) Validate() error {
	if p.MaxResponseTime <= 0 {
		return types.NewError(types.ErrInvalidConfig, "max_response_time must be positive")
	}
	if p.MaxErrorRate <= 0 || p.MaxErrorRate > 1 {
		return types.NewError(types.ErrInvalidConfig, "max_error_rate must be in (0, 1]")
	}
	if p.MaxMemoryPercent <= 0 || p.MaxMemoryPercent > 100 {
		return types.NewError(types.ErrInvalidConfig, "max_memory_percent must be in (0, 100]")
	}
	if p.MaxCPUPercent <= 0 || p.MaxCPUPercent > 100 {
		return types.NewError(types.ErrInvalidConfig, "max_cpu_percent must be in (0, 100]")
	}
	return nil
}

// Metrics 一次性能采样
type Metrics struct {
	ResponseTime  float64 // 秒
	ErrorRate     float64 // 0~1
	MemoryPercent float64
	CPUPercent    float64
}

// Engine 告警引擎。成本告警按 (作用域, 级别, 周期) 幂等：
// 同一周期内同一越限状态只触发一次，跨周期或状态升级会再次触发。
// 性能告警按越限事件幂等：指标回落后再次越限才会重新触发。
type Engine struct {
	mu         sync.Mutex
	policy     *budget.Policy
	store      Store
	channels   []Channel
	thresholds PerformanceThresholds
	alerts     []Alert
	costFired  map[string]bool // 已触发的成本告警周期键
	inBreach   map[string]bool // 仍处于越限状态的性能指标
	logger     *zap.Logger
	now        func() time.Time
}

// NewEngine 创建引擎并从存储恢复历史告警。
// 幂等状态（周期键）从恢复出的告警元数据重建，重启不会重复告警。
func NewEngine(policy *budget.Policy, store Store, thresholds PerformanceThresholds, logger *zap.Logger, channels ...Channel) (*Engine, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	alerts, err := store.Load(context.Background())
	if err != nil {
		return nil, types.NewError(types.ErrStoreFailure, "load alert history").WithCause(err)
	}

	e := &Engine{
		policy:     policy,
		store:      store,
		channels:   channels,
		thresholds: thresholds,
		alerts:     alerts,
		costFired:  make(map[string]bool),
		inBreach:   make(map[string]bool),
		logger:     logger,
		now:        time.Now,
	}
	for _, a := range alerts {
		if key, ok := a.Metadata["episode"].(string); ok && key != "" {
			e.costFired[key] = true
		}
	}
	logger.Info("alert engine started",
		zap.Int("restored_alerts", len(alerts)),
		zap.Int("channels", len(channels)))
	return e, nil
}

// Raise 手工触发一条告警。先落盘再通知，通知失败只记日志。
func (e *Engine) Raise(ctx context.Context, level Level, category Category, title, message string, metadata map[string]interface{}) (Alert, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.raiseLocked(ctx, level, category, title, message, metadata)
}

func (e *Engine) raiseLocked(ctx context.Context, level Level, category Category, title, message string, metadata map[string]interface{}) (Alert, error) {
	a := Alert{
		ID:        uuid.New().String(),
		Level:     level,
		Category:  category,
		Title:     title,
		Message:   message,
		CreatedAt: e.now(),
		Metadata:  metadata,
	}
	e.alerts = append(e.alerts, a)
	if len(e.alerts) > maxRetained {
		e.alerts = e.alerts[len(e.alerts)-maxRetained:]
	}
	if err := e.store.Save(ctx, e.alerts); err != nil {
		return a, types.NewError(types.ErrStoreFailure, "persist alert").WithCause(err)
	}

	e.logger.Info("alert raised",
		zap.String("id", a.ID),
		zap.String("level", string(level)),
		zap.String("category", string(category)),
		zap.String("title", title))
	e.notify(ctx, a)
	return a, nil
}

// notify 逐通道投递，失败不回滚已落盘的告警。
func (e *Engine) notify(ctx context.Context, a Alert) {
	for _, ch := range e.channels {
		if err := ch.Send(ctx, a); err != nil {
			e.logger.Warn("alert channel delivery failed",
				zap.String("channel", ch.Name()),
				zap.String("alert_id", a.ID),
				zap.Error(err))
		}
	}
}

// CheckCost 对一个预算作用域做成本检查，必要时触发告警。
// 返回本次新触发的告警；同周期内重复检查返回 nil。
func (e *Engine) CheckCost(ctx context.Context, scope budget.Scope) (*Alert, error) {
	verdict, spent, limit := e.policy.StatusDetail(scope)
	if verdict == budget.VerdictOK {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	key := e.episodeKey(scope, verdict)
	if e.costFired[key] {
		return nil, nil
	}

	level := LevelWarning
	title := fmt.Sprintf("%s budget warning", scope)
	if verdict == budget.VerdictExceeded {
		level = LevelCritical
		title = fmt.Sprintf("%s budget exceeded", scope)
	}
	a, err := e.raiseLocked(ctx, level, CategoryCost, title,
		fmt.Sprintf("%s spend $%.2f against limit $%.2f", scope, spent, limit),
		map[string]interface{}{
			"episode": key,
			"scope":   string(scope),
			"spent":   spent,
			"limit":   limit,
		})
	if err != nil {
		return nil, err
	}
	e.costFired[key] = true
	return &a, nil
}

// episodeKey 组合 作用域/级别/周期 形成幂等键。
func (e *Engine) episodeKey(scope budget.Scope, verdict budget.Verdict) string {
	now := e.now()
	period := now.Format("2006-01-02")
	if scope == budget.ScopeMonthly {
		period = now.Format("2006-01")
	}
	return fmt.Sprintf("%s|%s|%s", scope, verdict, period)
}

// CheckPerformance 对一次性能采样做阈值检查，返回新触发的告警。
// 每个指标按越限事件幂等：持续越限只告警一次，回落后重新武装。
func (e *Engine) CheckPerformance(ctx context.Context, m Metrics) ([]Alert, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	checks := []struct {
		name      string
		value     float64
		threshold float64
		unit      string
	}{
		{"response_time", m.ResponseTime, e.thresholds.MaxResponseTime, "s"},
		{"error_rate", m.ErrorRate, e.thresholds.MaxErrorRate, ""},
		{"memory_percent", m.MemoryPercent, e.thresholds.MaxMemoryPercent, "%"},
		{"cpu_percent", m.CPUPercent, e.thresholds.MaxCPUPercent, "%"},
	}

	var raised []Alert
	for _, c := range checks {
		if c.value > c.threshold {
			if e.inBreach[c.name] {
				continue
			}
			e.inBreach[c.name] = true
			a, err := e.raiseLocked(ctx, LevelWarning, CategoryPerformance,
				fmt.Sprintf("%s threshold breached", c.name),
				fmt.Sprintf("%s %.2f%s over threshold %.2f%s", c.name, c.value, c.unit, c.threshold, c.unit),
				map[string]interface{}{
					"metric":    c.name,
					"value":     c.value,
					"threshold": c.threshold,
				})
			if err != nil {
				return raised, err
			}
			raised = append(raised, a)
		} else {
			// 指标回落，允许下一次越限再告警
			delete(e.inBreach, c.name)
		}
	}
	return raised, nil
}

// Alerts 按条件查询告警，新的在前。
func (e *Engine) Alerts(f Filter) []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Alert
	for i := len(e.alerts) - 1; i >= 0; i-- {
		a := e.alerts[i]
		if f.Level != nil && a.Level != *f.Level {
			continue
		}
		if f.Category != nil && a.Category != *f.Category {
			continue
		}
		if f.Resolved != nil && a.Resolved != *f.Resolved {
			continue
		}
		out = append(out, a)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}

// Resolve 将告警标记为已解决。解决是终态：
// 重复解决是无害的空操作，仍返回 true；未知 ID 返回 false。
func (e *Engine) Resolve(ctx context.Context, id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.alerts {
		if e.alerts[i].ID != id {
			continue
		}
		if e.alerts[i].Resolved {
			return true
		}
		now := e.now()
		e.alerts[i].Resolved = true
		e.alerts[i].ResolvedAt = &now
		if err := e.store.Save(ctx, e.alerts); err != nil {
			e.logger.Error("persist alert resolution failed",
				zap.String("alert_id", id), zap.Error(err))
		}
		e.logger.Info("alert resolved", zap.String("alert_id", id))
		return true
	}
	return false
}

// Export 导出全部告警为 JSON。
func (e *Engine) Export() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return json.MarshalIndent(e.alerts, "", "  ")
}

// Close 关闭底层存储。
func (e *Engine) Close() error {
	return e.store.Close()
}
