// Package budget 提供基于成本台账的预算裁决：
// 对日/月两个作用域给出 ok / warning / exceeded 三态结论。
package budget

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/phoenixedu/modelgate/types"
)

// Scope 预算作用域
type Scope string

const (
	ScopeDaily   Scope = "daily"
	ScopeMonthly Scope = "monthly"
)

// Scopes 返回全部作用域。
func Scopes() []Scope {
	return []Scope{ScopeDaily, ScopeMonthly}
}

// Verdict 预算裁决结果。BudgetExceeded 是一等裁决值而非异常：
// 路由逻辑必须消费它并走回退路径，绝不能静默忽略。
type Verdict string

const (
	VerdictOK       Verdict = "ok"
	VerdictWarning  Verdict = "warning"
	VerdictExceeded Verdict = "exceeded"
)

// Limits 是预算限额配置值对象。加载后不可变；
// 管理性更新整体替换，不做局部修改。
type Limits struct {
	DailyLimit      float64 `yaml:"daily_limit" json:"daily_limit"`
	MonthlyLimit    float64 `yaml:"monthly_limit" json:"monthly_limit"`
	WarningFraction float64 `yaml:"warning_fraction" json:"warning_fraction"`
}

// DefaultLimits 返回保守的默认限额。
func DefaultLimits() Limits {
	return Limits{
		DailyLimit:      5.0,
		MonthlyLimit:    50.0,
		WarningFraction: 0.8,
	}
}

// Validate 校验限额配置。启动期失败是致命的：
// 系统拒绝带着不一致的限额开始路由。
func (l Limits) Validate() error {
	if l.DailyLimit <= 0 {
		return types.NewError(types.ErrInvalidConfig, "daily limit must be positive")
	}
	if l.MonthlyLimit <= 0 {
		return types.NewError(types.ErrInvalidConfig, "monthly limit must be positive")
	}
	if l.WarningFraction <= 0 || l.WarningFraction >= 1 {
		return types.NewError(types.ErrInvalidConfig, "warning fraction must be in (0, 1)")
	}
	return nil
}

// CostReader 是策略对台账的只读依赖。
type CostReader interface {
	CostForDay(day time.Time) float64
	CostForMonth(month time.Time) float64
}

// Policy 是预算策略：台账状态 + 限额的纯函数，无缓存——
// 每次调用都反映台账的最新状态，避免过期裁决放行超预算请求。
type Policy struct {
	mu     sync.RWMutex
	limits Limits
	reader CostReader
	logger *zap.Logger
	now    func() time.Time
}

// NewPolicy 创建预算策略。非法限额直接失败。
func NewPolicy(reader CostReader, limits Limits, logger *zap.Logger) (*Policy, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	return &Policy{
		limits: limits,
		reader: reader,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Status 返回指定作用域的当前裁决：
// spent >= limit 为 exceeded，spent >= limit*warning_fraction 为 warning。
func (p *Policy) Status(scope Scope) Verdict {
	verdict, _, _ := p.StatusDetail(scope)
	return verdict
}

// StatusDetail 返回裁决及其依据（当前支出和限额），供告警侧引用。
func (p *Policy) StatusDetail(scope Scope) (Verdict, float64, float64) {
	p.mu.RLock()
	limits := p.limits
	p.mu.RUnlock()

	now := p.now()
	var spent, limit float64
	switch scope {
	case ScopeMonthly:
		spent = p.reader.CostForMonth(now)
		limit = limits.MonthlyLimit
	default:
		spent = p.reader.CostForDay(now)
		limit = limits.DailyLimit
	}

	switch {
	case spent >= limit:
		return VerdictExceeded, spent, limit
	case spent >= limit*limits.WarningFraction:
		return VerdictWarning, spent, limit
	default:
		return VerdictOK, spent, limit
	}
}

// StatusAll 返回全部作用域的裁决。
func (p *Policy) StatusAll() map[Scope]Verdict {
	out := make(map[Scope]Verdict, 2)
	for _, scope := range Scopes() {
		out[scope] = p.Status(scope)
	}
	return out
}

// Exceeded 报告是否有任一作用域超限。
func (p *Policy) Exceeded() bool {
	for _, scope := range Scopes() {
		if p.Status(scope) == VerdictExceeded {
			return true
		}
	}
	return false
}

// Remaining 返回作用域内剩余预算（不为负）。
func (p *Policy) Remaining(scope Scope) float64 {
	p.mu.RLock()
	limits := p.limits
	p.mu.RUnlock()

	now := p.now()
	var remaining float64
	switch scope {
	case ScopeMonthly:
		remaining = limits.MonthlyLimit - p.reader.CostForMonth(now)
	default:
		remaining = limits.DailyLimit - p.reader.CostForDay(now)
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SetLimits 管理性更新：整体替换日/月限额，保留告警比例。
func (p *Policy) SetLimits(dailyLimit, monthlyLimit float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := Limits{
		DailyLimit:      dailyLimit,
		MonthlyLimit:    monthlyLimit,
		WarningFraction: p.limits.WarningFraction,
	}
	if err := next.Validate(); err != nil {
		return err
	}

	p.limits = next
	p.logger.Info("budget limits updated",
		zap.Float64("daily_limit", dailyLimit),
		zap.Float64("monthly_limit", monthlyLimit))
	return nil
}

// Limits 返回当前限额快照。
func (p *Policy) Limits() Limits {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.limits
}
