package alert

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/phoenixedu/modelgate/budget"
)

type stubReader struct {
	daily   float64
	monthly float64
}

func (r *stubReader) CostForDay(_ time.Time) float64   { return r.daily }
func (r *stubReader) CostForMonth(_ time.Time) float64 { return r.monthly }

func newTestEngine(t *testing.T, reader *stubReader, store Store) *Engine {
	t.Helper()
	policy, err := budget.NewPolicy(reader, budget.DefaultLimits(), zap.NewNop())
	require.NoError(t, err)
	e, err := NewEngine(policy, store, DefaultThresholds(), zap.NewNop())
	require.NoError(t, err)
	return e
}

func TestCheckCostIdempotentPerPeriod(t *testing.T) {
	reader := &stubReader{daily: 4.2} // 5.0 限额的 84%，处于 warning 区间
	e := newTestEngine(t, reader, NewMemoryStore())
	ctx := context.Background()

	a, err := e.CheckCost(ctx, budget.ScopeDaily)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, LevelWarning, a.Level)
	assert.Equal(t, CategoryCost, a.Category)

	// 同一周期内重复检查不再触发
	for i := 0; i < 5; i++ {
		a, err := e.CheckCost(ctx, budget.ScopeDaily)
		require.NoError(t, err)
		assert.Nil(t, a)
	}
	assert.Len(t, e.Alerts(Filter{}), 1)
}

func TestCheckCostEscalatesToCritical(t *testing.T) {
	reader := &stubReader{daily: 4.2}
	e := newTestEngine(t, reader, NewMemoryStore())
	ctx := context.Background()

	a, err := e.CheckCost(ctx, budget.ScopeDaily)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, LevelWarning, a.Level)

	// 支出越过限额，级别升级构成新的周期键，再触发一次
	reader.daily = 5.1
	a, err = e.CheckCost(ctx, budget.ScopeDaily)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, LevelCritical, a.Level)

	a, err = e.CheckCost(ctx, budget.ScopeDaily)
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestCheckCostNewPeriodRearms(t *testing.T) {
	reader := &stubReader{daily: 5.5}
	e := newTestEngine(t, reader, NewMemoryStore())
	ctx := context.Background()

	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return day }

	a, err := e.CheckCost(ctx, budget.ScopeDaily)
	require.NoError(t, err)
	require.NotNil(t, a)

	// 次日进入新周期，同样的越限状态重新触发
	e.now = func() time.Time { return day.AddDate(0, 0, 1) }
	a, err = e.CheckCost(ctx, budget.ScopeDaily)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Len(t, e.Alerts(Filter{Category: categoryPtr(CategoryCost)}), 2)
}

func TestCheckCostMonthlyScope(t *testing.T) {
	reader := &stubReader{monthly: 55}
	e := newTestEngine(t, reader, NewMemoryStore())

	a, err := e.CheckCost(context.Background(), budget.ScopeMonthly)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, LevelCritical, a.Level)
	assert.Equal(t, "monthly", a.Metadata["scope"])
}

func TestIdempotencySurvivesRestart(t *testing.T) {
	store := NewMemoryStore()
	reader := &stubReader{daily: 5.5}
	ctx := context.Background()

	e1 := newTestEngine(t, reader, store)
	a, err := e1.CheckCost(ctx, budget.ScopeDaily)
	require.NoError(t, err)
	require.NotNil(t, a)

	// 从同一存储重建引擎，周期键随告警元数据一起恢复
	e2 := newTestEngine(t, reader, store)
	a, err = e2.CheckCost(ctx, budget.ScopeDaily)
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.Len(t, e2.Alerts(Filter{}), 1)
}

func TestResolveIsTerminal(t *testing.T) {
	e := newTestEngine(t, &stubReader{}, NewMemoryStore())
	ctx := context.Background()

	a, err := e.Raise(ctx, LevelError, CategorySystem, "store degraded", "write latency rising", nil)
	require.NoError(t, err)

	assert.True(t, e.Resolve(ctx, a.ID))
	got := e.Alerts(Filter{})[0]
	assert.True(t, got.Resolved)
	require.NotNil(t, got.ResolvedAt)
	firstResolvedAt := *got.ResolvedAt

	// 重复解决是无害空操作，时间戳不变
	assert.True(t, e.Resolve(ctx, a.ID))
	got = e.Alerts(Filter{})[0]
	assert.Equal(t, firstResolvedAt, *got.ResolvedAt)

	assert.False(t, e.Resolve(ctx, "no-such-id"))
}

func TestCheckPerformanceBreachEpisodes(t *testing.T) {
	e := newTestEngine(t, &stubReader{}, NewMemoryStore())
	ctx := context.Background()

	high := Metrics{ResponseTime: 7.2, ErrorRate: 0.01, MemoryPercent: 50, CPUPercent: 40}
	raised, err := e.CheckPerformance(ctx, high)
	require.NoError(t, err)
	require.Len(t, raised, 1)
	assert.Equal(t, "response_time", raised[0].Metadata["metric"])

	// 持续越限不重复告警
	raised, err = e.CheckPerformance(ctx, high)
	require.NoError(t, err)
	assert.Empty(t, raised)

	// 回落后重新武装，再次越限再告警
	_, err = e.CheckPerformance(ctx, Metrics{ResponseTime: 1.0})
	require.NoError(t, err)
	raised, err = e.CheckPerformance(ctx, high)
	require.NoError(t, err)
	assert.Len(t, raised, 1)
}

func TestCheckPerformanceMultipleMetrics(t *testing.T) {
	e := newTestEngine(t, &stubReader{}, NewMemoryStore())

	raised, err := e.CheckPerformance(context.Background(), Metrics{
		ResponseTime:  6.0,
		ErrorRate:     0.5,
		MemoryPercent: 95,
		CPUPercent:    10,
	})
	require.NoError(t, err)
	assert.Len(t, raised, 3)
}

func TestAlertsFilter(t *testing.T) {
	e := newTestEngine(t, &stubReader{}, NewMemoryStore())
	ctx := context.Background()

	first, err := e.Raise(ctx, LevelInfo, CategorySystem, "startup", "", nil)
	require.NoError(t, err)
	_, err = e.Raise(ctx, LevelCritical, CategoryCost, "budget blown", "", nil)
	require.NoError(t, err)
	_, err = e.Raise(ctx, LevelCritical, CategorySecurity, "token leak suspected", "", nil)
	require.NoError(t, err)
	e.Resolve(ctx, first.ID)

	crit := LevelCritical
	assert.Len(t, e.Alerts(Filter{Level: &crit}), 2)

	unresolved := false
	assert.Len(t, e.Alerts(Filter{Resolved: &unresolved}), 1)

	all := e.Alerts(Filter{})
	require.Len(t, all, 3)
	// 新的在前
	assert.Equal(t, "token leak suspected", all[0].Title)

	assert.Len(t, e.Alerts(Filter{Limit: 2}), 2)
}

func TestExport(t *testing.T) {
	e := newTestEngine(t, &stubReader{}, NewMemoryStore())
	_, err := e.Raise(context.Background(), LevelWarning, CategoryPerformance, "slow dispatch", "", nil)
	require.NoError(t, err)

	data, err := e.Export()
	require.NoError(t, err)

	var out []Alert
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "slow dispatch", out[0].Title)
}

func TestThresholdValidation(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*PerformanceThresholds)
	}{
		{"zero response time", func(p *PerformanceThresholds) { p.MaxResponseTime = 0 }},
		{"error rate above one", func(p *PerformanceThresholds) { p.MaxErrorRate = 1.5 }},
		{"negative memory", func(p *PerformanceThresholds) { p.MaxMemoryPercent = -1 }},
		{"cpu above hundred", func(p *PerformanceThresholds) { p.MaxCPUPercent = 120 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := DefaultThresholds()
			tt.mod(&th)
			assert.Error(t, th.Validate())
		})
	}
}

func categoryPtr(c Category) *Category { return &c }
