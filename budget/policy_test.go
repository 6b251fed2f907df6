package budget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubReader 让测试直接控制台账读数。
type stubReader struct {
	daily   float64
	monthly float64
}

func (r *stubReader) CostForDay(time.Time) float64   { return r.daily }
func (r *stubReader) CostForMonth(time.Time) float64 { return r.monthly }

func newTestPolicy(t *testing.T, reader *stubReader) *Policy {
	t.Helper()
	p, err := NewPolicy(reader, DefaultLimits(), zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestStatusThresholds(t *testing.T) {
	// 默认限额: daily 5.0, monthly 50.0, warning 0.8
	tests := []struct {
		name  string
		daily float64
		want  Verdict
	}{
		{"well under", 1.0, VerdictOK},
		{"just under warning", 3.99, VerdictOK},
		{"at warning threshold", 4.0, VerdictWarning},
		{"between warning and limit", 4.5, VerdictWarning},
		{"at limit", 5.0, VerdictExceeded},
		{"over limit", 7.3, VerdictExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPolicy(t, &stubReader{daily: tt.daily})
			assert.Equal(t, tt.want, p.Status(ScopeDaily))
		})
	}
}

func TestStatusMonthlyScope(t *testing.T) {
	p := newTestPolicy(t, &stubReader{daily: 0, monthly: 50.0})

	assert.Equal(t, VerdictOK, p.Status(ScopeDaily))
	assert.Equal(t, VerdictExceeded, p.Status(ScopeMonthly))
	assert.True(t, p.Exceeded())
}

// 裁决无缓存: 台账变化立即反映到下一次 Status。
func TestStatusReflectsLatestLedgerState(t *testing.T) {
	reader := &stubReader{daily: 1.0}
	p := newTestPolicy(t, reader)

	assert.Equal(t, VerdictOK, p.Status(ScopeDaily))
	reader.daily = 5.1
	assert.Equal(t, VerdictExceeded, p.Status(ScopeDaily))
}

func TestRemaining(t *testing.T) {
	p := newTestPolicy(t, &stubReader{daily: 3.0, monthly: 60.0})

	assert.InDelta(t, 2.0, p.Remaining(ScopeDaily), 1e-9)
	assert.Zero(t, p.Remaining(ScopeMonthly))
}

func TestSetLimits(t *testing.T) {
	p := newTestPolicy(t, &stubReader{daily: 8.0})
	assert.Equal(t, VerdictExceeded, p.Status(ScopeDaily))

	require.NoError(t, p.SetLimits(20.0, 200.0))
	assert.Equal(t, VerdictOK, p.Status(ScopeDaily))
	// 告警比例保留
	assert.InDelta(t, 0.8, p.Limits().WarningFraction, 1e-9)

	// 非法更新被拒绝且不生效
	assert.Error(t, p.SetLimits(-1, 200.0))
	assert.InDelta(t, 20.0, p.Limits().DailyLimit, 1e-9)
}

func TestNewPolicyRejectsInvalidLimits(t *testing.T) {
	tests := []struct {
		name   string
		limits Limits
	}{
		{"zero daily", Limits{DailyLimit: 0, MonthlyLimit: 50, WarningFraction: 0.8}},
		{"zero monthly", Limits{DailyLimit: 5, MonthlyLimit: 0, WarningFraction: 0.8}},
		{"fraction zero", Limits{DailyLimit: 5, MonthlyLimit: 50, WarningFraction: 0}},
		{"fraction one", Limits{DailyLimit: 5, MonthlyLimit: 50, WarningFraction: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPolicy(&stubReader{}, tt.limits, zap.NewNop())
			assert.Error(t, err)
		})
	}
}
