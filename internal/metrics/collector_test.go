package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.routingTotal)
	assert.NotNil(t, collector.fallbackTotal)
	assert.NotNil(t, collector.dispatchTotal)
	assert.NotNil(t, collector.dispatchDuration)
	assert.NotNil(t, collector.unitsUsed)
	assert.NotNil(t, collector.costTotal)
	assert.NotNil(t, collector.budgetRemaining)
	assert.NotNil(t, collector.alertsTotal)
}

func TestRecordRouting(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordRouting("worker", "gpt-5-mini", "worker_rule", false)
	collector.RecordRouting("worker", "gpt-5-nano", "budget_fallback", true)

	assert.Equal(t, float64(1),
		testutil.ToFloat64(collector.routingTotal.WithLabelValues("worker", "gpt-5-mini", "worker_rule")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(collector.fallbackTotal.WithLabelValues("worker")))
}

func TestRecordDispatch(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordDispatch("gpt-5-mini", "success", 800*time.Millisecond, 1000, 2000, 0.07)
	collector.RecordDispatch("gpt-5-mini", "error", 200*time.Millisecond, 500, 0, 0.005)

	assert.Equal(t, float64(1),
		testutil.ToFloat64(collector.dispatchTotal.WithLabelValues("gpt-5-mini", "success")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(collector.dispatchTotal.WithLabelValues("gpt-5-mini", "error")))
	assert.Equal(t, float64(1500),
		testutil.ToFloat64(collector.unitsUsed.WithLabelValues("gpt-5-mini", "input")))
	assert.Equal(t, float64(2000),
		testutil.ToFloat64(collector.unitsUsed.WithLabelValues("gpt-5-mini", "output")))
	assert.InDelta(t, 0.075,
		testutil.ToFloat64(collector.costTotal.WithLabelValues("gpt-5-mini")), 1e-9)
}

func TestBudgetRemainingGauge(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.SetBudgetRemaining("daily", 3.30)
	collector.SetBudgetRemaining("daily", 1.60)

	assert.InDelta(t, 1.60,
		testutil.ToFloat64(collector.budgetRemaining.WithLabelValues("daily")), 1e-9)
}

func TestRecordAlert(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordAlert("critical", "cost")
	collector.RecordAlert("critical", "cost")

	assert.Equal(t, float64(2),
		testutil.ToFloat64(collector.alertsTotal.WithLabelValues("critical", "cost")))
}
