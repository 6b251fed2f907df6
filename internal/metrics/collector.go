// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 路由指标
	routingTotal  *prometheus.CounterVec
	fallbackTotal *prometheus.CounterVec

	// 调度指标
	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	unitsUsed        *prometheus.CounterVec
	costTotal        *prometheus.CounterVec

	// 预算指标
	budgetRemaining *prometheus.GaugeVec

	// 告警指标
	alertsTotal *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 路由指标
	c.routingTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_requests_total",
			Help:      "Total number of routing requests",
		},
		[]string{"task_type", "model", "reason"},
	)

	c.fallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_fallback_total",
			Help:      "Total number of budget-driven fallback selections",
		},
		[]string{"task_type"},
	)

	// 调度指标
	c.dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Total number of dispatched model invocations",
		},
		[]string{"model", "status"},
	)

	c.dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Model invocation duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	c.unitsUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_used_total",
			Help:      "Total number of billing units consumed",
		},
		[]string{"model", "direction"}, // direction: input, output
	)

	c.costTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cost_total_usd",
			Help:      "Accumulated invocation cost in USD",
		},
		[]string{"model"},
	)

	// 预算指标
	c.budgetRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "budget_remaining_usd",
			Help:      "Remaining budget per scope in USD",
		},
		[]string{"scope"},
	)

	// 告警指标
	c.alertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Total number of alerts raised",
		},
		[]string{"level", "category"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🧭 路由指标记录
// =============================================================================

// RecordRouting 记录一次路由决策
func (c *Collector) RecordRouting(taskType, model, reason string, fallback bool) {
	c.routingTotal.WithLabelValues(taskType, model, reason).Inc()
	if fallback {
		c.fallbackTotal.WithLabelValues(taskType).Inc()
	}
}

// =============================================================================
// 🚚 调度指标记录
// =============================================================================

// RecordDispatch 记录一次模型调用
func (c *Collector) RecordDispatch(model, status string, duration time.Duration, inputUnits, outputUnits int, cost float64) {
	c.dispatchTotal.WithLabelValues(model, status).Inc()
	c.dispatchDuration.WithLabelValues(model).Observe(duration.Seconds())
	c.unitsUsed.WithLabelValues(model, "input").Add(float64(inputUnits))
	c.unitsUsed.WithLabelValues(model, "output").Add(float64(outputUnits))
	c.costTotal.WithLabelValues(model).Add(cost)
}

// =============================================================================
// 💰 预算指标记录
// =============================================================================

// SetBudgetRemaining 更新作用域剩余预算
func (c *Collector) SetBudgetRemaining(scope string, remaining float64) {
	c.budgetRemaining.WithLabelValues(scope).Set(remaining)
}

// =============================================================================
// 🚨 告警指标记录
// =============================================================================

// RecordAlert 记录一次告警触发
func (c *Collector) RecordAlert(level, category string) {
	c.alertsTotal.WithLabelValues(level, category).Inc()
}
