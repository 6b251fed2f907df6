// Package recorder 实现调度管线：路由选型、调用执行、
// 用量记账、成本与性能告警检查、指标上报，一次调用串成一条链。
package recorder

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/phoenixedu/modelgate/alert"
	"github.com/phoenixedu/modelgate/budget"
	"github.com/phoenixedu/modelgate/internal/metrics"
	"github.com/phoenixedu/modelgate/ledger"
	"github.com/phoenixedu/modelgate/router"
)

// rollingWindowSize 性能采样窗口大小（最近 N 次调用）。
const rollingWindowSize = 100

// Invoker 执行一次模型调用。实现方负责真正的上游请求；
// 返回的用量若为零则回退到估算值。
type Invoker interface {
	Invoke(ctx context.Context, modelID string, payload string) (*Result, error)
}

// Result 一次模型调用的产出
type Result struct {
	Output      string
	InputUnits  int
	OutputUnits int
}

// Request 一次调度请求：路由参数加可选负载文本。
type Request struct {
	router.Request
	Payload   string
	Operation string // 业务操作名，计入台账的操作计数
}

// Outcome 调度结果
type Outcome struct {
	ModelID  string
	Reason   string
	Fallback bool
	Output   string
	Record   ledger.UsageRecord
	Duration time.Duration
}

// sample 滑动窗口中的一个调用样本
type sample struct {
	seconds float64
	ok      bool
}

// Recorder 调度器。记账失败不阻断返回，告警与指标都是旁路。
type Recorder struct {
	router    *router.Router
	ledger    *ledger.Ledger
	policy    *budget.Policy
	alerts    *alert.Engine
	invoker   Invoker
	collector *metrics.Collector // 可为 nil
	logger    *zap.Logger

	mu      sync.Mutex
	window  []sample
	nextIdx int
}

// New 创建调度器。collector 传 nil 表示不上报指标。
func New(r *router.Router, l *ledger.Ledger, policy *budget.Policy, alerts *alert.Engine, invoker Invoker, collector *metrics.Collector, logger *zap.Logger) *Recorder {
	return &Recorder{
		router:    r,
		ledger:    l,
		policy:    policy,
		alerts:    alerts,
		invoker:   invoker,
		collector: collector,
		logger:    logger,
	}
}

// Dispatch 执行一次完整调度。调用失败仍然记账（Success=false），
// 返回的 Outcome 始终携带路由结果与台账记录。
func (r *Recorder) Dispatch(ctx context.Context, req Request) (*Outcome, error) {
	if req.EstimatedUnits == 0 && req.Payload != "" {
		req.EstimatedUnits = EstimateUnits(req.Payload)
	}

	sel := r.router.Select(req.Request)
	if r.collector != nil {
		r.collector.RecordRouting(string(req.TaskType), sel.ModelID, sel.Reason, sel.Fallback)
	}

	start := time.Now()
	result, invErr := r.invoker.Invoke(ctx, sel.ModelID, req.Payload)
	duration := time.Since(start)

	inputUnits := req.EstimatedUnits
	outputUnits := 0
	output := ""
	if result != nil {
		output = result.Output
		if result.InputUnits > 0 {
			inputUnits = result.InputUnits
		}
		outputUnits = result.OutputUnits
	}

	rec, recErr := r.ledger.Record(ctx, ledger.Usage{
		ModelID:     sel.ModelID,
		InputUnits:  inputUnits,
		OutputUnits: outputUnits,
		TaskType:    req.TaskType,
		Operation:   req.Operation,
		Success:     invErr == nil,
	})
	if recErr != nil {
		// 记账降级只影响持久化，调用结果照常返回
		r.logger.Error("usage recording failed",
			zap.String("model", sel.ModelID), zap.Error(recErr))
	}

	r.checkBudgetAlerts(ctx)
	r.observe(ctx, duration, invErr == nil)

	if r.collector != nil {
		status := "success"
		if invErr != nil {
			status = "error"
		}
		r.collector.RecordDispatch(sel.ModelID, status, duration, inputUnits, outputUnits, rec.Cost)
		for _, scope := range budget.Scopes() {
			r.collector.SetBudgetRemaining(string(scope), r.policy.Remaining(scope))
		}
	}

	outcome := &Outcome{
		ModelID:  sel.ModelID,
		Reason:   sel.Reason,
		Fallback: sel.Fallback,
		Output:   output,
		Record:   rec,
		Duration: duration,
	}
	if invErr != nil {
		r.logger.Warn("model invocation failed",
			zap.String("model", sel.ModelID),
			zap.Duration("duration", duration),
			zap.Error(invErr))
		return outcome, invErr
	}
	return outcome, nil
}

// checkBudgetAlerts 调度后顺带检查两个预算作用域。
func (r *Recorder) checkBudgetAlerts(ctx context.Context) {
	for _, scope := range budget.Scopes() {
		a, err := r.alerts.CheckCost(ctx, scope)
		if err != nil {
			r.logger.Warn("cost alert check failed",
				zap.String("scope", string(scope)), zap.Error(err))
			continue
		}
		if a != nil && r.collector != nil {
			r.collector.RecordAlert(string(a.Level), string(a.Category))
		}
	}
}

// observe 更新滑动窗口并触发性能检查。
func (r *Recorder) observe(ctx context.Context, duration time.Duration, ok bool) {
	r.mu.Lock()
	s := sample{seconds: duration.Seconds(), ok: ok}
	if len(r.window) < rollingWindowSize {
		r.window = append(r.window, s)
	} else {
		r.window[r.nextIdx] = s
		r.nextIdx = (r.nextIdx + 1) % rollingWindowSize
	}
	var totalSeconds float64
	failures := 0
	for _, w := range r.window {
		totalSeconds += w.seconds
		if !w.ok {
			failures++
		}
	}
	n := len(r.window)
	r.mu.Unlock()

	raised, err := r.alerts.CheckPerformance(ctx, alert.Metrics{
		ResponseTime: totalSeconds / float64(n),
		ErrorRate:    float64(failures) / float64(n),
	})
	if err != nil {
		r.logger.Warn("performance alert check failed", zap.Error(err))
		return
	}
	if r.collector != nil {
		for _, a := range raised {
			r.collector.RecordAlert(string(a.Level), string(a.Category))
		}
	}
}

// AverageLatency 返回窗口内平均时延，窗口为空时为零。
func (r *Recorder) AverageLatency() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.window) == 0 {
		return 0
	}
	var total float64
	for _, w := range r.window {
		total += w.seconds
	}
	return time.Duration(total / float64(len(r.window)) * float64(time.Second))
}

// ErrorRate 返回窗口内失败比例，窗口为空时为零。
func (r *Recorder) ErrorRate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.window) == 0 {
		return 0
	}
	failures := 0
	for _, w := range r.window {
		if !w.ok {
			failures++
		}
	}
	return float64(failures) / float64(len(r.window))
}
