package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phoenixedu/modelgate/catalog"
	"github.com/phoenixedu/modelgate/types"
)

// Usage 描述一次已完成的外部调用，由调用方提供计量输入。
type Usage struct {
	ModelID     string
	InputUnits  int
	OutputUnits int
	TaskType    types.TaskType
	Operation   string
	Success     bool
}

// Ledger 是成本台账：追加计量记录并维护日/月聚合桶。
//
// append-and-recompute 是 check-then-act 序列，由单个写锁串行化，
// 避免两个并发请求同时读到"ok"后把总支出推过限额。
// 报表读取持同一把锁做快照，所有临界区都很短。
type Ledger struct {
	mu      sync.Mutex
	catalog *catalog.Catalog
	store   Store
	state   *State
	logger  *zap.Logger
	now     func() time.Time
}

// New 创建台账并从存储加载已有状态（重启恢复，而不是清零）。
func New(cat *catalog.Catalog, store Store, logger *zap.Logger) (*Ledger, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	state, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger state: %w", err)
	}
	if state == nil {
		state = NewState()
	}
	if state.Daily == nil {
		state.Daily = make(map[string]*DailyBucket)
	}
	if state.Monthly == nil {
		state.Monthly = make(map[string]*MonthlyBucket)
	}

	logger.Info("ledger loaded",
		zap.Int("days", len(state.Daily)),
		zap.Int("records", len(state.Records)),
		zap.Float64("total_spent", state.TotalSpent))

	return &Ledger{
		catalog: cat,
		store:   store,
		state:   state,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Record 计算成本、追加使用记录并更新日/月桶。
// 未知模型返回 ErrModelNotFound 且不触碰任何状态；
// 正常流程中模型 ID 来自路由器，此分支实际不可达。
// 存储落盘失败不回滚内存状态，错误码为 ErrStoreFailure。
func (l *Ledger) Record(ctx context.Context, u Usage) (UsageRecord, error) {
	cost, err := l.catalog.Cost(u.ModelID, u.InputUnits, u.OutputUnits)
	if err != nil {
		return UsageRecord{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec := UsageRecord{
		ID:          uuid.NewString(),
		Timestamp:   now,
		ModelID:     u.ModelID,
		InputUnits:  u.InputUnits,
		OutputUnits: u.OutputUnits,
		Cost:        cost,
		TaskType:    u.TaskType,
		Operation:   u.Operation,
		Success:     u.Success,
	}

	dateKey := now.Format(DateLayout)
	monthKey := now.Format(MonthLayout)

	day, ok := l.state.Daily[dateKey]
	if !ok {
		day = &DailyBucket{Date: dateKey, Operations: make(map[string]int)}
		l.state.Daily[dateKey] = day
	}
	day.TotalCost += cost
	day.TotalCalls++
	day.TotalUnits += u.InputUnits + u.OutputUnits
	if day.Operations == nil {
		day.Operations = make(map[string]int)
	}
	day.Operations[u.Operation]++

	month, ok := l.state.Monthly[monthKey]
	if !ok {
		month = &MonthlyBucket{Month: monthKey}
		l.state.Monthly[monthKey] = month
	}
	month.TotalCost += cost
	month.TotalCalls++

	l.state.Records = append(l.state.Records, rec)
	l.state.TotalSpent += cost

	l.logger.Debug("usage recorded",
		zap.String("model", u.ModelID),
		zap.String("operation", u.Operation),
		zap.Float64("cost", cost),
		zap.Float64("daily_cost", day.TotalCost))

	if err := l.store.AppendRecord(ctx, rec, *day, *month, l.state.TotalSpent); err != nil {
		l.logger.Warn("ledger persist failed", zap.String("record", rec.ID), zap.Error(err))
		return rec, types.NewErrorf(types.ErrStoreFailure, "persist usage record %s", rec.ID).WithCause(err)
	}

	return rec, nil
}

// CostForDay 返回某个日历日的总成本。
func (l *Ledger) CostForDay(day time.Time) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.state.Daily[day.Format(DateLayout)]; ok {
		return b.TotalCost
	}
	return 0
}

// CostForMonth 返回某个日历月的总成本。
func (l *Ledger) CostForMonth(month time.Time) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.state.Monthly[month.Format(MonthLayout)]; ok {
		return b.TotalCost
	}
	return 0
}

// CostForWindow 返回 [start, end]（含两端，按日历日）区间的总成本。
// 桶键按记录时各自时区的日历日生成，这里只做字典序比较，
// 不折算回时刻，避免跨时区时端点日被错误排除。
func (l *Ledger) CostForWindow(start, end time.Time) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	from := start.Format(DateLayout)
	to := end.Format(DateLayout)

	var total float64
	for key, b := range l.state.Daily {
		if key < from || key > to {
			continue
		}
		total += b.TotalCost
	}
	return total
}

// CallsForDay 返回某日的调用次数。
func (l *Ledger) CallsForDay(day time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.state.Daily[day.Format(DateLayout)]; ok {
		return b.TotalCalls
	}
	return 0
}

// TotalSpent 返回累计总支出。
func (l *Ledger) TotalSpent() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.TotalSpent
}

// DayUsage 是报表用的单日汇总。
type DayUsage struct {
	Date  string  `json:"date"`
	Cost  float64 `json:"cost"`
	Calls int     `json:"calls"`
}

// Summary 是最近 N 天的使用汇总。
type Summary struct {
	Period         string         `json:"period"`
	TotalCost      float64        `json:"total_cost"`
	TotalCalls     int            `json:"total_calls"`
	DailyBreakdown []DayUsage     `json:"daily_breakdown"`
	Operations     map[string]int `json:"operations"`
}

// UsageSummary 返回截至今天、最近 days 天的使用汇总。
func (l *Ledger) UsageSummary(days int) Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	end := startOfDay(l.now())
	start := end.AddDate(0, 0, -(days - 1))

	s := Summary{
		Period:     fmt.Sprintf("%s to %s", start.Format(DateLayout), end.Format(DateLayout)),
		Operations: make(map[string]int),
	}

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		b, ok := l.state.Daily[d.Format(DateLayout)]
		if !ok {
			continue
		}
		s.TotalCost += b.TotalCost
		s.TotalCalls += b.TotalCalls
		s.DailyBreakdown = append(s.DailyBreakdown, DayUsage{
			Date:  b.Date,
			Cost:  b.TotalCost,
			Calls: b.TotalCalls,
		})
		for op, n := range b.Operations {
			s.Operations[op] += n
		}
	}

	sort.Slice(s.DailyBreakdown, func(i, j int) bool {
		return s.DailyBreakdown[i].Date < s.DailyBreakdown[j].Date
	})

	return s
}

// ResetDay 是管理性的破坏性操作：删除某日的桶，并从所属月桶中
// 扣减其贡献（必须扣减而不是只删除，以保持桶不变式）。
func (l *Ledger) ResetDay(ctx context.Context, day time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	dateKey := day.Format(DateLayout)
	monthKey := day.Format(MonthLayout)

	bucket, ok := l.state.Daily[dateKey]
	if !ok {
		return nil
	}

	delete(l.state.Daily, dateKey)
	l.state.TotalSpent -= bucket.TotalCost
	if l.state.TotalSpent < 0 {
		l.state.TotalSpent = 0
	}

	var monthCopy *MonthlyBucket
	if month, ok := l.state.Monthly[monthKey]; ok {
		month.TotalCost -= bucket.TotalCost
		month.TotalCalls -= bucket.TotalCalls
		if month.TotalCost <= 0 && month.TotalCalls <= 0 {
			delete(l.state.Monthly, monthKey)
		} else {
			c := *month
			monthCopy = &c
		}
	}

	// 该日的明细记录一并移除
	kept := l.state.Records[:0]
	for _, rec := range l.state.Records {
		if rec.Timestamp.Format(DateLayout) != dateKey {
			kept = append(kept, rec)
		}
	}
	l.state.Records = kept

	l.logger.Info("daily usage reset", zap.String("date", dateKey), zap.Float64("removed_cost", bucket.TotalCost))

	if err := l.store.ResetDay(ctx, dateKey, monthCopy, l.state.TotalSpent); err != nil {
		return types.NewErrorf(types.ErrStoreFailure, "persist reset for %s", dateKey).WithCause(err)
	}
	return nil
}

// Snapshot 返回当前状态的深拷贝，供报表与测试使用。
func (l *Ledger) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := State{
		Daily:      make(map[string]*DailyBucket, len(l.state.Daily)),
		Monthly:    make(map[string]*MonthlyBucket, len(l.state.Monthly)),
		Records:    append([]UsageRecord(nil), l.state.Records...),
		TotalSpent: l.state.TotalSpent,
	}
	for k, v := range l.state.Daily {
		c := *v
		c.Operations = make(map[string]int, len(v.Operations))
		for op, n := range v.Operations {
			c.Operations[op] = n
		}
		out.Daily[k] = &c
	}
	for k, v := range l.state.Monthly {
		c := *v
		out.Monthly[k] = &c
	}
	return out
}

// Close 关闭底层存储。
func (l *Ledger) Close() error {
	return l.store.Close()
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
