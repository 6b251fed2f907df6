package ledger

import (
	"context"
	"sync"
)

// MemoryStore 是内存实现，适合开发与测试。
type MemoryStore struct {
	mu     sync.Mutex
	state  *State
	closed bool
}

// NewMemoryStore 创建内存存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: NewState()}
}

func (s *MemoryStore) Load(ctx context.Context) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	return cloneState(s.state), nil
}

func (s *MemoryStore) AppendRecord(ctx context.Context, rec UsageRecord, day DailyBucket, month MonthlyBucket, totalSpent float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	dayCopy := day
	monthCopy := month
	s.state.Daily[day.Date] = &dayCopy
	s.state.Monthly[month.Month] = &monthCopy
	s.state.Records = append(s.state.Records, rec)
	s.state.TotalSpent = totalSpent
	return nil
}

func (s *MemoryStore) ResetDay(ctx context.Context, date string, month *MonthlyBucket, totalSpent float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	removed, ok := s.state.Daily[date]
	if !ok {
		return nil
	}
	delete(s.state.Daily, date)

	monthKey := removed.Date[:len(MonthLayout)]
	if month == nil {
		delete(s.state.Monthly, monthKey)
	} else {
		c := *month
		s.state.Monthly[c.Month] = &c
	}

	kept := s.state.Records[:0]
	for _, rec := range s.state.Records {
		if rec.Timestamp.Format(DateLayout) != date {
			kept = append(kept, rec)
		}
	}
	s.state.Records = kept
	s.state.TotalSpent = totalSpent
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneState(in *State) *State {
	out := NewState()
	out.TotalSpent = in.TotalSpent
	out.Records = append([]UsageRecord(nil), in.Records...)
	for k, v := range in.Daily {
		c := *v
		c.Operations = make(map[string]int, len(v.Operations))
		for op, n := range v.Operations {
			c.Operations[op] = n
		}
		out.Daily[k] = &c
	}
	for k, v := range in.Monthly {
		c := *v
		out.Monthly[k] = &c
	}
	return out
}
