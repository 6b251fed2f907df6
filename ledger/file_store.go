package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore 是基于文件的实现，适合单节点生产部署。
// 整个台账状态序列化为一个 JSON 文档，每次变更原子重写。
type FileStore struct {
	path   string
	state  *State
	mu     sync.Mutex
	closed bool
}

// NewFileStore 创建文件存储并加载已有数据。
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	store := &FileStore{path: filepath.Join(baseDir, "usage.json")}
	if err := store.loadFromDisk(); err != nil {
		return nil, fmt.Errorf("failed to load ledger from disk: %w", err)
	}
	return store, nil
}

// 从磁盘加载状态到内存
func (s *FileStore) loadFromDisk() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.state = NewState()
		return nil
	}
	if err != nil {
		return err
	}

	state := NewState()
	if err := json.Unmarshal(data, state); err != nil {
		return err
	}
	if state.Daily == nil {
		state.Daily = make(map[string]*DailyBucket)
	}
	if state.Monthly == nil {
		state.Monthly = make(map[string]*MonthlyBucket)
	}
	s.state = state
	return nil
}

// 原子写: 写入临时文件后重命名
func (s *FileStore) saveToDisk() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, s.path)
}

func (s *FileStore) Load(ctx context.Context) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	return cloneState(s.state), nil
}

func (s *FileStore) AppendRecord(ctx context.Context, rec UsageRecord, day DailyBucket, month MonthlyBucket, totalSpent float64) error {
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

	return s.saveToDisk()
}

func (s *FileStore) ResetDay(ctx context.Context, date string, month *MonthlyBucket, totalSpent float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, ok := s.state.Daily[date]; !ok {
		return nil
	}
	delete(s.state.Daily, date)

	monthKey := date[:len(MonthLayout)]
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

	return s.saveToDisk()
}

// 关闭存储（最后再落盘一次）
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.saveToDisk()
}
