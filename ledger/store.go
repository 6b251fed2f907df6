// Package ledger provides the durable, append-only record of metered model
// usage and the derived daily/monthly spend aggregates.
//
// Supported backends:
// - Memory: For development and testing (default)
// - File: For single-node production deployments
// - Redis: For distributed production deployments
// - SQLite: For single-node deployments that want queryable history
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/phoenixedu/modelgate/types"
)

// Common errors
var (
	ErrNotFound    = errors.New("not found")
	ErrStoreClosed = errors.New("store is closed")
)

// Key layouts for bucket periods.
const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeFile   StoreType = "file"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeSQLite StoreType = "sqlite"
)

// UsageRecord is one metered call. Immutable once created; owned exclusively
// by the ledger and appended, never mutated.
type UsageRecord struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	ModelID     string         `json:"model_id"`
	InputUnits  int            `json:"input_units"`
	OutputUnits int            `json:"output_units"`
	Cost        float64        `json:"cost"`
	TaskType    types.TaskType `json:"task_type"`
	Operation   string         `json:"operation"`
	Success     bool           `json:"success"`
}

// DailyBucket is the derived aggregate for one calendar day.
type DailyBucket struct {
	Date       string         `json:"date"`
	TotalCost  float64        `json:"cost"`
	TotalCalls int            `json:"calls"`
	TotalUnits int            `json:"units"`
	Operations map[string]int `json:"operations"`
}

// MonthlyBucket is the derived aggregate for one calendar month.
type MonthlyBucket struct {
	Month      string  `json:"month"`
	TotalCost  float64 `json:"cost"`
	TotalCalls int     `json:"calls"`
}

// State is the full persisted ledger state. A store must round-trip it
// across process restarts: reload, never reset.
type State struct {
	Daily      map[string]*DailyBucket   `json:"daily_usage"`
	Monthly    map[string]*MonthlyBucket `json:"monthly_usage"`
	Records    []UsageRecord             `json:"records"`
	TotalSpent float64                   `json:"total_spent"`
}

// NewState returns an empty, initialized state.
func NewState() *State {
	return &State{
		Daily:   make(map[string]*DailyBucket),
		Monthly: make(map[string]*MonthlyBucket),
	}
}

// Store persists ledger state. Implementations receive the already-updated
// bucket values from the ledger (the ledger owns the check-then-act lock);
// a store only has to make them durable.
type Store interface {
	// Load returns the persisted state, or an empty state if none exists.
	Load(ctx context.Context) (*State, error)

	// AppendRecord persists one usage record together with the updated
	// daily bucket, monthly bucket, and running total.
	AppendRecord(ctx context.Context, rec UsageRecord, day DailyBucket, month MonthlyBucket, totalSpent float64) error

	// ResetDay removes the bucket for date and persists the adjusted
	// monthly bucket (nil if the month bucket was removed too) and total.
	ResetDay(ctx context.Context, date string, month *MonthlyBucket, totalSpent float64) error

	// Close releases backend resources.
	Close() error
}
