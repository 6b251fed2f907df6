package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/phoenixedu/modelgate/types"
)

// SQLiteStore is a gorm-backed implementation of Store using the pure-Go
// SQLite driver. Suitable for single-node deployments that want the usage
// history queryable with plain SQL.
type SQLiteStore struct {
	db *gorm.DB
}

type usageRow struct {
	ID          string    `gorm:"primaryKey"`
	Timestamp   time.Time `gorm:"index"`
	Date        string    `gorm:"index"`
	ModelID     string
	InputUnits  int
	OutputUnits int
	Cost        float64
	TaskType    string
	Operation   string
	Success     bool
}

func (usageRow) TableName() string { return "usage_records" }

type dailyRow struct {
	Date       string `gorm:"primaryKey"`
	TotalCost  float64
	TotalCalls int
	TotalUnits int
	Operations string // JSON map operation -> count
}

func (dailyRow) TableName() string { return "daily_buckets" }

type monthlyRow struct {
	Month      string `gorm:"primaryKey"`
	TotalCost  float64
	TotalCalls int
}

func (monthlyRow) TableName() string { return "monthly_buckets" }

type metaRow struct {
	Key   string `gorm:"primaryKey"`
	Value float64
}

func (metaRow) TableName() string { return "ledger_meta" }

// NewSQLiteStore opens (or creates) the database at path and migrates the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite ledger: %w", err)
	}

	if err := db.AutoMigrate(&usageRow{}, &dailyRow{}, &monthlyRow{}, &metaRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate ledger schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*State, error) {
	state := NewState()
	db := s.db.WithContext(ctx)

	var days []dailyRow
	if err := db.Find(&days).Error; err != nil {
		return nil, err
	}
	for _, row := range days {
		ops := make(map[string]int)
		if row.Operations != "" {
			if err := json.Unmarshal([]byte(row.Operations), &ops); err != nil {
				return nil, fmt.Errorf("corrupt operations for %s: %w", row.Date, err)
			}
		}
		state.Daily[row.Date] = &DailyBucket{
			Date:       row.Date,
			TotalCost:  row.TotalCost,
			TotalCalls: row.TotalCalls,
			TotalUnits: row.TotalUnits,
			Operations: ops,
		}
	}

	var months []monthlyRow
	if err := db.Find(&months).Error; err != nil {
		return nil, err
	}
	for _, row := range months {
		state.Monthly[row.Month] = &MonthlyBucket{
			Month:      row.Month,
			TotalCost:  row.TotalCost,
			TotalCalls: row.TotalCalls,
		}
	}

	var records []usageRow
	if err := db.Order("timestamp").Find(&records).Error; err != nil {
		return nil, err
	}
	for _, row := range records {
		state.Records = append(state.Records, UsageRecord{
			ID:          row.ID,
			Timestamp:   row.Timestamp,
			ModelID:     row.ModelID,
			InputUnits:  row.InputUnits,
			OutputUnits: row.OutputUnits,
			Cost:        row.Cost,
			TaskType:    types.TaskType(row.TaskType),
			Operation:   row.Operation,
			Success:     row.Success,
		})
	}

	var meta metaRow
	err := db.Where("key = ?", "total_spent").First(&meta).Error
	if err == nil {
		state.TotalSpent = meta.Value
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	return state, nil
}

func (s *SQLiteStore) AppendRecord(ctx context.Context, rec UsageRecord, day DailyBucket, month MonthlyBucket, totalSpent float64) error {
	ops, err := json.Marshal(day.Operations)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&usageRow{
			ID:          rec.ID,
			Timestamp:   rec.Timestamp,
			Date:        rec.Timestamp.Format(DateLayout),
			ModelID:     rec.ModelID,
			InputUnits:  rec.InputUnits,
			OutputUnits: rec.OutputUnits,
			Cost:        rec.Cost,
			TaskType:    string(rec.TaskType),
			Operation:   rec.Operation,
			Success:     rec.Success,
		}).Error; err != nil {
			return err
		}

		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&dailyRow{
			Date:       day.Date,
			TotalCost:  day.TotalCost,
			TotalCalls: day.TotalCalls,
			TotalUnits: day.TotalUnits,
			Operations: string(ops),
		}).Error; err != nil {
			return err
		}

		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&monthlyRow{
			Month:      month.Month,
			TotalCost:  month.TotalCost,
			TotalCalls: month.TotalCalls,
		}).Error; err != nil {
			return err
		}

		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&metaRow{
			Key:   "total_spent",
			Value: totalSpent,
		}).Error
	})
}

func (s *SQLiteStore) ResetDay(ctx context.Context, date string, month *MonthlyBucket, totalSpent float64) error {
	monthKey := date[:len(MonthLayout)]

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&dailyRow{}, "date = ?", date).Error; err != nil {
			return err
		}
		if err := tx.Delete(&usageRow{}, "date = ?", date).Error; err != nil {
			return err
		}

		if month == nil {
			if err := tx.Delete(&monthlyRow{}, "month = ?", monthKey).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&monthlyRow{
				Month:      month.Month,
				TotalCost:  month.TotalCost,
				TotalCalls: month.TotalCalls,
			}).Error; err != nil {
				return err
			}
		}

		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&metaRow{
			Key:   "total_spent",
			Value: totalSpent,
		}).Error
	})
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
