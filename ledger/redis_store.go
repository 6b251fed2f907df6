package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis-based implementation of Store.
// Suitable for distributed production deployments.
// Layout: one JSON value per bucket key, a list for the record log,
// and index sets for the known day/month keys.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password" json:"password"`
	DB        int    `yaml:"db" json:"db"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// NewRedisStore creates a new Redis-based ledger store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "modelgate:"
	}

	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix + "ledger:",
	}, nil
}

func (s *RedisStore) dayKey(date string) string    { return s.keyPrefix + "day:" + date }
func (s *RedisStore) monthKey(month string) string { return s.keyPrefix + "month:" + month }
func (s *RedisStore) daysKey() string              { return s.keyPrefix + "days" }
func (s *RedisStore) monthsKey() string            { return s.keyPrefix + "months" }
func (s *RedisStore) recordsKey() string           { return s.keyPrefix + "records" }
func (s *RedisStore) totalKey() string             { return s.keyPrefix + "total" }

func (s *RedisStore) Load(ctx context.Context) (*State, error) {
	state := NewState()

	days, err := s.client.SMembers(ctx, s.daysKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list day buckets: %w", err)
	}
	for _, date := range days {
		data, err := s.client.Get(ctx, s.dayKey(date)).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var b DailyBucket
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("corrupt day bucket %s: %w", date, err)
		}
		state.Daily[date] = &b
	}

	months, err := s.client.SMembers(ctx, s.monthsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list month buckets: %w", err)
	}
	for _, month := range months {
		data, err := s.client.Get(ctx, s.monthKey(month)).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var b MonthlyBucket
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("corrupt month bucket %s: %w", month, err)
		}
		state.Monthly[month] = &b
	}

	raw, err := s.client.LRange(ctx, s.recordsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	for _, item := range raw {
		var rec UsageRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("corrupt usage record: %w", err)
		}
		state.Records = append(state.Records, rec)
	}

	total, err := s.client.Get(ctx, s.totalKey()).Float64()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	state.TotalSpent = total

	return state, nil
}

func (s *RedisStore) AppendRecord(ctx context.Context, rec UsageRecord, day DailyBucket, month MonthlyBucket, totalSpent float64) error {
	dayData, err := json.Marshal(day)
	if err != nil {
		return err
	}
	monthData, err := json.Marshal(month)
	if err != nil {
		return err
	}
	recData, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.dayKey(day.Date), dayData, 0)
	pipe.SAdd(ctx, s.daysKey(), day.Date)
	pipe.Set(ctx, s.monthKey(month.Month), monthData, 0)
	pipe.SAdd(ctx, s.monthsKey(), month.Month)
	pipe.RPush(ctx, s.recordsKey(), recData)
	pipe.Set(ctx, s.totalKey(), totalSpent, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to persist usage record: %w", err)
	}
	return nil
}

func (s *RedisStore) ResetDay(ctx context.Context, date string, month *MonthlyBucket, totalSpent float64) error {
	// Rewrite the record log without the removed day.
	raw, err := s.client.LRange(ctx, s.recordsKey(), 0, -1).Result()
	if err != nil {
		return err
	}
	var kept []any
	for _, item := range raw {
		var rec UsageRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		if rec.Timestamp.Format(DateLayout) != date {
			kept = append(kept, item)
		}
	}

	monthKey := date[:len(MonthLayout)]

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.dayKey(date))
	pipe.SRem(ctx, s.daysKey(), date)
	if month == nil {
		pipe.Del(ctx, s.monthKey(monthKey))
		pipe.SRem(ctx, s.monthsKey(), monthKey)
	} else {
		monthData, err := json.Marshal(month)
		if err != nil {
			return err
		}
		pipe.Set(ctx, s.monthKey(month.Month), monthData, 0)
	}
	pipe.Del(ctx, s.recordsKey())
	if len(kept) > 0 {
		pipe.RPush(ctx, s.recordsKey(), kept...)
	}
	pipe.Set(ctx, s.totalKey(), totalSpent, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to persist day reset: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
