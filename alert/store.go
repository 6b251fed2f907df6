package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/phoenixedu/modelgate/ledger"
)

// MemoryStore 内存存储，进程退出即丢，供测试与临时场景使用。
type MemoryStore struct {
	mu     sync.Mutex
	alerts []Alert
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) ([]Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Alert, len(s.alerts))
	copy(out, s.alerts)
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, alerts []Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = make([]Alert, len(alerts))
	copy(s.alerts, alerts)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// FileStore 把告警快照写入 alerts.json，临时文件加重命名保证原子性。
type FileStore struct {
	path string
}

func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create alert directory: %w", err)
	}
	return &FileStore{path: filepath.Join(baseDir, "alerts.json")}, nil
}

func (s *FileStore) Load(_ context.Context) ([]Alert, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var alerts []Alert
	if err := json.Unmarshal(data, &alerts); err != nil {
		return nil, fmt.Errorf("corrupt alert file %s: %w", s.path, err)
	}
	return alerts, nil
}

func (s *FileStore) Save(_ context.Context, alerts []Alert) error {
	data, err := json.MarshalIndent(alerts, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) Close() error { return nil }

// RedisStore 把告警快照存为单个 JSON 值。
// 告警量有 maxRetained 上限，整值读写足够便宜。
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(cfg ledger.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "modelgate:"
	}
	return &RedisStore{client: client, key: keyPrefix + "alerts"}, nil
}

func (s *RedisStore) Load(ctx context.Context) ([]Alert, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var alerts []Alert
	if err := json.Unmarshal(data, &alerts); err != nil {
		return nil, fmt.Errorf("corrupt alert snapshot: %w", err)
	}
	return alerts, nil
}

func (s *RedisStore) Save(ctx context.Context, alerts []Alert) error {
	data, err := json.Marshal(alerts)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, data, 0).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// alertRow 是 SQLite 后端的行模型，字段序列化为 JSON 存整条告警。
type alertRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	CreatedAt time.Time
	Resolved  bool
	Payload   string `gorm:"type:text"`
}

func (alertRow) TableName() string { return "alerts" }

// SQLiteStore 基于 gorm 的单文件数据库存储。
type SQLiteStore struct {
	db *gorm.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.AutoMigrate(&alertRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate alert schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) ([]Alert, error) {
	var rows []alertRow
	if err := s.db.WithContext(ctx).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	alerts := make([]Alert, 0, len(rows))
	for _, row := range rows {
		var a Alert
		if err := json.Unmarshal([]byte(row.Payload), &a); err != nil {
			return nil, fmt.Errorf("corrupt alert row %s: %w", row.ID, err)
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

func (s *SQLiteStore) Save(ctx context.Context, alerts []Alert) error {
	rows := make([]alertRow, 0, len(alerts))
	for _, a := range alerts {
		payload, err := json.Marshal(a)
		if err != nil {
			return err
		}
		rows = append(rows, alertRow{
			ID:        a.ID,
			CreatedAt: a.CreatedAt,
			Resolved:  a.Resolved,
			Payload:   string(payload),
		})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&alertRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NewStore 按配置创建告警存储，与台账共用一份存储配置。
func NewStore(config ledger.StoreConfig) (Store, error) {
	switch config.Type {
	case ledger.StoreTypeMemory, "":
		return NewMemoryStore(), nil
	case ledger.StoreTypeFile:
		return NewFileStore(config.BaseDir)
	case ledger.StoreTypeRedis:
		return NewRedisStore(config.Redis)
	case ledger.StoreTypeSQLite:
		return NewSQLiteStore(config.SQLite)
	default:
		return nil, fmt.Errorf("unsupported alert store type: %s", config.Type)
	}
}
