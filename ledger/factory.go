package ledger

import "fmt"

// StoreConfig configures the ledger storage backend.
type StoreConfig struct {
	Type    StoreType   `yaml:"type" json:"type"`
	BaseDir string      `yaml:"base_dir" json:"base_dir"`
	Redis   RedisConfig `yaml:"redis" json:"redis"`
	SQLite  string      `yaml:"sqlite_path" json:"sqlite_path"`
}

// NewStore creates a ledger Store based on the configuration.
func NewStore(config StoreConfig) (Store, error) {
	switch config.Type {
	case StoreTypeMemory, "":
		return NewMemoryStore(), nil
	case StoreTypeFile:
		return NewFileStore(config.BaseDir)
	case StoreTypeRedis:
		return NewRedisStore(config.Redis)
	case StoreTypeSQLite:
		return NewSQLiteStore(config.SQLite)
	default:
		return nil, fmt.Errorf("unsupported ledger store type: %s", config.Type)
	}
}
