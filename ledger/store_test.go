package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/phoenixedu/modelgate/catalog"
	"github.com/phoenixedu/modelgate/types"
)

// 对每种后端验证同一组行为：落盘、重启恢复、日重置。
func runStoreSuite(t *testing.T, open func(t *testing.T) Store) {
	day := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	t.Run("round trip across restart", func(t *testing.T) {
		store := open(t)

		l, err := New(catalog.Default(), store, zap.NewNop())
		require.NoError(t, err)
		l.now = func() time.Time { return day }

		for i := 0; i < 3; i++ {
			_, err := l.Record(context.Background(), Usage{
				ModelID: "gpt-5-mini", InputUnits: 1000, OutputUnits: 2000,
				TaskType: types.TaskWorker, Operation: "lesson", Success: true,
			})
			require.NoError(t, err)
		}
		wantDay := l.CostForDay(day)
		wantMonth := l.CostForMonth(day)
		wantRecords := len(l.Snapshot().Records)

		// 模拟重启: 重新加载状态
		reloaded, err := store.Load(context.Background())
		require.NoError(t, err)

		assert.InDelta(t, wantDay, reloaded.Daily[day.Format(DateLayout)].TotalCost, 1e-9)
		assert.InDelta(t, wantMonth, reloaded.Monthly[day.Format(MonthLayout)].TotalCost, 1e-9)
		assert.Len(t, reloaded.Records, wantRecords)
		assert.InDelta(t, wantDay, reloaded.TotalSpent, 1e-9)
		assert.Equal(t, 3, reloaded.Daily[day.Format(DateLayout)].Operations["lesson"])
	})

	t.Run("reset day", func(t *testing.T) {
		store := open(t)

		l, err := New(catalog.Default(), store, zap.NewNop())
		require.NoError(t, err)

		other := day.AddDate(0, 0, 1)
		for _, d := range []time.Time{day, other} {
			d := d
			l.now = func() time.Time { return d }
			_, err := l.Record(context.Background(), Usage{
				ModelID: "gpt-5-nano", InputUnits: 1000, OutputUnits: 1000,
				TaskType: types.TaskQualityControl, Operation: "qc", Success: true,
			})
			require.NoError(t, err)
		}

		require.NoError(t, l.ResetDay(context.Background(), day))

		reloaded, err := store.Load(context.Background())
		require.NoError(t, err)

		_, exists := reloaded.Daily[day.Format(DateLayout)]
		assert.False(t, exists)
		require.Contains(t, reloaded.Monthly, day.Format(MonthLayout))
		assert.InDelta(t, l.CostForDay(other), reloaded.Monthly[day.Format(MonthLayout)].TotalCost, 1e-9)
		for _, rec := range reloaded.Records {
			assert.NotEqual(t, day.Format(DateLayout), rec.Timestamp.Format(DateLayout))
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestFileStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		store, err := NewFileStore(t.TempDir())
		require.NoError(t, err)
		return store
	})
}

func TestFileStoreReopen(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	store, err := NewFileStore(dir)
	require.NoError(t, err)

	l, err := New(catalog.Default(), store, zap.NewNop())
	require.NoError(t, err)
	l.now = func() time.Time { return day }

	_, err = l.Record(context.Background(), Usage{
		ModelID: "gpt-5-mini", InputUnits: 1000, OutputUnits: 2000,
		TaskType: types.TaskWorker, Operation: "lesson", Success: true,
	})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	// 新进程视角: 重新打开同一目录
	store2, err := NewFileStore(dir)
	require.NoError(t, err)
	l2, err := New(catalog.Default(), store2, zap.NewNop())
	require.NoError(t, err)

	assert.InDelta(t, 0.07, l2.CostForDay(day), 1e-9)
	assert.Equal(t, 1, l2.CallsForDay(day))
}

func TestRedisStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		mr := miniredis.RunT(t)
		store, err := NewRedisStore(RedisConfig{Addr: mr.Addr()})
		require.NoError(t, err)
		return store
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
		require.NoError(t, err)
		return store
	})
}

func TestNewStoreFactory(t *testing.T) {
	store, err := NewStore(StoreConfig{Type: StoreTypeMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = NewStore(StoreConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	_, err = NewStore(StoreConfig{Type: "cassandra"})
	assert.Error(t, err)
}
