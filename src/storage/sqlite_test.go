package storage

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"quote-observer/src/logger"
	"quote-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) *SQLiteDB {
	t.Helper()
	cfg := models.MStorageConfig{
		DBType:        "sqlite",
		DBPath:        filepath.Join(t.TempDir(), "snapshots.db"),
		RetentionDays: 7,
	}
	db, err := Open(cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db.(*SQLiteDB)
}

func snapshot(symbol, window string, start int64, count int64, partial bool) models.MSnapshot {
	return models.MSnapshot{
		Symbol: symbol, Window: window,
		WindowStart: start, WindowEnd: start + 60_000,
		Count: count, Mean: 100, Variance: 2, Open: 99, Close: 101, Min: 98, Max: 102,
		Volume: 10, Partial: partial,
	}
}

func TestSQLite_SaveSnapshotsUpserts(t *testing.T) {
	db := openTestSQLite(t)
	start := time.Now().UnixMilli()

	require.NoError(t, db.SaveSnapshots(context.Background(), []models.MSnapshot{
		snapshot("AAPL", "1m", start, 2, true),
		snapshot("MSFT", "1m", start, 5, false),
	}))
	require.NoError(t, db.SaveSnapshots(context.Background(), []models.MSnapshot{snapshot("AAPL", "1m", start, 4, false)}))

	var rows int
	require.NoError(t, db.DB.QueryRow(`SELECT COUNT(*) FROM snapshots`).Scan(&rows))
	assert.Equal(t, 2, rows)

	var count int64
	var partial bool
	require.NoError(t, db.DB.QueryRow(
		`SELECT count, partial FROM snapshots WHERE symbol = ? AND window_name = ? AND start_time = ?`,
		"AAPL", "1m", start,
	).Scan(&count, &partial))
	assert.Equal(t, int64(4), count)
	assert.False(t, partial)
}

func TestSQLite_CleanupOldData(t *testing.T) {
	db := openTestSQLite(t)
	recent := time.Now().UnixMilli()
	old := time.Now().AddDate(0, 0, -30).UnixMilli()

	require.NoError(t, db.SaveSnapshots(context.Background(), []models.MSnapshot{
		snapshot("AAPL", "1m", old, 1, false),
		snapshot("AAPL", "1m", recent, 1, false),
	}))
	require.NoError(t, db.CleanupOldData(context.Background()))

	var starts []int64
	rows, err := db.DB.Query(`SELECT start_time FROM snapshots`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var s int64
		require.NoError(t, rows.Scan(&s))
		starts = append(starts, s)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int64{recent}, starts)
}

func TestMirror_PublishAndCleanupLoop(t *testing.T) {
	db := openTestSQLite(t)
	mirror := NewMirror(db, time.Second, logger.NewNop())
	assert.Equal(t, "database", mirror.Name())

	old := time.Now().AddDate(0, 0, -30).UnixMilli()
	require.NoError(t, mirror.Publish(context.Background(), []models.MSnapshot{snapshot("AAPL", "15m", old, 3, false)}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		mirror.RunCleanup(ctx, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool {
		var rows int
		return db.DB.QueryRow(`SELECT COUNT(*) FROM snapshots`).Scan(&rows) == nil && rows == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestSQLite_SaveSnapshotsHonoursContext(t *testing.T) {
	db := openTestSQLite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := db.SaveSnapshots(ctx, []models.MSnapshot{snapshot("AAPL", "1m", time.Now().UnixMilli(), 1, false)})
	assert.ErrorIs(t, err, context.Canceled)
}

// stalledDB never answers a write until its context is done.
type stalledDB struct {
	calls atomic.Int32
}

func (d *stalledDB) Initialize() error { return nil }
func (d *stalledDB) SaveSnapshots(ctx context.Context, _ []models.MSnapshot) error {
	d.calls.Add(1)
	<-ctx.Done()
	return ctx.Err()
}
func (d *stalledDB) CleanupOldData(context.Context) error { return nil }
func (d *stalledDB) Close() error { return nil }

func TestMirror_PublishGivesUpOnStalledDatabase(t *testing.T) {
	db := &stalledDB{}
	mirror := NewMirror(db, 50*time.Millisecond, logger.NewNop())

	start := time.Now()
	err := mirror.Publish(context.Background(), []models.MSnapshot{snapshot("AAPL", "1m", 0, 1, false)})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	// A shorter caller deadline wins over the mirror timeout.
	mirror.Timeout = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	start = time.Now()
	err = mirror.Publish(ctx, []models.MSnapshot{snapshot("AAPL", "1m", 0, 1, false)})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(2), db.calls.Load())
}

func TestOpen_Disabled(t *testing.T) {
	db, err := Open(models.MStorageConfig{DBType: "none"}, logger.NewNop())
	require.NoError(t, err)
	assert.Nil(t, db)
}

func TestParseSymbolRef(t *testing.T) {
	ref, ok := ParseSymbolRef("market.watchlist.ticker")
	require.True(t, ok)
	assert.Equal(t, "market", ref.RefSchema)
	assert.Equal(t, "watchlist", ref.RefTable)
	assert.Equal(t, "ticker", ref.RefField)

	for _, s := range []string{"AAPL", "BINANCE:BTCUSDT", "BRK.B"} {
		_, ok := ParseSymbolRef(s)
		assert.False(t, ok, s)
	}
	assert.Equal(t, "quote_observer", schemaName("quote-observer"))
}
