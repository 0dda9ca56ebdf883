package storage

import (
	"context"
	"fmt"
	"time"

	"quote-observer/src/interfaces"
	"quote-observer/src/logger"
	"quote-observer/src/models"
)

// Open builds and initializes the snapshot mirror selected by cfg.DBType.
// It returns nil without error when the mirror is disabled.
func Open(cfg models.MStorageConfig, log *logger.Logger) (interfaces.IDatabase, error) {
	var db interfaces.IDatabase

	switch cfg.DBType {
	case "", "none":
		return nil, nil
	case "sqlite":
		db = NewSQLiteDB(cfg, log)
	case "postgres":
		pg, err := NewPostgresDB(cfg, log)
		if err != nil {
			return nil, err
		}
		db = pg
	default:
		return nil, fmt.Errorf("unknown database type %q", cfg.DBType)
	}

	if err := db.Initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize %s: %w", cfg.DBType, err)
	}
	return db, nil
}

// retentionCutoff returns the oldest window end, in ms, that survives
// cleanup. Zero disables cleanup.
func retentionCutoff(days int) int64 {
	if days <= 0 {
		return 0
	}
	return time.Now().UTC().AddDate(0, 0, -days).UnixMilli()
}

// -----------------------------------------------------------------------------

var (
	_ interfaces.IDatabase     = (*SQLiteDB)(nil)
	_ interfaces.IDatabase     = (*PostgresDB)(nil)
	_ interfaces.ISnapshotSink = (*Mirror)(nil)
)

// Mirror adapts an IDatabase to the snapshot sink used by the pipeline.
type Mirror struct {
	DB      interfaces.IDatabase
	Timeout time.Duration
	Logger  *logger.Logger
}

func NewMirror(db interfaces.IDatabase, timeout time.Duration, log *logger.Logger) *Mirror {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Mirror{DB: db, Timeout: timeout, Logger: log}
}

func (m *Mirror) Name() string { return "database" }

// Publish upserts the batch, giving up after Timeout or when ctx is done.
func (m *Mirror) Publish(ctx context.Context, snapshots []models.MSnapshot) error {
	ctx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()

	if err := m.DB.SaveSnapshots(ctx, snapshots); err != nil {
		return fmt.Errorf("save %d snapshots: %w", len(snapshots), err)
	}
	return nil
}

func (m *Mirror) Close() error {
	return m.DB.Close()
}

// -----------------------------------------------------------------------------

// RunCleanup applies the retention policy now and then every interval until
// ctx is cancelled.
func (m *Mirror) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := m.DB.CleanupOldData(ctx); err != nil {
			m.Logger.Error("Snapshot cleanup failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
