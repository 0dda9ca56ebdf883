package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"quote-observer/src/logger"
	"quote-observer/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type SQLiteDB struct {
	Config models.MStorageConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteDB(cfg models.MStorageConfig, log *logger.Logger) *SQLiteDB {
	return &SQLiteDB{
		Config: cfg,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Initialize() error {
	if dir := filepath.Dir(d.Config.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", d.Config.DBPath)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) createTables() error {
	// SQLite types: INTEGER for int64 and bool, REAL for float64, TEXT for string
	query := `
		CREATE TABLE IF NOT EXISTS snapshots (
			symbol TEXT,
			window_name TEXT,
			start_time INTEGER,
			end_time INTEGER,
			count INTEGER,
			mean REAL,
			variance REAL,
			open REAL,
			close REAL,
			min REAL,
			max REAL,
			volume REAL,
			partial INTEGER,
			created_at INTEGER,
			PRIMARY KEY (symbol, window_name, start_time)
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create snapshots: %w", err)
	}

	if _, err := d.DB.Exec(`CREATE INDEX IF NOT EXISTS snapshots_end_time ON snapshots (end_time)`); err != nil {
		return fmt.Errorf("failed to create snapshots index: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) SaveSnapshots(ctx context.Context, snapshots []models.MSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshots (symbol, window_name, start_time, end_time, count, mean, variance, open, close, min, max, volume, partial, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, window_name, start_time) DO UPDATE SET
			end_time = excluded.end_time,
			count = excluded.count,
			mean = excluded.mean,
			variance = excluded.variance,
			open = excluded.open,
			close = excluded.close,
			min = excluded.min,
			max = excluded.max,
			volume = excluded.volume,
			partial = excluded.partial,
			created_at = excluded.created_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	createdAt := time.Now().UTC().UnixMilli()
	for _, s := range snapshots {
		_, err := stmt.ExecContext(ctx, s.Symbol, s.Window, s.WindowStart, s.WindowEnd, s.Count, s.Mean, s.Variance,
			s.Open, s.Close, s.Min, s.Max, s.Volume, s.Partial, createdAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) CleanupOldData(ctx context.Context) error {
	cutoff := retentionCutoff(d.Config.RetentionDays)
	if cutoff == 0 {
		return nil
	}

	d.Logger.Debug("Cleaning up snapshots older than %d days (end_time < %d)", d.Config.RetentionDays, cutoff)

	res, err := d.DB.ExecContext(ctx, "DELETE FROM snapshots WHERE end_time < ?", cutoff)
	if err != nil {
		return fmt.Errorf("cleanup snapshots: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		d.Logger.Info("Cleanup removed %d snapshots", n)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
