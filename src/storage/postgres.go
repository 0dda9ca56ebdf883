package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"quote-observer/src/logger"
	"quote-observer/src/models"

	_ "github.com/lib/pq"
)

var unsafeIdent = regexp.MustCompile(`[^A-Za-z0-9_]`)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config models.MStorageConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

// NewPostgresDB keeps every table in a schema named after the executable.
func NewPostgresDB(cfg models.MStorageConfig, log *logger.Logger) (*PostgresDB, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresDB{
		Config: cfg,
		Schema: schemaName(name),
		Logger: log,
	}, nil
}

func schemaName(exe string) string {
	name := unsafeIdent.ReplaceAllString(strings.ToLower(exe), "_")
	if name == "" {
		return "quote_observer"
	}
	return name
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	db, err := sql.Open("postgres", d.Config.DBConnectionString)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	d.DB = db

	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."snapshots" (
			symbol TEXT,
			window_name TEXT,
			start_time BIGINT,
			end_time BIGINT,
			count BIGINT,
			mean DOUBLE PRECISION,
			variance DOUBLE PRECISION,
			open DOUBLE PRECISION,
			close DOUBLE PRECISION,
			min DOUBLE PRECISION,
			max DOUBLE PRECISION,
			volume DOUBLE PRECISION,
			partial BOOLEAN,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (symbol, window_name, start_time)
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create snapshots: %w", err)
	}

	// Symbol registry
	query = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."symbols" (
			symbol TEXT PRIMARY KEY,
			type TEXT,
			ref_schema TEXT,
			ref_table TEXT,
			ref_field TEXT,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create symbols: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveSnapshots(ctx context.Context, snapshots []models.MSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO "%s"."snapshots" (symbol, window_name, start_time, end_time, count, mean, variance, open, close, min, max, volume, partial, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (symbol, window_name, start_time) DO UPDATE SET
			end_time = EXCLUDED.end_time,
			count = EXCLUDED.count,
			mean = EXCLUDED.mean,
			variance = EXCLUDED.variance,
			open = EXCLUDED.open,
			close = EXCLUDED.close,
			min = EXCLUDED.min,
			max = EXCLUDED.max,
			volume = EXCLUDED.volume,
			partial = EXCLUDED.partial,
			created_at = EXCLUDED.created_at
	`, d.Schema)
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	createdAt := time.Now().UTC()
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

func (d *PostgresDB) CleanupOldData(ctx context.Context) error {
	cutoff := retentionCutoff(d.Config.RetentionDays)
	if cutoff == 0 {
		return nil
	}

	d.Logger.Debug("Cleaning up snapshots older than %d days (end_time < %d)", d.Config.RetentionDays, cutoff)

	res, err := d.DB.ExecContext(ctx, fmt.Sprintf(`DELETE FROM "%s"."snapshots" WHERE end_time < $1`, d.Schema), cutoff)
	if err != nil {
		return fmt.Errorf("cleanup snapshots: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		d.Logger.Info("Cleanup removed %d snapshots", n)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
