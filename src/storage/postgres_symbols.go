package storage

import (
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"quote-observer/src/codec"
)

// Info: symbol registration and reference resolution specific to Postgres

var symbolRefPattern = regexp.MustCompile(`^(\w+)\.(\w+)\.(\w+)$`)

// SymbolMetadata is one row of the symbol registry.
type SymbolMetadata struct {
	Symbol    string
	Type      string // "classic" or "postgres_ref"
	RefSchema string
	RefTable  string
	RefField  string
}

// -----------------------------------------------------------------------------

// ParseSymbolRef reports whether raw names a column (schema.table.field)
// holding symbols rather than a symbol itself.
func ParseSymbolRef(raw string) (SymbolMetadata, bool) {
	matches := symbolRefPattern.FindStringSubmatch(raw)
	if len(matches) != 4 {
		return SymbolMetadata{}, false
	}
	return SymbolMetadata{
		Symbol:    raw,
		Type:      "postgres_ref",
		RefSchema: matches[1],
		RefTable:  matches[2],
		RefField:  matches[3],
	}, true
}

// -----------------------------------------------------------------------------

// ResolveSymbols expands schema.table.field references into the symbols the
// referenced column holds, registers everything and returns the plain
// symbols to subscribe to, in order and without duplicates.
func (d *PostgresDB) ResolveSymbols(rawSymbols []string) ([]string, error) {
	var resolved []string
	var registry []SymbolMetadata
	seen := make(map[string]struct{})

	add := func(sym string) {
		if _, dup := seen[sym]; dup {
			return
		}
		if err := codec.ValidateSymbol(sym); err != nil {
			d.Logger.Warning("Skipping invalid symbol %q: %v", sym, err)
			return
		}
		seen[sym] = struct{}{}
		resolved = append(resolved, sym)
		registry = append(registry, SymbolMetadata{Symbol: sym, Type: "classic"})
	}

	for _, sym := range rawSymbols {
		ref, ok := ParseSymbolRef(sym)
		if !ok {
			add(sym)
			continue
		}

		registry = append(registry, ref)
		loaded, err := d.GetSymbolsFromTable(ref.RefSchema, ref.RefTable, ref.RefField)
		if err != nil {
			return resolved, fmt.Errorf("failed to load symbols from %s: %w", sym, err)
		}
		d.Logger.Info("Loaded %d symbols from %s", len(loaded), sym)
		for _, s := range loaded {
			add(s)
		}
	}

	if err := d.RegisterSymbols(registry); err != nil {
		return resolved, fmt.Errorf("failed to register symbols: %w", err)
	}

	return resolved, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) RegisterSymbols(symbols []SymbolMetadata) error {
	if len(symbols) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO "%s"."symbols" (symbol, type, ref_schema, ref_table, ref_field, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol) DO UPDATE SET
			type = EXCLUDED.type,
			ref_schema = EXCLUDED.ref_schema,
			ref_table = EXCLUDED.ref_table,
			ref_field = EXCLUDED.ref_field,
			updated_at = EXCLUDED.updated_at
	`, d.Schema)

	stmt, err := tx.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, s := range symbols {
		if _, err := stmt.Exec(s.Symbol, s.Type, s.RefSchema, s.RefTable, s.RefField, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) GetSymbolsFromTable(schema, table, field string) ([]string, error) {
	// Identifiers come from symbolRefPattern (\w+ only) and are quoted.
	query := fmt.Sprintf(`SELECT DISTINCT "%s" FROM "%s"."%s"`, field, schema, table)

	rows, err := d.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s sql.NullString
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		if s.Valid && s.String != "" {
			symbols = append(symbols, s.String)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return symbols, nil
}
