package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"quote-observer/src/journal"
	"quote-observer/src/logger"
	"quote-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJournal(t *testing.T, dir string, records ...journal.Record) {
	t.Helper()
	w, err := journal.Open(journal.Options{Dir: dir, MaxSegmentBytes: 1 << 20, RetryAttempts: 1}, logger.NewNop())
	require.NoError(t, err)
	for _, rec := range records {
		require.NoError(t, w.Append(context.Background(), rec))
	}
	require.NoError(t, w.Close())
}

func TestRun_PrintsJSONLines(t *testing.T) {
	dir := t.TempDir()
	writeJournal(t, dir,
		journal.QuoteRecord(models.MQuote{Symbol: "AAPL", Price: 100, EventTime: 1, ReceivedAt: 5}),
		journal.SnapshotRecord(models.MSnapshot{Symbol: "AAPL", Window: "1m", Count: 1}),
	)

	var out, errOut bytes.Buffer
	require.NoError(t, run(dir, &out, &errOut))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Empty(t, errOut.String())

	var first journal.Record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, journal.KindQuote, first.Kind)
	assert.Equal(t, "AAPL", first.Quote.Symbol)
	assert.Equal(t, int64(5), first.Quote.ReceivedAt)
	assert.Nil(t, first.Snapshot)
	assert.Contains(t, lines[1], `"kind":"SNAPSHOT"`)
}

func TestRun_SkipsDamagedSegment(t *testing.T) {
	dir := t.TempDir()
	writeJournal(t, dir,
		journal.QuoteRecord(models.MQuote{Symbol: "AAPL", Price: 100, EventTime: 1}),
		journal.QuoteRecord(models.MQuote{Symbol: "AAPL", Price: 101, EventTime: 2}),
	)

	// Damage the first record, then keep writing: the writer moves on to a
	// fresh segment.
	path := filepath.Join(dir, "journal-00000000000000000001.log")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[10] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0644))
	writeJournal(t, dir, journal.QuoteRecord(models.MQuote{Symbol: "MSFT", Price: 300, EventTime: 3}))

	var out, errOut bytes.Buffer
	err = run(dir, &out, &errOut)
	assert.ErrorIs(t, err, journal.ErrCorrupt)
	assert.Contains(t, errOut.String(), "skipping")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"symbol":"MSFT"`)
}
