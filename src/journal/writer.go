package journal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"quote-observer/src/helpers"
	"quote-observer/src/logger"
	"quote-observer/src/models"
)

// segmentFile is the subset of *os.File the writer needs.
type segmentFile interface {
	io.Writer
	Sync() error
	Truncate(size int64) error
	Seek(offset int64, whence int) (int64, error)
	Close() error
}

// Options control segment size and retry behaviour.
type Options struct {
	Dir             string
	MaxSegmentBytes int64
	RetryAttempts   int
	RetryStep       time.Duration
}

// OptionsFromConfig maps the journal section of the configuration.
func OptionsFromConfig(cfg models.MJournalConfig) Options {
	return Options{
		Dir:             cfg.Dir,
		MaxSegmentBytes: cfg.MaxSegmentBytes,
		RetryAttempts:   cfg.RetryAttempts,
		RetryStep:       cfg.RetryStep,
	}
}

// Writer appends records to a directory of segment files. Every successful
// Append has been written and fsynced. Appends are serialized and land in the
// order they were accepted.
type Writer struct {
	mu     sync.Mutex
	opts   Options
	file   segmentFile
	seq    uint64
	size   int64
	closed bool

	// openFile is replaced in tests to inject I/O faults.
	openFile func(name string) (segmentFile, error)

	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

// Open prepares dir, recovers the newest segment and positions the writer at
// its end. A torn record left by a crash is truncated away. A newest segment
// that is damaged before its tail is left untouched and writing continues in
// a fresh segment.
func Open(opts Options, log *logger.Logger) (*Writer, error) {
	if opts.MaxSegmentBytes <= 0 {
		opts.MaxSegmentBytes = 16 << 20
	}
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}

	w := &Writer{
		opts:     opts,
		openFile: openSegmentFile,
		Logger:   log,
	}
	if err := w.open(); err != nil {
		return nil, helpers.NewWriteError("failed to open journal", err)
	}
	return w, nil
}

func openSegmentFile(name string) (segmentFile, error) {
	return os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0644)
}

func (w *Writer) open() error {
	if err := os.MkdirAll(w.opts.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create journal dir: %w", err)
	}

	seqs, err := listSegments(w.opts.Dir)
	if err != nil {
		return err
	}

	if len(seqs) == 0 {
		return w.openSegment(1, 0)
	}

	last := seqs[len(seqs)-1]
	size, err := recoverSegment(filepath.Join(w.opts.Dir, segmentName(last)), w.Logger)
	if errors.Is(err, ErrCorrupt) {
		w.Logger.Error("Journal segment %d is damaged, leaving it as is and starting segment %d: %v", last, last+1, err)
		return w.openSegment(last+1, 0)
	}
	if err != nil {
		return err
	}
	return w.openSegment(last, size)
}

// -----------------------------------------------------------------------------

// recoverSegment returns the length of the valid prefix of a segment. Only a
// torn tail is cut off: a record that runs past the end of the file, or whose
// checksum fails while it ends exactly at the end of the file. Damage before
// the tail returns ErrCorrupt and the file is not modified.
func recoverSegment(path string, log *logger.Logger) (int64, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	r := bufio.NewReader(f)
	var valid int64
	for {
		_, size, err := readFrame(r)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, ErrCorrupt) && valid+size < info.Size() {
			return 0, fmt.Errorf("offset %d: %w", valid, err)
		}
		if errors.Is(err, errTorn) || errors.Is(err, ErrCorrupt) {
			log.Warning("Truncating journal segment %s at offset %d: %v", filepath.Base(path), valid, err)
			break
		}
		if err != nil {
			return 0, err
		}
		valid += size
	}

	if valid < info.Size() {
		if err := f.Truncate(valid); err != nil {
			return 0, fmt.Errorf("failed to truncate torn tail: %w", err)
		}
		if err := f.Sync(); err != nil {
			return 0, err
		}
	}
	return valid, nil
}

// -----------------------------------------------------------------------------

func (w *Writer) openSegment(seq uint64, size int64) error {
	f, err := w.openFile(filepath.Join(w.opts.Dir, segmentName(seq)))
	if err != nil {
		return err
	}
	if _, err := f.Seek(size, io.SeekStart); err != nil {
		f.Close()
		return err
	}
	w.file = f
	w.seq = seq
	w.size = size
	if err := syncDir(w.opts.Dir); err != nil {
		w.Logger.Warning("Failed to sync journal dir: %v", err)
	}
	return nil
}

// syncDir makes a newly created segment's directory entry durable.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// -----------------------------------------------------------------------------

// Append writes and fsyncs one record. Transient failures are retried with a
// linear backoff; when retries run out the error wraps ErrUnrecoverable and
// the journal is left ready for the next record. Records larger than the
// frame limit are rejected without touching the file.
func (w *Writer) Append(ctx context.Context, r Record) error {
	payload, err := r.MarshalPayload()
	if err != nil {
		return helpers.NewWriteError("failed to encode record", err)
	}
	if len(payload) > maxPayload {
		return helpers.NewWriteError("append", fmt.Errorf("%w: %w: %d bytes", ErrUnrecoverable, ErrTooLarge, len(payload)))
	}
	frame := encodeFrame(payload)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return helpers.NewWriteError("append", ErrClosed)
	}

	if w.size > 0 && w.size+int64(len(frame)) > w.opts.MaxSegmentBytes {
		if err := w.rotate(); err != nil {
			w.Logger.Error("Journal rotation failed, appending to segment %d: %v", w.seq, err)
		}
	}

	attempt := 0
	err = helpers.RetryLinear(ctx, w.opts.RetryAttempts, w.opts.RetryStep, nil, func() error {
		attempt++
		if attempt > 1 {
			w.Logger.Warning("Retrying journal append (attempt %d/%d)", attempt, w.opts.RetryAttempts)
		}
		return w.writeFrame(frame)
	})
	if err != nil {
		return helpers.NewWriteError("append", fmt.Errorf("%w: %v", ErrUnrecoverable, err))
	}
	return nil
}

// writeFrame writes frame at the current end and fsyncs. A failed attempt
// rolls the file back so a retry never leaves a partial record behind.
func (w *Writer) writeFrame(frame []byte) error {
	if _, err := w.file.Write(frame); err != nil {
		w.rollback()
		return err
	}
	if err := w.file.Sync(); err != nil {
		w.rollback()
		return err
	}
	w.size += int64(len(frame))
	return nil
}

func (w *Writer) rollback() {
	if err := w.file.Truncate(w.size); err != nil {
		w.Logger.Error("Failed to roll back journal segment %d: %v", w.seq, err)
	}
	if _, err := w.file.Seek(w.size, io.SeekStart); err != nil {
		w.Logger.Error("Failed to reposition journal segment %d: %v", w.seq, err)
	}
}

// -----------------------------------------------------------------------------

// rotate seals the active segment and starts the next one. The next segment
// is opened before the active one is closed, so a failed rotation leaves the
// writer on the active segment.
func (w *Writer) rotate() error {
	if err := w.file.Sync(); err != nil {
		return err
	}

	sealed, file := w.seq, w.file
	if err := w.openSegment(w.seq+1, 0); err != nil {
		return err
	}
	if err := file.Close(); err != nil {
		w.Logger.Warning("Failed to close sealed journal segment %d: %v", sealed, err)
	}

	w.Logger.Info("Sealed journal segment %d, now writing segment %d", sealed, w.seq)
	return nil
}

// -----------------------------------------------------------------------------

// Segment returns the sequence number of the active segment.
func (w *Writer) Segment() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

// -----------------------------------------------------------------------------

// Close fsyncs and closes the active segment. Further appends fail with
// ErrClosed.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	syncErr := w.file.Sync()
	closeErr := w.file.Close()
	return errors.Join(syncErr, closeErr)
}
