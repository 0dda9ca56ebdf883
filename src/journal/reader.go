package journal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Reader walks every segment of a journal directory forward, oldest first.
type Reader struct {
	dir      string
	segments []uint64
	index    int
	file     *os.File
	buf      *bufio.Reader
}

// -----------------------------------------------------------------------------

// NewReader lists the segments present in dir at the time of the call.
func NewReader(dir string) (*Reader, error) {
	segments, err := listSegments(dir)
	if err != nil {
		return nil, err
	}
	return &Reader{dir: dir, segments: segments, index: -1}, nil
}

// -----------------------------------------------------------------------------

// NextPayload returns the raw payload of the next record, exactly as it was
// appended. It returns io.EOF after the last record. A record cut short at
// the end of the newest segment is treated as the end of the journal, since
// a live writer may still be producing it. A corrupt record ends its segment:
// the error is returned and the following call resumes with the next segment.
func (r *Reader) NextPayload() ([]byte, error) {
	for {
		if r.buf == nil {
			if err := r.advance(); err != nil {
				return nil, err
			}
		}

		payload, _, err := readFrame(r.buf)
		switch {
		case err == nil:
			return payload, nil
		case errors.Is(err, io.EOF):
			r.closeSegment()
		case errors.Is(err, errTorn) && r.index == len(r.segments)-1:
			r.closeSegment()
			return nil, io.EOF
		case errors.Is(err, errTorn):
			r.closeSegment()
			return nil, fmt.Errorf("%w: segment %s ends mid-record", ErrCorrupt, segmentName(r.segments[r.index]))
		default:
			r.closeSegment()
			return nil, fmt.Errorf("segment %s: %w", segmentName(r.segments[r.index]), err)
		}
	}
}

// Next returns the next decoded record.
func (r *Reader) Next() (Record, error) {
	payload, err := r.NextPayload()
	if err != nil {
		return Record{}, err
	}
	return ParsePayload(payload)
}

// -----------------------------------------------------------------------------

func (r *Reader) advance() error {
	if r.index+1 >= len(r.segments) {
		return io.EOF
	}
	r.index++

	f, err := os.Open(filepath.Join(r.dir, segmentName(r.segments[r.index])))
	if err != nil {
		return err
	}
	r.file = f
	r.buf = bufio.NewReader(f)
	return nil
}

func (r *Reader) closeSegment() {
	if r.file != nil {
		r.file.Close()
	}
	r.file = nil
	r.buf = nil
}

// Close releases the open segment, if any.
func (r *Reader) Close() error {
	r.closeSegment()
	return nil
}

// -----------------------------------------------------------------------------

// ReadAll decodes every record in dir.
func ReadAll(dir string) ([]Record, error) {
	reader, err := NewReader(dir)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var records []Record
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}
