package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// On-disk framing: [4-byte big-endian length][4-byte CRC32C][payload].
const (
	headerSize = 8
	// maxPayload bounds a single record so a corrupt length cannot trigger a
	// huge allocation.
	maxPayload = 16 << 20
)

var (
	ErrClosed        = errors.New("journal closed")
	ErrUnrecoverable = errors.New("unrecoverable write failure")
	ErrCorrupt       = errors.New("corrupt journal record")
	ErrTooLarge      = errors.New("journal record too large")
	// errTorn marks an incomplete record at the end of a segment.
	errTorn = errors.New("torn record")
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

var segmentPattern = regexp.MustCompile(`^journal-(\d{20})\.log$`)

// -----------------------------------------------------------------------------

func encodeFrame(payload []byte) []byte {
	frame := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(frame[0:4], uint32(len(payload)))
	binary.BigEndian.PutUint32(frame[4:8], crc32.Checksum(payload, castagnoli))
	copy(frame[headerSize:], payload)
	return frame
}

// -----------------------------------------------------------------------------

// readFrame reads one record. It returns io.EOF on a clean end, errTorn when
// the segment ends inside a record and ErrCorrupt on a checksum mismatch or an
// impossible length. size is the frame length declared by the header, or 0
// when no complete header was read.
func readFrame(r io.Reader) (payload []byte, size int64, err error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, 0, errTorn
		}
		return nil, 0, err
	}

	length := binary.BigEndian.Uint32(header[0:4])
	sum := binary.BigEndian.Uint32(header[4:8])
	size = headerSize + int64(length)
	if length > maxPayload {
		return nil, size, fmt.Errorf("%w: length %d exceeds limit", ErrCorrupt, length)
	}

	payload = make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, size, errTorn
		}
		return nil, size, err
	}

	if crc32.Checksum(payload, castagnoli) != sum {
		return nil, size, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	return payload, size, nil
}

// -----------------------------------------------------------------------------

func segmentName(seq uint64) string {
	return fmt.Sprintf("journal-%020d.log", seq)
}

// listSegments returns the segment sequence numbers found in dir, ascending.
func listSegments(dir string) ([]uint64, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "journal-*.log"))
	if err != nil {
		return nil, err
	}

	var seqs []uint64
	for _, m := range matches {
		sub := segmentPattern.FindStringSubmatch(filepath.Base(m))
		if sub == nil {
			continue
		}
		seq, err := strconv.ParseUint(sub[1], 10, 64)
		if err != nil {
			continue
		}
		seqs = append(seqs, seq)
	}

	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs, nil
}
