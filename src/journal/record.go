package journal

import (
	"bytes"
	"encoding/json"
	"fmt"

	"quote-observer/src/models"
)

// Kind tags a persisted record.
type Kind string

const (
	KindQuote    Kind = "QUOTE"
	KindSnapshot Kind = "SNAPSHOT"
)

// kindSeparator splits the kind tag from the JSON body in a payload.
const kindSeparator = '\x1f'

// Record is the unit appended to the journal: exactly one of Quote or
// Snapshot is set, matching Kind.
type Record struct {
	Kind     Kind              `json:"kind"`
	Quote    *models.MQuote    `json:"quote,omitempty"`
	Snapshot *models.MSnapshot `json:"snapshot,omitempty"`
}

// -----------------------------------------------------------------------------

func QuoteRecord(q models.MQuote) Record {
	return Record{Kind: KindQuote, Quote: &q}
}

func SnapshotRecord(s models.MSnapshot) Record {
	return Record{Kind: KindSnapshot, Snapshot: &s}
}

// -----------------------------------------------------------------------------

// MarshalPayload renders the record as KIND, a unit separator and the JSON
// encoding of its body.
func (r Record) MarshalPayload() ([]byte, error) {
	var body any
	switch r.Kind {
	case KindQuote:
		if r.Quote == nil {
			return nil, fmt.Errorf("quote record without quote")
		}
		body = r.Quote
	case KindSnapshot:
		if r.Snapshot == nil {
			return nil, fmt.Errorf("snapshot record without snapshot")
		}
		body = r.Snapshot
	default:
		return nil, fmt.Errorf("unknown record kind %q", r.Kind)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s record: %w", r.Kind, err)
	}

	payload := make([]byte, 0, len(r.Kind)+1+len(data))
	payload = append(payload, r.Kind...)
	payload = append(payload, kindSeparator)
	return append(payload, data...), nil
}

// -----------------------------------------------------------------------------

// ParsePayload is the inverse of MarshalPayload.
func ParsePayload(payload []byte) (Record, error) {
	tag, body, ok := bytes.Cut(payload, []byte{kindSeparator})
	if !ok {
		return Record{}, fmt.Errorf("%w: payload without kind tag", ErrCorrupt)
	}

	r := Record{Kind: Kind(tag)}
	switch r.Kind {
	case KindQuote:
		r.Quote = &models.MQuote{}
		if err := json.Unmarshal(body, r.Quote); err != nil {
			return Record{}, fmt.Errorf("%w: quote body: %v", ErrCorrupt, err)
		}
	case KindSnapshot:
		r.Snapshot = &models.MSnapshot{}
		if err := json.Unmarshal(body, r.Snapshot); err != nil {
			return Record{}, fmt.Errorf("%w: snapshot body: %v", ErrCorrupt, err)
		}
	default:
		return Record{}, fmt.Errorf("%w: unknown kind %q", ErrCorrupt, tag)
	}

	return r, nil
}
