// Package codec translates between the upstream streaming protocol's JSON
// text frames and in-process values. It holds no state and performs no I/O.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"math"
	"unicode"

	"quote-observer/src/helpers"
	"quote-observer/src/models"
)

// MaxSymbolLength is the longest symbol the upstream accepts.
const MaxSymbolLength = 64

var (
	ErrInvalidSymbol = errors.New("invalid symbol")
	ErrMalformed     = errors.New("malformed frame")
)

// FrameKind tags the variant held by a ParsedFrame.
type FrameKind int

const (
	FrameUnrecognized FrameKind = iota
	FrameTrade
	FramePing
	FrameError
)

func (k FrameKind) String() string {
	switch k {
	case FrameTrade:
		return "trade"
	case FramePing:
		return "ping"
	case FrameError:
		return "error"
	default:
		return "unrecognized"
	}
}

// ParsedFrame is one decoded inbound frame.
type ParsedFrame struct {
	Kind FrameKind
	// Type is the raw "type" field, kept for logging unrecognized frames.
	Type    string
	Message string
	quotes  []models.MQuote
}

// Quotes yields the trade entries of the frame in entry order. Non-trade
// frames yield nothing.
func (f ParsedFrame) Quotes() iter.Seq[models.MQuote] {
	return func(yield func(models.MQuote) bool) {
		for _, q := range f.quotes {
			if !yield(q) {
				return
			}
		}
	}
}

// Len returns the number of quotes carried by the frame.
func (f ParsedFrame) Len() int {
	return len(f.quotes)
}

// -----------------------------------------------------------------------------
// Outbound
// -----------------------------------------------------------------------------

type controlMessage struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

// ValidateSymbol reports whether s can be sent in a subscription frame.
func ValidateSymbol(s string) error {
	if s == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSymbol)
	}
	if len(s) > MaxSymbolLength {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidSymbol, len(s), MaxSymbolLength)
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: contains whitespace or control characters", ErrInvalidSymbol)
		}
	}
	return nil
}

// EncodeSubscribe produces the subscription request frame for one symbol.
func EncodeSubscribe(symbol string) ([]byte, error) {
	return encodeControl("subscribe", symbol)
}

// EncodeUnsubscribe produces the frame that cancels a subscription.
func EncodeUnsubscribe(symbol string) ([]byte, error) {
	return encodeControl("unsubscribe", symbol)
}

func encodeControl(kind, symbol string) ([]byte, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	return json.Marshal(controlMessage{Type: kind, Symbol: symbol})
}

// -----------------------------------------------------------------------------
// Inbound
// -----------------------------------------------------------------------------

// Data stays raw until the type is known, so the payload of message types
// this package does not understand never fails decoding.
type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
	Msg  *string         `json:"msg"`
}

// Pointers tell a missing field apart from a zero value.
type inboundTrade struct {
	Symbol     *string  `json:"s"`
	Price      *float64 `json:"p"`
	Volume     *float64 `json:"v"`
	Time       *int64   `json:"t"`
	Conditions []string `json:"c"`
}

// DecodeFrame decodes one inbound frame. Malformed input fails with an
// error wrapping ErrMalformed inside a *helpers.ProtocolError; unknown
// message types decode to FrameUnrecognized.
func DecodeFrame(data []byte) (ParsedFrame, error) {
	var raw inboundFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return ParsedFrame{}, malformed("invalid json", err)
	}

	switch raw.Type {
	case "trade":
		var entries []inboundTrade
		if len(raw.Data) > 0 {
			if err := json.Unmarshal(raw.Data, &entries); err != nil {
				return ParsedFrame{}, malformed("invalid trade data", err)
			}
		}
		quotes := make([]models.MQuote, 0, len(entries))
		for i, entry := range entries {
			q, err := entry.toQuote()
			if err != nil {
				return ParsedFrame{}, malformed(fmt.Sprintf("trade entry %d", i), err)
			}
			quotes = append(quotes, q)
		}
		return ParsedFrame{Kind: FrameTrade, Type: raw.Type, quotes: quotes}, nil

	case "ping":
		return ParsedFrame{Kind: FramePing, Type: raw.Type}, nil

	case "error":
		msg := ""
		if raw.Msg != nil {
			msg = *raw.Msg
		}
		return ParsedFrame{Kind: FrameError, Type: raw.Type, Message: msg}, nil

	case "":
		// The upstream reports some failures as a bare {"msg": "..."}.
		if raw.Msg != nil {
			return ParsedFrame{Kind: FrameError, Message: *raw.Msg}, nil
		}
		return ParsedFrame{Kind: FrameUnrecognized}, nil

	default:
		return ParsedFrame{Kind: FrameUnrecognized, Type: raw.Type}, nil
	}
}

func (t inboundTrade) toQuote() (models.MQuote, error) {
	switch {
	case t.Symbol == nil || *t.Symbol == "":
		return models.MQuote{}, errors.New("missing symbol")
	case t.Price == nil:
		return models.MQuote{}, errors.New("missing price")
	case t.Time == nil:
		return models.MQuote{}, errors.New("missing timestamp")
	}

	price := *t.Price
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return models.MQuote{}, fmt.Errorf("invalid price %v", price)
	}

	volume := 0.0
	if t.Volume != nil {
		volume = *t.Volume
	}
	if math.IsNaN(volume) || math.IsInf(volume, 0) || volume < 0 {
		return models.MQuote{}, fmt.Errorf("invalid volume %v", volume)
	}

	return models.MQuote{
		Symbol:     *t.Symbol,
		Price:      price,
		Volume:     volume,
		EventTime:  *t.Time,
		Conditions: t.Conditions,
	}, nil
}

func malformed(context string, cause error) error {
	return helpers.NewProtocolError(context, fmt.Errorf("%w: %v", ErrMalformed, cause))
}
