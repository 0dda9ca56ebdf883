package codec

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"quote-observer/src/helpers"
	"quote-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeSubscribe(t *testing.T) {
	frame, err := EncodeSubscribe("BINANCE:BTCUSDT")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"subscribe","symbol":"BINANCE:BTCUSDT"}`, string(frame))

	frame, err = EncodeUnsubscribe("AAPL")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"unsubscribe","symbol":"AAPL"}`, string(frame))
}

func TestEncodeSubscribe_InvalidSymbol(t *testing.T) {
	for _, symbol := range []string{"", "AA PL", "AAPL\n", strings.Repeat("X", MaxSymbolLength+1)} {
		_, err := EncodeSubscribe(symbol)
		assert.ErrorIs(t, err, ErrInvalidSymbol, "symbol %q", symbol)
	}

	_, err := EncodeSubscribe(strings.Repeat("X", MaxSymbolLength))
	assert.NoError(t, err)
}

func TestDecodeFrame_TradeEntriesInOrder(t *testing.T) {
	frame, err := DecodeFrame([]byte(`{"type":"trade","data":[
		{"s":"BINANCE:BTCUSDT","p":23061.05,"v":0.5,"t":1658441258376,"c":["1"]},
		{"s":"AAPL","p":172.5,"v":100,"t":1658441258197},
		{"s":"BINANCE:BTCUSDT","p":23060.16,"t":1658441258400}
	]}`))
	require.NoError(t, err)
	require.Equal(t, FrameTrade, frame.Kind)
	require.Equal(t, 3, frame.Len())

	quotes := slices.Collect(frame.Quotes())
	assert.Equal(t, []models.MQuote{
		{Symbol: "BINANCE:BTCUSDT", Price: 23061.05, Volume: 0.5, EventTime: 1658441258376, Conditions: []string{"1"}},
		{Symbol: "AAPL", Price: 172.5, Volume: 100, EventTime: 1658441258197},
		{Symbol: "BINANCE:BTCUSDT", Price: 23060.16, Volume: 0, EventTime: 1658441258400},
	}, quotes)
}

func TestDecodeFrame_ZeroEntries(t *testing.T) {
	for _, raw := range []string{
		`{"type":"trade","data":[]}`,
		`{"type":"trade"}`,
		`{"type":"trade","data":null}`,
	} {
		frame, err := DecodeFrame([]byte(raw))
		require.NoError(t, err, raw)
		assert.Equal(t, FrameTrade, frame.Kind)
		assert.Empty(t, slices.Collect(frame.Quotes()))
	}
}

func TestDecodeFrame_Control(t *testing.T) {
	frame, err := DecodeFrame([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.Equal(t, FramePing, frame.Kind)

	frame, err = DecodeFrame([]byte(`{"type":"error","msg":"Subscribing to too many symbols"}`))
	require.NoError(t, err)
	assert.Equal(t, FrameError, frame.Kind)
	assert.Equal(t, "Subscribing to too many symbols", frame.Message)

	frame, err = DecodeFrame([]byte(`{"msg":"Invalid token"}`))
	require.NoError(t, err)
	assert.Equal(t, FrameError, frame.Kind)
	assert.Equal(t, "Invalid token", frame.Message)
}

func TestDecodeFrame_UnknownTypeIsNotAnError(t *testing.T) {
	frame, err := DecodeFrame([]byte(`{"type":"news","data":{"headline":"x"}}`))
	require.NoError(t, err)
	assert.Equal(t, FrameUnrecognized, frame.Kind)
	assert.Equal(t, "news", frame.Type)
	assert.Zero(t, frame.Len())

	frame, err = DecodeFrame([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, FrameUnrecognized, frame.Kind)
}

func TestDecodeFrame_Malformed(t *testing.T) {
	cases := map[string]string{
		"truncated":       `{"type":"trade","data":[{"s":"AAPL"`,
		"not json":        `hello`,
		"missing symbol":  `{"type":"trade","data":[{"p":1,"t":1}]}`,
		"missing price":   `{"type":"trade","data":[{"s":"AAPL","t":1}]}`,
		"missing time":    `{"type":"trade","data":[{"s":"AAPL","p":1}]}`,
		"negative price":  `{"type":"trade","data":[{"s":"AAPL","p":-1,"t":1}]}`,
		"negative volume": `{"type":"trade","data":[{"s":"AAPL","p":1,"v":-3,"t":1}]}`,
		"wrong types":     `{"type":"trade","data":[{"s":"AAPL","p":"1.0","t":1}]}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeFrame([]byte(raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)

			var protoErr *helpers.ProtocolError
			assert.True(t, errors.As(err, &protoErr))
		})
	}
}

func TestParsedFrame_QuotesStopsEarly(t *testing.T) {
	frame, err := DecodeFrame([]byte(`{"type":"trade","data":[
		{"s":"A","p":1,"t":1},{"s":"B","p":2,"t":2},{"s":"C","p":3,"t":3}]}`))
	require.NoError(t, err)

	var seen []string
	for q := range frame.Quotes() {
		seen = append(seen, q.Symbol)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"A", "B"}, seen)
}
