package utils

import (
	"testing"
	"time"

	"quote-observer/src/logger"

	"github.com/stretchr/testify/assert"
)

func TestMICForSymbol(t *testing.T) {
	assert.Equal(t, "xnys", MICForSymbol("AAPL"))
	assert.Equal(t, "xlon", MICForSymbol("VOD.L"))
	assert.Equal(t, "xtks", MICForSymbol("7203.T"))
	assert.Equal(t, "xnys", MICForSymbol("BRK.B"))
}

func TestMarketScheduler_AlwaysOpenSymbols(t *testing.T) {
	ms := NewMarketScheduler([]string{"AAPL", "BINANCE:BTCUSDT"}, logger.NewNop())
	ms.Now = func() time.Time { return time.Date(2024, 6, 8, 12, 0, 0, 0, time.UTC) } // Saturday

	assert.True(t, ms.AnyMarketOpen())
	assert.Equal(t, 90*time.Second, ms.IdleTimeout(90*time.Second, 10))
}

func TestMarketScheduler_ClosedMarketStretchesIdleTimeout(t *testing.T) {
	ms := NewMarketScheduler([]string{"AAPL", "MSFT"}, logger.NewNop())

	// Saturday: NYSE closed.
	ms.Now = func() time.Time { return time.Date(2024, 6, 8, 15, 0, 0, 0, time.UTC) }
	assert.False(t, ms.AnyMarketOpen())
	assert.Equal(t, 900*time.Second, ms.IdleTimeout(90*time.Second, 10))

	// Wednesday 11:00 New York (15:00 UTC in June): open.
	ms.Now = func() time.Time { return time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC) }
	assert.True(t, ms.AnyMarketOpen())
	assert.Equal(t, 90*time.Second, ms.IdleTimeout(90*time.Second, 10))
}
