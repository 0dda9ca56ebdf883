package utils

import (
	"time"

	"quote-observer/src/logger"
)

// MarketScheduler tells the stream supervisor whether any subscribed market
// is trading, so a silent connection outside session hours is not mistaken
// for a dead one.
type MarketScheduler struct {
	calendars  []*TradingCalendar
	alwaysOpen bool
	Now        func() time.Time
	Logger     *logger.Logger
}

// -----------------------------------------------------------------------------

func NewMarketScheduler(symbols []string, l *logger.Logger) *MarketScheduler {
	ms := &MarketScheduler{
		Now:    time.Now,
		Logger: l,
	}

	byMIC := make(map[string]*TradingCalendar)
	for _, symbol := range symbols {
		if IsAlwaysOpen(symbol) {
			ms.alwaysOpen = true
			continue
		}
		mic := MICForSymbol(symbol)
		if _, ok := byMIC[mic]; !ok {
			cal := GetCalendar(symbol)
			if cal.Fallback {
				l.Warning("No calendar for %s (%s), using Mon-Fri 09:30-16:00 New York", symbol, mic)
			}
			byMIC[mic] = cal
			ms.calendars = append(ms.calendars, cal)
		}
	}

	l.Info("MarketScheduler: Mapped %d symbols to %d unique calendars (always open: %t).",
		len(symbols), len(ms.calendars), ms.alwaysOpen)
	return ms
}

// -----------------------------------------------------------------------------

// AnyMarketOpen checks if ANY tracked markets are currently open
func (ms *MarketScheduler) AnyMarketOpen() bool {
	if ms.alwaysOpen {
		return true
	}

	now := ms.Now().UTC()
	for _, cal := range ms.calendars {
		if cal.IsOpenOnMinute(now) {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------

// IdleTimeout scales base by factor while every tracked market is closed.
func (ms *MarketScheduler) IdleTimeout(base time.Duration, factor int) time.Duration {
	if factor <= 1 || ms.AnyMarketOpen() {
		return base
	}
	return base * time.Duration(factor)
}
