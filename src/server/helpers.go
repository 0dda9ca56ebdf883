package server

import (
	"quote-observer/src/models"
)

// -----------------------------------------------------------------------------

func groupSnapshots(snapshots []models.MSnapshot) map[string]map[string]models.MSnapshot {
	result := make(map[string]map[string]models.MSnapshot)
	for _, s := range snapshots {
		windows, ok := result[s.Symbol]
		if !ok {
			windows = make(map[string]models.MSnapshot)
			result[s.Symbol] = windows
		}
		windows[s.Window] = s
	}
	return result
}

// -----------------------------------------------------------------------------

// filterSnapshots keeps the requested symbols (all when empty) and window
// (all when empty).
func filterSnapshots(all map[string]map[string]models.MSnapshot, symbols []string, window string) map[string]map[string]models.MSnapshot {
	result := make(map[string]map[string]models.MSnapshot)

	for sym, windows := range all {
		if len(symbols) > 0 && !contains(symbols, sym) {
			continue
		}
		if window == "" {
			result[sym] = windows
			continue
		}
		if s, exists := windows[window]; exists {
			result[sym] = map[string]models.MSnapshot{window: s}
		}
	}
	return result
}

// -----------------------------------------------------------------------------

func latestSnapshotTime(all map[string]map[string]models.MSnapshot) int64 {
	var latest int64
	for _, windows := range all {
		for _, s := range windows {
			if s.LastEventTime > latest {
				latest = s.LastEventTime
			}
		}
	}
	return latest
}

// -----------------------------------------------------------------------------

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
