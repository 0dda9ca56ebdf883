package helpers

import (
	"runtime/debug"
)

// GetRecommendedMemoryLimit calculates a soft memory limit for the process in MB.
// Policy: 50% of the memory available to the process (cgroup limit or total RAM),
// bounded to [32MB, 512MB]. Returns 0 when the memory size is unknown.
func GetRecommendedMemoryLimit() int {
	totalMB := GetTotalSystemMemoryMB()
	if totalMB == 0 {
		return 0
	}

	limit := totalMB / 2
	if limit < 32 {
		limit = 32
	}
	if limit > 512 {
		limit = 512
	}
	return limit
}

// -----------------------------------------------------------------------------

// ApplyMemoryLimit sets the runtime soft memory limit. Returns the limit applied
// in MB, or 0 when nothing was changed.
func ApplyMemoryLimit(limitMB int) int {
	if limitMB <= 0 {
		return 0
	}
	debug.SetMemoryLimit(int64(limitMB) << 20)
	return limitMB
}
