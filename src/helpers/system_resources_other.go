//go:build !linux

package helpers

// GetTotalSystemMemoryMB is unknown outside Linux; callers fall back to the
// runtime default.
func GetTotalSystemMemoryMB() int {
	return 0
}
