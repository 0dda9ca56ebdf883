package core

// -----------------------------------------------------------------------------

// CalculateChangePercent calculates the change from previous to current in
// percent.
func CalculateChangePercent(current, previous float64) float64 {
	if previous == 0 {
		return 0.0
	}
	return (current - previous) / previous * 100
}
