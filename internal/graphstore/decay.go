package graphstore

import (
	"math"
	"time"
)

// decayedImportance multiplicatively decays importance by elapsed time
// since lastAccessed against halfLife, implementing spec.md §4.2's
// apply_decay and the monotone-decay invariant (§3.3.2): importance never
// increases from decay alone, and the factor is exactly 1 for elapsed=0.
func decayedImportance(importance float64, lastAccessed time.Time, now time.Time, halfLife time.Duration) float64 {
	if halfLife <= 0 {
		return importance
	}
	elapsed := now.Sub(lastAccessed)
	if elapsed <= 0 {
		return importance
	}
	factor := math.Pow(0.5, elapsed.Seconds()/halfLife.Seconds())
	return importance * factor
}
