package fractalmemory

import (
	"math"
	"time"
)

// decayedImportance multiplicatively decays importance over elapsed time
// against halfLife, mirroring the Graph Store's L2/L3 kernel (spec.md
// §4.3 step 3) for the L0/L1 tiers the orchestrator owns directly.
func decayedImportance(importance float64, elapsed time.Duration, halfLife time.Duration) float64 {
	if halfLife <= 0 || elapsed <= 0 {
		return importance
	}
	factor := math.Pow(0.5, elapsed.Seconds()/halfLife.Seconds())
	return importance * factor
}
