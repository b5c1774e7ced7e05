package risk

import "fmt"

// EmergencyStopThreshold is the drawdown from the reference balance that trips the guard.
const EmergencyStopThreshold = 0.10

// EmergencyStopGuard is a drawdown circuit breaker. It holds no state; the caller
// decides what to halt while it reports true.
type EmergencyStopGuard struct{}

// ShouldStop reports whether current has fallen at least 10% below initial.
func (EmergencyStopGuard) ShouldStop(current, initial float64) (bool, string) {
	if initial <= 0 {
		return false, ""
	}
	drawdown := (initial - current) / initial
	if drawdown >= EmergencyStopThreshold {
		return true, fmt.Sprintf("Emergency stop: drawdown %.2f%% exceeds %.0f%% (balance %.2f, reference %.2f)",
			drawdown*100, EmergencyStopThreshold*100, current, initial)
	}
	return false, ""
}
