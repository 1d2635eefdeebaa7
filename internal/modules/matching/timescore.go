package matching

import (
	"math"
	"time"
)

// TimeScore decays exponentially with the gap between the two occurrence
// timestamps. It is the only signal present on every candidate.
func TimeScore(cfg Config, a, b time.Time) Signal {
	days := math.Abs(a.Sub(b).Hours()) / 24.0
	return SignalOf(math.Exp(-days / cfg.TimeWindowDays))
}
