package engine

import (
	"math"
	"time"

	"github.com/samber/lo"
)

// Progress returns elapsed/total clamped to [0, 1]. A non-positive total is
// already complete.
func Progress(elapsed, total time.Duration) float64 {
	if total <= 0 {
		return 1
	}
	return lo.Clamp(elapsed.Seconds()/total.Seconds(), 0, 1)
}

// EqualPower returns the outgoing and incoming gains for progress p under a
// quarter-turn cosine/sine curve scaled to target. out²+in² == target².
func EqualPower(p, target float64) (out, in float64) {
	p = lo.Clamp(p, 0, 1)
	angle := p * math.Pi / 2
	return target * math.Cos(angle), target * math.Sin(angle)
}
