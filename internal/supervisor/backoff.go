package supervisor

import (
	"math/rand"
	"time"
)

// computeBackoff computes min(backoff_cap, backoff_base · 2^restarts)
// with ±20% jitter to avoid synchronized retry storms.
func computeBackoff(baseMs, capMs int64, restarts int) time.Duration {
	shift := restarts
	if shift > 32 {
		shift = 32 // guard against overflow for pathological restart counts
	}
	backoff := baseMs << uint(shift)
	if backoff <= 0 || backoff > capMs {
		backoff = capMs
	}
	jitterFrac := (rand.Float64()*0.4 - 0.2) // ±20%
	jittered := float64(backoff) * (1 + jitterFrac)
	if jittered < 0 {
		jittered = 0
	}
	return time.Duration(jittered) * time.Millisecond
}
