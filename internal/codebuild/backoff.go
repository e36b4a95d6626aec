package codebuild

import (
	"math"
	"time"
)

// backOffDelay returns the delay before retrying after the retry-th consecutive
// throttling error (retry starts at 0): base * 2^retry, capped at ceiling when
// set, then randomized by +/- jitter using rnd in [0,1).
func backOffDelay(base time.Duration, retry int, ceiling time.Duration, jitter float64, rnd func() float64) time.Duration {
	delay := float64(base) * math.Pow(2, float64(retry))

	if ceiling > 0 && delay > float64(ceiling) {
		delay = float64(ceiling)
	}

	if jitter > 0 && rnd != nil {
		delay += delay * jitter * (2*rnd() - 1)
	}

	// float64 overflows long before the retry counter does
	if delay > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}
