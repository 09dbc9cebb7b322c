package utils

import (
	"math/rand"
	"time"
)

// RandomStagger returns a duration picked uniformly from [0, intv).
// A zero interval yields zero, so callers can pass through disabled timers.
func RandomStagger(intv time.Duration) time.Duration {
	if intv == 0 {
		return 0
	}
	return time.Duration(uint64(rand.Int63()) % uint64(intv))
}

// RandomStaggerQuarter returns a duration between 3/4 and 5/4 of the given
// interval. The expected value is the interval itself, which keeps periodic
// tasks from synchronizing across a fleet while preserving their average
// cadence.
func RandomStaggerQuarter(interval time.Duration) time.Duration {
	stagger := time.Duration(rand.Int63()) % (interval / 2)
	return 3*(interval/4) + stagger
}
