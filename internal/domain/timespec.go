package domain

import (
	"math"
	"time"
)

// MinPeriod is the shortest refresh period accepted from configuration.
const MinPeriod = 50 * time.Millisecond

// SecondsToDuration converts configured seconds into a duration rounded up to the
// millisecond, never shorter than MinPeriod.
func SecondsToDuration(secs float64) time.Duration {
	ms := int64(math.Ceil(secs * 1000))
	d := time.Duration(ms) * time.Millisecond
	if d < MinPeriod {
		return MinPeriod
	}
	return d
}

// TickDuration returns the length of one tick at rate ticks per second.
func TickDuration(rate int) time.Duration {
	if rate <= 0 {
		rate = 1
	}
	return time.Second / time.Duration(rate)
}

// TicksCeil converts d into whole ticks of length tick, rounding up, at least 1.
func TicksCeil(d, tick time.Duration) int64 {
	if tick <= 0 {
		return 1
	}
	ticks := int64(math.Ceil(float64(d) / float64(tick)))
	if ticks < 1 {
		return 1
	}
	return ticks
}
