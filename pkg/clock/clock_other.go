//go:build !linux

package clock

import "time"

// On platforms without CLOCK_MONOTONIC_RAW/COARSE this falls back to the
// runtime's own monotonic reading via time.Now(), which on every Go-supported
// platform already carries a monotonic component distinct from the wall
// clock (see DESIGN.md for why this backend stays on the standard library).
var processStart = time.Now()

func monotonicRawNow() timespec {
	return durationToTimespec(time.Since(processStart))
}

func monotonicNow() timespec {
	return durationToTimespec(time.Since(processStart))
}

func monotonicCoarseNow() timespec {
	return durationToTimespec(time.Since(processStart))
}

func durationToTimespec(d time.Duration) timespec {
	return timespec{sec: int64(d / time.Second), nsec: int64(d % time.Second)}
}
