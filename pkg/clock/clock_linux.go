//go:build linux

package clock

import "golang.org/x/sys/unix"

func getTime(clockID int32) timespec {
	var ts unix.Timespec
	if err := unix.ClockGettime(clockID, &ts); err != nil {
		panic("clock: failed to read clock " + err.Error())
	}
	return timespec{sec: int64(ts.Sec), nsec: int64(ts.Nsec)}
}

func monotonicRawNow() timespec {
	return getTime(unix.CLOCK_MONOTONIC_RAW)
}

func monotonicNow() timespec {
	return getTime(unix.CLOCK_MONOTONIC)
}

func monotonicCoarseNow() timespec {
	return getTime(unix.CLOCK_MONOTONIC_COARSE)
}
