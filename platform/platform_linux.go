//go:build linux

package platform

import "golang.org/x/sys/unix"

// monotonicTimeNS reads CLOCK_MONOTONIC directly via golang.org/x/sys/unix
// rather than going through time.Now() and its wall-clock-adjustment
// semantics.
func monotonicTimeNS() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return uint64(ts.Sec)*1e9 + uint64(ts.Nsec)
}
