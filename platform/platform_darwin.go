//go:build darwin

package platform

import "golang.org/x/sys/unix"

// monotonicTimeNS reads CLOCK_MONOTONIC_RAW via golang.org/x/sys/unix,
// unaffected by NTP slewing, matching the guarantee Linux gets from
// CLOCK_MONOTONIC in platform_linux.go.
func monotonicTimeNS() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts); err != nil {
		return 0
	}
	return uint64(ts.Sec)*1e9 + uint64(ts.Nsec)
}
