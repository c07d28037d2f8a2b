// +build unix !windows

package osutil

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const meRlimit = "osutil"

// RaiseFileLimit raises the process's open-file soft limit to want, capped at whatever the hard
// limit allows. The sweep engine opens one socket per in-flight probe, so a default 1024 limit is
// exhausted almost immediately at the worker-pool sizes full and mega mode ask for.
func RaiseFileLimit(want uint64) (uint64, error) {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return 0, fmt.Errorf("%s:RaiseFileLimit: getrlimit: %w", meRlimit, err)
	}

	if rl.Cur >= want {
		return rl.Cur, nil
	}

	newCur := want
	if rl.Max != unix.RLIM_INFINITY && newCur > rl.Max {
		newCur = rl.Max
	}

	rl.Cur = newCur
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return 0, fmt.Errorf("%s:RaiseFileLimit: setrlimit to %d: %w", meRlimit, newCur, err)
	}

	return newCur, nil
}
