//go:build linux

package sandbox

import "golang.org/x/sys/unix"

// limitProcess caps the address space of a started process.
func limitProcess(pid int, bytes uint64) error {
	if bytes == 0 {
		return nil
	}
	lim := unix.Rlimit{Cur: bytes, Max: bytes}
	return unix.Prlimit(pid, unix.RLIMIT_AS, &lim, nil)
}
