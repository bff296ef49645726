//go:build darwin || freebsd || openbsd || netbsd || dragonfly

package memdiag

import "golang.org/x/sys/unix"

// sysctlNames lists the physical memory keys tried in order.
var sysctlNames = []string{"hw.memsize", "hw.physmem", "hw.realmem"}

func physicalMemory() (uint64, bool) {
	for _, name := range sysctlNames {
		if n, err := unix.SysctlUint64(name); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}
