//go:build windows

package memdiag

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

func physicalMemory() (uint64, bool) {
	var st windows.MemoryStatusEx
	st.Length = uint32(unsafe.Sizeof(st))
	if err := windows.GlobalMemoryStatusEx(&st); err != nil {
		return 0, false
	}
	return st.TotalPhys, true
}
