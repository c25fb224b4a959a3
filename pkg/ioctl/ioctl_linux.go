package ioctl

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func Ioctl(fd int, req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// IoctlValue passes arg by value and returns the syscall result, for drivers
// that answer with a plain integer (frame address, sensor count).
func IoctlValue(fd int, req uint, arg uintptr) (uintptr, error) {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), arg)
	if errno != 0 {
		return 0, errno
	}
	return r, nil
}
