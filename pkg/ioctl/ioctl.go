package ioctl

import (
	"bytes"
)

// Str returns the NUL terminated string stored in a fixed size ioctl field.
func Str(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// io builds a request number the same way as the kernel _IOC macro
func io(dir uint, type_ byte, number byte, size uintptr) uint {
	return dir<<dirShift | uint(size)&sizeMask<<sizeShift | uint(type_)<<8 | uint(number)
}

func IO(type_ byte, number byte) uint {
	return io(none, type_, number, 0)
}

func IOR(type_ byte, number byte, size uintptr) uint {
	return io(read, type_, number, size)
}

func IOW(type_ byte, number byte, size uintptr) uint {
	return io(write, type_, number, size)
}

func IOWR(type_ byte, number byte, size uintptr) uint {
	return io(read|write, type_, number, size)
}
