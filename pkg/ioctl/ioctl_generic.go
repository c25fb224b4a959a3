//go:build !mips && !mipsle && !mips64 && !mips64le

package ioctl

const (
	none  = 0
	write = 1
	read  = 2

	sizeShift = 16
	sizeMask  = 1<<14 - 1
	dirShift  = 30
)
