//go:build mips || mipsle || mips64 || mips64le

package ioctl

const (
	none  = 1
	read  = 2
	write = 4

	sizeShift = 16
	sizeMask  = 1<<13 - 1
	dirShift  = 29
)
