package cim

import (
	"github.com/BAT6188/libcamera2/pkg/cim/device"
	"golang.org/x/sys/unix"
)

func openDevice(path string) (Device, error) {
	return device.Open(path)
}

func openMemory(path string) (Memory, error) {
	if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
		return nil, err
	}
	return &device.Pmem{Path: path}, nil
}

func openMMU(path string) (MMU, error) {
	return device.OpenDMMU(path)
}
