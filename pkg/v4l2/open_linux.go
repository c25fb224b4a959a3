package v4l2

import (
	"github.com/BAT6188/libcamera2/pkg/v4l2/device"
)

func openDevice(path string) (Device, error) {
	return device.Open(path)
}
