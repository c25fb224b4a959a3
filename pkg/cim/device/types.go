package device

import (
	"github.com/BAT6188/libcamera2/pkg/frame"
)

// SensorInfo is the decoded CIMIO_GET_SENSORINFO answer.
type SensorInfo struct {
	ID          int
	Name        string
	Facing      int
	Orientation int
	PreviewNr   int
	CaptureNr   int
	Modes       ModeMasks
}

type ModeMasks struct {
	Balance, Effect, Antibanding, Flash, Scene, Focus, FPS uint16
}

// Meta describes one slot to the driver.
type Meta struct {
	Index                     int
	Width, Height             int
	YPhys, UPhys, VPhys       uint64
	YAddr, UAddr, VAddr       uintptr
	YStride, UStride, VStride int
	Count                     int
	Format                    uint32
}

// MetaFromFrame converts a slot template into the driver description.
func MetaFromFrame(d frame.Descriptor, count int, format uint32) Meta {
	return Meta{
		Index:   d.Index,
		Width:   d.Width,
		Height:  d.Height,
		YPhys:   d.Planes[0].Phys,
		UPhys:   d.Planes[1].Phys,
		VPhys:   d.Planes[2].Phys,
		YAddr:   d.Planes[0].Addr,
		UAddr:   d.Planes[1].Addr,
		VAddr:   d.Planes[2].Addr,
		YStride: d.Planes[0].Stride,
		UStride: d.Planes[1].Stride,
		VStride: d.Planes[2].Stride,
		Count:   count,
		Format:  format,
	}
}

// HALFormat maps a host format to the driver constant.
func HALFormat(f frame.Format) uint32 {
	switch f {
	case frame.FormatYUV422SP:
		return HAL_PIXEL_FORMAT_YCbCr_422_SP
	case frame.FormatYUV420SP:
		return HAL_PIXEL_FORMAT_YCrCb_420_SP
	case frame.FormatYV12:
		return HAL_PIXEL_FORMAT_YV12
	case frame.FormatRGB565:
		return HAL_PIXEL_FORMAT_RGB_565
	case frame.FormatYUV420P:
		return HAL_PIXEL_FORMAT_JZ_YUV_420_P
	case frame.FormatYUV420B:
		return HAL_PIXEL_FORMAT_JZ_YUV_420_B
	}
	return HAL_PIXEL_FORMAT_YCbCr_422_I
}
