package convert

import (
	"fmt"

	"github.com/BAT6188/libcamera2/pkg/v4l2/device"
)

// Normalize turns a raw streaming buffer into packed YUYV with stride
// width*2. srcStride is the luma line length reported by the driver.
func Normalize(dst, src []byte, fourcc uint32, width, height, srcStride int) error {
	if n := width * height * 2; len(dst) < n {
		return fmt.Errorf("convert: short dst %d < %d", len(dst), n)
	}

	switch fourcc {
	case device.V4L2_PIX_FMT_YUYV, device.V4L2_PIX_FMT_UYVY, device.V4L2_PIX_FMT_YVYU:
		if srcStride == 0 {
			srcStride = width * 2
		}
		if len(src) < srcStride*(height-1)+width*2 {
			return fmt.Errorf("convert: short src %d", len(src))
		}
		for y := 0; y < height; y++ {
			s := src[y*srcStride : y*srcStride+width*2]
			d := dst[y*width*2:]
			switch fourcc {
			case device.V4L2_PIX_FMT_YUYV:
				copy(d, s)
			case device.V4L2_PIX_FMT_UYVY:
				for i := 0; i+3 < len(s); i += 4 {
					d[i], d[i+1], d[i+2], d[i+3] = s[i+1], s[i], s[i+3], s[i+2]
				}
			default:
				for i := 0; i+3 < len(s); i += 4 {
					d[i], d[i+1], d[i+2], d[i+3] = s[i], s[i+3], s[i+2], s[i+1]
				}
			}
		}
		return nil
	}

	if srcStride == 0 {
		srcStride = width
	}

	// the chroma planes follow luma without padding
	luma := srcStride * height
	var need int
	var at func(x, y int) (u, v byte)

	switch fourcc {
	case device.V4L2_PIX_FMT_NV12, device.V4L2_PIX_FMT_NV21:
		need = luma + srcStride*(height/2)
		vu := fourcc == device.V4L2_PIX_FMT_NV21
		at = func(x, y int) (byte, byte) {
			i := luma + y/2*srcStride + x&^1
			if vu {
				return src[i+1], src[i]
			}
			return src[i], src[i+1]
		}
	case device.V4L2_PIX_FMT_YUV420, device.V4L2_PIX_FMT_YVU420:
		cs := srcStride / 2
		first, second := luma, luma+cs*(height/2)
		need = second + cs*(height/2)
		if fourcc == device.V4L2_PIX_FMT_YVU420 {
			first, second = second, first
		}
		at = func(x, y int) (byte, byte) {
			i := y/2*cs + x/2
			return src[first+i], src[second+i]
		}
	case device.V4L2_PIX_FMT_GREY:
		need = luma
		at = func(x, y int) (byte, byte) {
			return 0x80, 0x80
		}
	default:
		return fmt.Errorf("%w: fourcc %s", ErrUnsupported, device.FourCCString(fourcc))
	}

	if len(src) < need {
		return fmt.Errorf("convert: short src %d < %d", len(src), need)
	}

	for y := 0; y < height; y++ {
		d := dst[y*width*2:]
		for x := 0; x+1 < width; x += 2 {
			u, v := at(x, y)
			d[x*2] = src[y*srcStride+x]
			d[x*2+1] = u
			d[x*2+2] = src[y*srcStride+x+1]
			d[x*2+3] = v
		}
	}
	return nil
}
