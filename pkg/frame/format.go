package frame

import (
	"errors"
	"strings"
)

// Format is a host side pixel format tag.
type Format byte

const (
	FormatUnknown Format = iota
	FormatYUV422I        // packed YUYV
	FormatYUV422SP
	FormatYUV420SP // NV21
	FormatYV12
	FormatYUV420P // hardware planar 4:2:0
	FormatYUV420B // hardware tiled 4:2:0
	FormatRGB565
	FormatRGB888
	FormatRGBA8888
)

var formatNames = map[Format]string{
	FormatYUV422I:  "yuv422i",
	FormatYUV422SP: "yuv422sp",
	FormatYUV420SP: "yuv420sp",
	FormatYV12:     "yv12",
	FormatYUV420P:  "yuv420p",
	FormatYUV420B:  "yuv420b",
	FormatRGB565:   "rgb565",
	FormatRGB888:   "rgb888",
	FormatRGBA8888: "rgba8888",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return "unknown"
}

func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Format) UnmarshalText(text []byte) (err error) {
	*f, err = ParseFormat(string(text))
	return
}

var ErrUnknownFormat = errors.New("frame: unknown format")

// ParseFormat accepts both the short names and the common aliases
// used by host parameter strings (yuv422i-yuyv, yuv420sp, ...).
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(s)
	switch s {
	case "yuyv", "yuv422i-yuyv", "yuv422":
		return FormatYUV422I, nil
	case "nv21":
		return FormatYUV420SP, nil
	case "nv16":
		return FormatYUV422SP, nil
	case "rgb":
		return FormatRGB565, nil
	case "rgba":
		return FormatRGBA8888, nil
	}
	for f, name := range formatNames {
		if name == s {
			return f, nil
		}
	}
	return FormatUnknown, ErrUnknownFormat
}

// BytesPerPixel for packed formats, zero for planar ones.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatYUV422I, FormatRGB565:
		return 2
	case FormatRGB888:
		return 3
	case FormatRGBA8888:
		return 4
	}
	return 0
}

func (f Format) Packed() bool {
	return f.BytesPerPixel() != 0
}

func (f Format) Planar420() bool {
	return f == FormatYUV420P || f == FormatYV12
}

func (f Format) SemiPlanar() bool {
	return f == FormatYUV420SP || f == FormatYUV422SP
}
