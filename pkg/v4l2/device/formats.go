package device

func fourcc(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

var (
	V4L2_PIX_FMT_YUYV   = fourcc('Y', 'U', 'Y', 'V')
	V4L2_PIX_FMT_UYVY   = fourcc('U', 'Y', 'V', 'Y')
	V4L2_PIX_FMT_YVYU   = fourcc('Y', 'V', 'Y', 'U')
	V4L2_PIX_FMT_NV12   = fourcc('N', 'V', '1', '2')
	V4L2_PIX_FMT_NV21   = fourcc('N', 'V', '2', '1')
	V4L2_PIX_FMT_YUV420 = fourcc('Y', 'U', '1', '2')
	V4L2_PIX_FMT_YVU420 = fourcc('Y', 'V', '1', '2')
	V4L2_PIX_FMT_GREY   = fourcc('G', 'R', 'E', 'Y')
	V4L2_PIX_FMT_MJPEG  = fourcc('M', 'J', 'P', 'G')
)

type Format struct {
	FourCC uint32
	Name   string
}

// Formats lists sources the backend can normalize, in preference order.
var Formats = []Format{
	{V4L2_PIX_FMT_YUYV, "YUV 4:2:2 (YUYV)"},
	{V4L2_PIX_FMT_UYVY, "YUV 4:2:2 (UYVY)"},
	{V4L2_PIX_FMT_YVYU, "YUV 4:2:2 (YVYU)"},
	{V4L2_PIX_FMT_NV12, "Y/CbCr 4:2:0"},
	{V4L2_PIX_FMT_NV21, "Y/CrCb 4:2:0"},
	{V4L2_PIX_FMT_YUV420, "Planar YUV 4:2:0"},
	{V4L2_PIX_FMT_YVU420, "Planar YVU 4:2:0"},
	{V4L2_PIX_FMT_GREY, "8-bit Greyscale"},
}

func FourCCString(v uint32) string {
	return string([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}
