package device

import (
	"unsafe"

	"github.com/BAT6188/libcamera2/pkg/ioctl"
)

// https://github.com/torvalds/linux/blob/master/include/uapi/linux/videodev2.h

var (
	VIDIOC_QUERYCAP = ioctl.IOR('V', 0, unsafe.Sizeof(v4l2_capability{}))
	VIDIOC_ENUM_FMT = ioctl.IOWR('V', 2, unsafe.Sizeof(v4l2_fmtdesc{}))
	VIDIOC_G_FMT    = ioctl.IOWR('V', 4, unsafe.Sizeof(v4l2_format{}))
	VIDIOC_S_FMT    = ioctl.IOWR('V', 5, unsafe.Sizeof(v4l2_format{}))
	VIDIOC_REQBUFS  = ioctl.IOWR('V', 8, unsafe.Sizeof(v4l2_requestbuffers{}))
	VIDIOC_QUERYBUF = ioctl.IOWR('V', 9, unsafe.Sizeof(v4l2_buffer{}))

	VIDIOC_QBUF      = ioctl.IOWR('V', 15, unsafe.Sizeof(v4l2_buffer{}))
	VIDIOC_DQBUF     = ioctl.IOWR('V', 17, unsafe.Sizeof(v4l2_buffer{}))
	VIDIOC_STREAMON  = ioctl.IOW('V', 18, unsafe.Sizeof(int32(0)))
	VIDIOC_STREAMOFF = ioctl.IOW('V', 19, unsafe.Sizeof(int32(0)))
	VIDIOC_G_PARM    = ioctl.IOWR('V', 21, unsafe.Sizeof(v4l2_streamparm{}))
	VIDIOC_S_PARM    = ioctl.IOWR('V', 22, unsafe.Sizeof(v4l2_streamparm{}))
	VIDIOC_S_CTRL    = ioctl.IOWR('V', 28, unsafe.Sizeof(v4l2_control{}))
	VIDIOC_CROPCAP   = ioctl.IOWR('V', 58, unsafe.Sizeof(v4l2_cropcap{}))
	VIDIOC_S_CROP    = ioctl.IOW('V', 60, unsafe.Sizeof(v4l2_crop{}))
	VIDIOC_TRY_FMT   = ioctl.IOWR('V', 64, unsafe.Sizeof(v4l2_format{}))

	VIDIOC_ENUM_FRAMESIZES     = ioctl.IOWR('V', 74, unsafe.Sizeof(v4l2_frmsizeenum{}))
	VIDIOC_ENUM_FRAMEINTERVALS = ioctl.IOWR('V', 75, unsafe.Sizeof(v4l2_frmivalenum{}))
)

const (
	V4L2_BUF_TYPE_VIDEO_CAPTURE = 1
	V4L2_CAP_VIDEO_CAPTURE      = 0x00000001
	V4L2_CAP_STREAMING          = 0x04000000
	V4L2_COLORSPACE_DEFAULT     = 0
	V4L2_FIELD_ANY              = 0
	V4L2_FIELD_NONE             = 1
	V4L2_FRMIVAL_TYPE_DISCRETE  = 1
	V4L2_FRMSIZE_TYPE_DISCRETE  = 1
	V4L2_MEMORY_MMAP            = 1
)

const (
	V4L2_CID_BASE                 = 0x00980900
	V4L2_CID_AUTO_WHITE_BALANCE   = V4L2_CID_BASE + 12
	V4L2_CID_WHITE_BALANCE_TEMP   = V4L2_CID_BASE + 26
	V4L2_CID_POWER_LINE_FREQUENCY = V4L2_CID_BASE + 24
	V4L2_CID_COLORFX              = V4L2_CID_BASE + 31
	V4L2_CID_CAMERA_CLASS_BASE    = 0x009a0900
	V4L2_CID_FOCUS_AUTO           = V4L2_CID_CAMERA_CLASS_BASE + 12
	V4L2_CID_SCENE_MODE           = V4L2_CID_CAMERA_CLASS_BASE + 26
	V4L2_CID_FLASH_CLASS_BASE     = 0x009c0900
	V4L2_CID_FLASH_LED_MODE       = V4L2_CID_FLASH_CLASS_BASE + 1
)

type v4l2_capability struct { // size 104
	driver       [16]byte  // offset 0, size 16
	card         [32]byte  // offset 16, size 32
	bus_info     [32]byte  // offset 48, size 32
	version      uint32    // offset 80, size 4
	capabilities uint32    // offset 84, size 4
	device_caps  uint32    // offset 88, size 4
	reserved     [3]uint32 // offset 92, size 12
}

type v4l2_pix_format struct { // size 48
	width        uint32 // offset 0, size 4
	height       uint32 // offset 4, size 4
	pixelformat  uint32 // offset 8, size 4
	field        uint32 // offset 12, size 4
	bytesperline uint32 // offset 16, size 4
	sizeimage    uint32 // offset 20, size 4
	colorspace   uint32 // offset 24, size 4
	priv         uint32 // offset 28, size 4
	flags        uint32 // offset 32, size 4
	ycbcr_enc    uint32 // offset 36, size 4
	quantization uint32 // offset 40, size 4
	xfer_func    uint32 // offset 44, size 4
}

type v4l2_streamparm struct { // size 204
	typ     uint32           // offset 0, size 4
	capture v4l2_captureparm // offset 4, size 40
	_       [160]byte        // filler
}

type v4l2_captureparm struct { // size 40
	capability   uint32     // offset 0, size 4
	capturemode  uint32     // offset 4, size 4
	timeperframe v4l2_fract // offset 8, size 8
	extendedmode uint32     // offset 16, size 4
	readbuffers  uint32     // offset 20, size 4
	reserved     [4]uint32  // offset 24, size 16
}

type v4l2_fract struct { // size 8
	numerator   uint32 // offset 0, size 4
	denominator uint32 // offset 4, size 4
}

type v4l2_requestbuffers struct { // size 20
	count        uint32   // offset 0, size 4
	typ          uint32   // offset 4, size 4
	memory       uint32   // offset 8, size 4
	capabilities uint32   // offset 12, size 4
	flags        uint8    // offset 16, size 1
	reserved     [3]uint8 // offset 17, size 3
}

type v4l2_timecode struct { // size 16
	typ      uint32   // offset 0, size 4
	flags    uint32   // offset 4, size 4
	frames   uint8    // offset 8, size 1
	seconds  uint8    // offset 9, size 1
	minutes  uint8    // offset 10, size 1
	hours    uint8    // offset 11, size 1
	userbits [4]uint8 // offset 12, size 4
}

type v4l2_fmtdesc struct { // size 64
	index       uint32    // offset 0, size 4
	typ         uint32    // offset 4, size 4
	flags       uint32    // offset 8, size 4
	description [32]byte  // offset 12, size 32
	pixelformat uint32    // offset 44, size 4
	mbus_code   uint32    // offset 48, size 4
	reserved    [3]uint32 // offset 52, size 12
}

type v4l2_frmsizeenum struct { // size 44
	index        uint32                // offset 0, size 4
	pixel_format uint32                // offset 4, size 4
	typ          uint32                // offset 8, size 4
	discrete     v4l2_frmsize_discrete // offset 12, size 8
	_            [24]byte              // filler
}

type v4l2_frmsize_discrete struct { // size 8
	width  uint32 // offset 0, size 4
	height uint32 // offset 4, size 4
}

type v4l2_frmivalenum struct { // size 52
	index        uint32     // offset 0, size 4
	pixel_format uint32     // offset 4, size 4
	width        uint32     // offset 8, size 4
	height       uint32     // offset 12, size 4
	typ          uint32     // offset 16, size 4
	discrete     v4l2_fract // offset 20, size 8
	_            [24]byte   // filler
}

type v4l2_rect struct { // size 16
	left   int32  // offset 0, size 4
	top    int32  // offset 4, size 4
	width  uint32 // offset 8, size 4
	height uint32 // offset 12, size 4
}

type v4l2_cropcap struct { // size 44
	typ         uint32     // offset 0, size 4
	bounds      v4l2_rect  // offset 4, size 16
	defrect     v4l2_rect  // offset 20, size 16
	pixelaspect v4l2_fract // offset 36, size 8
}

type v4l2_crop struct { // size 20
	typ uint32    // offset 0, size 4
	c   v4l2_rect // offset 4, size 16
}

type v4l2_control struct { // size 8
	id    uint32 // offset 0, size 4
	value int32  // offset 4, size 4
}
