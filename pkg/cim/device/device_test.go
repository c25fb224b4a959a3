package device

import (
	"runtime"
	"testing"
	"unsafe"

	"github.com/BAT6188/libcamera2/pkg/frame"
	"github.com/stretchr/testify/require"
)

func TestSize(t *testing.T) {
	require.Equal(t, 56, int(unsafe.Sizeof(camera_yuv_meta{})))
	require.Equal(t, 8, int(unsafe.Sizeof(frm_size{})))
	require.Equal(t, 68, int(unsafe.Sizeof(sensor_info{})))

	switch runtime.GOARCH {
	case "amd64", "arm64":
		require.Equal(t, 40, int(unsafe.Sizeof(dmmu_mem_info{})))
		require.Equal(t, 16, int(unsafe.Sizeof(pmem_region{})))
	case "386", "arm", "mips", "mipsle":
		require.Equal(t, 28, int(unsafe.Sizeof(dmmu_mem_info{})))
		require.Equal(t, 8, int(unsafe.Sizeof(pmem_region{})))
	}
}

func TestMetaFromFrame(t *testing.T) {
	data := make([]byte, 640*480*2)
	d := frame.NewDescriptor(1, 640, 480, frame.FormatYUV420P, data, 0x0800_0000)
	m := MetaFromFrame(d, 4, HALFormat(frame.FormatYUV420P))
	require.Equal(t, 1, m.Index)
	require.Equal(t, uint64(0x0800_0000), m.YPhys)
	require.Equal(t, uint64(0x0800_0000+640*480), m.UPhys)
	require.Equal(t, 640, m.YStride)
	require.Equal(t, 320, m.UStride)
	require.Equal(t, uint32(HAL_PIXEL_FORMAT_JZ_YUV_420_P), m.Format)

	// padded chroma stride, V right after a packed U plane
	d = frame.NewDescriptor(0, 720, 480, frame.FormatYUV420P, make([]byte, 720*480*2), 0x0800_0000)
	m = MetaFromFrame(d, 4, HALFormat(frame.FormatYUV420P))
	require.Equal(t, 368, m.UStride)
	require.Equal(t, uint64(0x0800_0000+720*480), m.UPhys)
	require.Equal(t, uint64(0x0800_0000+720*480+720*480/4), m.VPhys)
	require.Equal(t, d.Addr()+uintptr(720*480*5/4), m.VAddr)
}

func TestHALFormat(t *testing.T) {
	require.Equal(t, uint32(HAL_PIXEL_FORMAT_YCbCr_422_I), HALFormat(frame.FormatYUV422I))
	require.Equal(t, uint32(HAL_PIXEL_FORMAT_JZ_YUV_420_B), HALFormat(frame.FormatYUV420B))
	require.Equal(t, uint32(HAL_PIXEL_FORMAT_YCbCr_422_I), HALFormat(frame.FormatRGB888))
}
