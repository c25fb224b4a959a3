package frame

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLayoutPlanar(t *testing.T) {
	p := Layout(FormatYUV420P, 640, 480)
	require.Equal(t, 0, p[0].Offset)
	require.Equal(t, 640, p[0].Stride)
	require.Equal(t, 320, p[1].Stride)
	require.Equal(t, 320, p[2].Stride)
	require.Equal(t, 640*480, p[1].Offset)
	require.Equal(t, 640*480+320*240, p[2].Offset)
	require.Equal(t, 384000, p[2].Offset)

	// width not aligned to 16
	p = Layout(FormatYV12, 170, 100)
	require.Equal(t, 176, p[0].Stride)
	require.Equal(t, 96, p[1].Stride)
	require.Equal(t, 17600, p[1].Offset)
	require.Equal(t, 17600+170*100/4, p[2].Offset)
	require.Zero(t, p[1].Offset%16)
}

func TestLayoutPlanarVOffset(t *testing.T) {
	// chroma stride is padded, the V plane offset is not
	for _, test := range []struct {
		width, height int
		stride, v     int
	}{
		{640, 480, 320, 384000},
		{720, 480, 368, 432000},
		{720, 576, 368, 518400},
		{176, 144, 96, 31680},
		{320, 240, 160, 96000},
	} {
		p := Layout(FormatYUV420P, test.width, test.height)
		require.Equal(t, test.stride, p[1].Stride, "%dx%d", test.width, test.height)
		require.Equal(t, test.width*test.height, p[1].Offset, "%dx%d", test.width, test.height)
		require.Equal(t, test.v, p[2].Offset, "%dx%d", test.width, test.height)

		size := FrameSize(FormatYUV420P, test.width, test.height)
		require.Equal(t, test.v+test.stride*test.height/2, size, "%dx%d", test.width, test.height)
	}
}

func TestLayoutTiled(t *testing.T) {
	p := Layout(FormatYUV420B, 640, 480)
	require.Equal(t, 640*16, p[0].Stride)
	require.Equal(t, 640*8, p[1].Stride)
	require.Equal(t, 640*480*3/2, p[1].Offset)
	require.Equal(t, p[1], p[2])
}

func TestLayoutPacked(t *testing.T) {
	p := Layout(FormatYUV422I, 640, 480)
	require.Equal(t, 1280, p[0].Stride)
	require.Equal(t, p[0], p[1])
	require.Equal(t, p[0], p[2])

	p = Layout(FormatRGBA8888, 10, 10)
	require.Equal(t, 40, p[0].Stride)
}

func TestFrameSize(t *testing.T) {
	require.Equal(t, 640*480*3/2, FrameSize(FormatYUV420P, 640, 480))
	require.Equal(t, 640*480*2, FrameSize(FormatYUV422I, 640, 480))
	require.Equal(t, 640*480*3/2, FrameSize(FormatYUV420SP, 640, 480))
	require.Equal(t, 320*240*2, FrameSize(FormatRGB565, 320, 240))
}

func TestDescriptor(t *testing.T) {
	data := make([]byte, FrameSize(FormatYUV420P, 64, 32))
	d := NewDescriptor(2, 64, 32, FormatYUV420P, data, 0x1000_0000)
	require.Equal(t, 2, d.Index)
	require.Equal(t, uint64(0x1000_0000), d.Phys())
	require.Equal(t, uint64(0x1000_0000+64*32), d.Planes[1].Phys)
	require.Equal(t, d.Addr()+uintptr(64*32), d.Planes[1].Addr)
	require.Len(t, d.Plane(1), len(data)-64*32)

	d = NewDescriptor(0, 64, 32, FormatYUV420P, data, 0)
	require.Zero(t, d.Planes[2].Phys)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("yuv420p")
	require.Nil(t, err)
	require.Equal(t, FormatYUV420P, f)

	f, err = ParseFormat("YUYV")
	require.Nil(t, err)
	require.Equal(t, FormatYUV422I, f)

	_, err = ParseFormat("h264")
	require.ErrorIs(t, err, ErrUnknownFormat)

	var g Format
	require.Nil(t, g.UnmarshalText([]byte("nv21")))
	require.Equal(t, "yuv420sp", g.String())
}
