package v4l2

import (
	"testing"
	"time"

	"github.com/BAT6188/libcamera2/pkg/backend"
	"github.com/BAT6188/libcamera2/pkg/frame"
	"github.com/BAT6188/libcamera2/pkg/pool"
	"github.com/BAT6188/libcamera2/pkg/v4l2/device"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type fakeDevice struct {
	caps     uint32
	sizes    [][2]uint32
	rates    map[[2]uint32][]uint32
	accept   map[uint32]bool
	pix      device.PixFormat
	bufs     [][]byte
	queued   []int
	stream   bool
	controls map[uint32]int32
	ctrlErr  error
	dqErr    error
	requests []int
	unmaps   int
	closed   bool
}

func newFake() *fakeDevice {
	return &fakeDevice{
		caps:  device.V4L2_CAP_VIDEO_CAPTURE | device.V4L2_CAP_STREAMING,
		sizes: [][2]uint32{{640, 480}, {1280, 720}, {320, 240}},
		rates: map[[2]uint32][]uint32{
			{640, 480}:  {30, 15},
			{320, 240}:  {15, 30},
			{1280, 720}: {10},
		},
		accept:   map[uint32]bool{device.V4L2_PIX_FMT_UYVY: true},
		controls: map[uint32]int32{},
	}
}

func (f *fakeDevice) Capability() (*device.Capability, error) {
	return &device.Capability{Card: "fake cam", Capabilities: f.caps}, nil
}

func (f *fakeDevice) ResetCrop() error {
	return unix.EINVAL
}

func (f *fakeDevice) ListFormats() ([]uint32, error) {
	return []uint32{device.V4L2_PIX_FMT_UYVY}, nil
}

func (f *fakeDevice) ListSizes(uint32) ([][2]uint32, error) {
	return f.sizes, nil
}

func (f *fakeDevice) ListFrameRates(_, width, height uint32) ([]uint32, error) {
	return f.rates[[2]uint32{width, height}], nil
}

func (f *fakeDevice) TryFormat(width, height int, pixFmt uint32) (device.PixFormat, error) {
	if !f.accept[pixFmt] {
		return device.PixFormat{}, unix.EINVAL
	}
	return device.PixFormat{
		Width: width, Height: height, PixelFormat: pixFmt, BytesPerLine: width * 2, SizeImage: width * height * 2,
	}, nil
}

func (f *fakeDevice) SetFormat(width, height int, pixFmt uint32) (device.PixFormat, error) {
	pix, err := f.TryFormat(width, height, pixFmt)
	if err == nil {
		f.pix = pix
	}
	return pix, err
}

func (f *fakeDevice) SetFrameRate(uint32) error {
	return nil
}

func (f *fakeDevice) SetControl(id uint32, value int32) error {
	if f.ctrlErr != nil {
		return f.ctrlErr
	}
	f.controls[id] = value
	return nil
}

func (f *fakeDevice) RequestBuffers(n int) (int, error) {
	f.requests = append(f.requests, n)
	f.bufs = make([][]byte, n)
	for i := range f.bufs {
		f.bufs[i] = make([]byte, f.pix.SizeImage)
	}
	return n, nil
}

func (f *fakeDevice) MapBuffer(i int) ([]byte, error) {
	return f.bufs[i], nil
}

func (f *fakeDevice) UnmapBuffers() error {
	f.unmaps++
	return nil
}

func (f *fakeDevice) Queue(i int) error {
	f.queued = append(f.queued, i)
	return nil
}

func (f *fakeDevice) Dequeue() (int, int, error) {
	if f.dqErr != nil {
		return 0, 0, f.dqErr
	}
	if !f.stream || len(f.queued) == 0 {
		return 0, 0, unix.EAGAIN
	}
	i := f.queued[0]
	f.queued = f.queued[1:]

	// UYVY pattern
	b := f.bufs[i]
	for j := 0; j+3 < len(b); j += 4 {
		b[j], b[j+1], b[j+2], b[j+3] = 1, 2, 3, 4
	}
	return i, len(b), nil
}

func (f *fakeDevice) StreamOn() error {
	f.stream = true
	return nil
}

func (f *fakeDevice) StreamOff() error {
	f.stream = false
	f.queued = nil
	return nil
}

func (f *fakeDevice) Close() error {
	f.closed = true
	return nil
}

func newBackend(dev *fakeDevice) *Backend {
	return New(Config{}, WithDevice(func(string) (Device, error) {
		return dev, nil
	}))
}

func TestConnect(t *testing.T) {
	dev := newFake()
	dev.caps = device.V4L2_CAP_VIDEO_CAPTURE

	b := newBackend(dev)
	err := b.Connect(0)
	require.ErrorIs(t, err, backend.ErrDeviceUnavailable)
	require.True(t, dev.closed)
	require.Equal(t, backend.StateUninitialized, b.State())

	dev = newFake()
	b = newBackend(dev)
	require.Nil(t, b.Connect(0))
	require.Equal(t, backend.StateConnected, b.State())
	require.Nil(t, b.Connect(0))
	require.ErrorIs(t, b.Connect(1), backend.ErrBusy)

	require.Equal(t, []FrameMode{
		{320, 240, 30}, {320, 240, 15}, {640, 480, 30}, {640, 480, 15}, {1280, 720, 10},
	}, b.Modes())

	preview, picture := b.BestModes()
	require.Equal(t, FrameMode{640, 480, 30}, preview)
	require.Equal(t, FrameMode{1280, 720, 10}, picture)
	require.Equal(t, time.Second/30, b.FrameInterval())

	info, err := b.SensorInfo()
	require.Nil(t, err)
	require.Equal(t, "fake cam", info.Name)
	require.Equal(t, backend.FacingBack, info.Facing)
	require.Equal(t, []frame.Size{{Width: 320, Height: 240}, {Width: 640, Height: 480}, {Width: 1280, Height: 720}}, info.PreviewSizes)

	n, err := b.SensorCount()
	require.Nil(t, err)
	require.Equal(t, 1, n)
}

func TestDefaultSizes(t *testing.T) {
	dev := newFake()
	dev.sizes = nil

	b := newBackend(dev)
	require.Nil(t, b.Connect(0))

	modes := b.Modes()
	require.Len(t, modes, len(defaultSizes))
	require.Equal(t, FrameMode{176, 144, 25}, modes[0])
	require.Equal(t, FrameMode{1280, 720, 25}, modes[len(modes)-1])
	require.Equal(t, time.Second/25, b.FrameInterval())
}

func TestAllocate(t *testing.T) {
	dev := newFake()
	b := newBackend(dev)
	require.Nil(t, b.Connect(0))

	_, err := b.AllocateStream(frame.KindPreview, 640, 480, frame.FormatYUV420P)
	require.ErrorIs(t, err, backend.ErrUnsupported)

	_, err = b.AllocateStream(frame.KindPreview, 1920, 1080, frame.FormatYUV422I)
	require.ErrorIs(t, err, backend.ErrUnsupported)

	alloc, err := b.AllocateStream(frame.KindPreview, 640, 480, frame.FormatYUV422I)
	require.Nil(t, err)
	require.False(t, alloc.Reused)
	require.Equal(t, PreviewSlots, alloc.Stream.SlotCount)
	require.Equal(t, 640*480*2, alloc.Stream.SlotSize)
	require.Equal(t, device.V4L2_PIX_FMT_UYVY, b.Source().PixelFormat)
	require.Equal(t, []int{RingBuffers}, dev.requests)
	require.Equal(t, []int{0, 1, 2, 3}, dev.queued)

	alloc, err = b.AllocateStream(frame.KindPreview, 640, 480, frame.FormatYUV422I)
	require.Nil(t, err)
	require.True(t, alloc.Reused)
	require.Equal(t, []int{RingBuffers}, dev.requests)

	// cropped output from the next larger mode
	alloc, err = b.AllocateStream(frame.KindPreview, 600, 400, frame.FormatYUV422I)
	require.Nil(t, err)
	require.False(t, alloc.Reused)
	require.Equal(t, 640, b.Source().Width)
	require.Equal(t, []int{RingBuffers, 0, RingBuffers}, dev.requests)
}

type failAlloc struct{}

func (failAlloc) Alloc(int) (*pool.Region, error) {
	return nil, unix.ENOMEM
}

func TestAllocateFailure(t *testing.T) {
	dev := newFake()
	b := New(Config{}, WithMemory(failAlloc{}, nil), WithDevice(func(string) (Device, error) {
		return dev, nil
	}))
	require.Nil(t, b.Connect(0))

	_, err := b.AllocateStream(frame.KindPreview, 640, 480, frame.FormatYUV422I)
	require.ErrorIs(t, err, backend.ErrAllocation)
	require.ErrorIs(t, err, unix.ENOMEM)

	// kernel ring released, nothing left queued
	require.Equal(t, []int{RingBuffers, 0}, dev.requests)
	require.Equal(t, 1, dev.unmaps)
	require.Nil(t, b.ring)
	require.Nil(t, b.pools[frame.KindPreview])

	_, err = b.CurrentFrame(false)
	require.ErrorIs(t, err, backend.ErrDeviceUnavailable)

	require.Nil(t, b.FreeStream(frame.KindPreview))
	require.Equal(t, 1, dev.unmaps)
}

func TestCurrentFrame(t *testing.T) {
	dev := newFake()
	b := newBackend(dev)
	require.Nil(t, b.Connect(0))

	_, err := b.CurrentFrame(false)
	require.ErrorIs(t, err, backend.ErrDeviceUnavailable)

	_, err = b.AllocateStream(frame.KindPreview, 320, 240, frame.FormatYUV422I)
	require.Nil(t, err)

	_, err = b.CurrentFrame(false)
	require.ErrorIs(t, err, backend.ErrFrameUnavailable)

	require.Nil(t, b.StartStreaming())
	require.Equal(t, backend.StateStarted, b.State())

	for i := 0; i < PreviewSlots+1; i++ {
		d, err := b.CurrentFrame(false)
		require.Nil(t, err)
		require.Equal(t, i%PreviewSlots, d.Index)
		require.Equal(t, frame.FormatYUV422I, d.Format)
		require.Equal(t, []byte{2, 1, 4, 3}, d.Data[:4])
		require.Len(t, dev.queued, RingBuffers)
	}

	// a capture frame needs the ring negotiated for capture
	_, err = b.CurrentFrame(true)
	require.ErrorIs(t, err, backend.ErrFrameUnavailable)
	require.Len(t, dev.queued, RingBuffers)

	dev.dqErr = unix.EIO
	_, err = b.CurrentFrame(false)
	require.ErrorIs(t, err, backend.ErrHardwareControl)
	require.ErrorIs(t, err, unix.EIO)
}

func TestFreeStream(t *testing.T) {
	dev := newFake()
	b := newBackend(dev)
	require.Nil(t, b.Connect(0))

	_, err := b.AllocateStream(frame.KindPreview, 640, 480, frame.FormatYUV422I)
	require.Nil(t, err)
	require.Nil(t, b.StartStreaming())

	require.Nil(t, b.FreeStream(frame.KindPreview))
	require.False(t, dev.stream)
	require.Equal(t, backend.StateStopped, b.State())
	require.Equal(t, 1, dev.unmaps)
	require.Equal(t, []int{RingBuffers, 0}, dev.requests)

	require.Nil(t, b.FreeStream(frame.KindPreview))
	require.Equal(t, 1, dev.unmaps)
}

func TestTakePicture(t *testing.T) {
	dev := newFake()
	b := newBackend(dev)
	require.Nil(t, b.Connect(0))

	err := b.SendCommand(backend.TakePicture{Width: 1280, Height: 720})
	require.ErrorIs(t, err, backend.ErrHardwareControl)

	require.Nil(t, b.SetParam(backend.CaptureResolution{Width: 1280, Height: 720, Format: frame.FormatYUV422I}))
	require.ErrorIs(t, b.SetParam(backend.CaptureResolution{Width: 4000, Height: 3000}), backend.ErrUnsupported)

	_, err = b.AllocateStream(frame.KindCapture, 1280, 720, frame.FormatYUV422I)
	require.Nil(t, err)
	require.Nil(t, b.SendCommand(backend.TakePicture{Width: 1280, Height: 720}))
	require.Equal(t, backend.StateStarted, b.State())

	d, err := b.CurrentFrame(true)
	require.Nil(t, err)
	require.Equal(t, 0, d.Index)
	require.Equal(t, 1280, d.Width)

	require.Nil(t, b.SendCommand(backend.StopPicture{}))
	require.Nil(t, b.FreeStream(frame.KindCapture))
	require.Equal(t, backend.StateStopped, b.State())

	require.Nil(t, b.Disconnect())
	require.Equal(t, backend.StateUninitialized, b.State())
	require.True(t, dev.closed)
}

func TestSetMode(t *testing.T) {
	dev := newFake()
	b := newBackend(dev)

	require.ErrorIs(t, b.SetMode(backend.ModeEffect, 1), backend.ErrDeviceUnavailable)
	require.Nil(t, b.Connect(0))

	require.Nil(t, b.SetMode(backend.ModeWhiteBalance, 0))
	require.Equal(t, int32(1), dev.controls[device.V4L2_CID_AUTO_WHITE_BALANCE])

	require.Nil(t, b.SetMode(backend.ModeWhiteBalance, 5000))
	require.Equal(t, int32(5000), dev.controls[device.V4L2_CID_WHITE_BALANCE_TEMP])

	require.Nil(t, b.SetMode(backend.ModeAntibanding, 1))
	require.Equal(t, int32(1), dev.controls[device.V4L2_CID_POWER_LINE_FREQUENCY])

	dev.ctrlErr = unix.EINVAL
	require.ErrorIs(t, b.SetMode(backend.ModeScene, 2), backend.ErrUnsupported)
}
