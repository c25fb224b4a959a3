package hal

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BAT6188/libcamera2/pkg/backend"
	"github.com/BAT6188/libcamera2/pkg/frame"
	"github.com/BAT6188/libcamera2/pkg/pool"
	"github.com/stretchr/testify/require"
)

type mockBackend struct {
	backend.Status

	mu       sync.Mutex
	calls    []string
	streams  map[frame.Kind]frame.Stream
	bufs     map[frame.Kind][]byte
	frameErr error
	startErr error
	focusErr error
	delay    time.Duration
}

func newMock() *mockBackend {
	return &mockBackend{
		streams: map[frame.Kind]frame.Stream{},
		bufs:    map[frame.Kind][]byte{},
		delay:   time.Millisecond,
	}
}

func (m *mockBackend) record(call string) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

func (m *mockBackend) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockBackend) setFrameErr(err error) {
	m.mu.Lock()
	m.frameErr = err
	m.mu.Unlock()
}

func (m *mockBackend) Name() string { return "mock" }

func (m *mockBackend) Connect(int) error {
	m.record("connect")
	if m.State() == backend.StateUninitialized {
		m.SetState(backend.StateConnected)
	}
	return nil
}

func (m *mockBackend) Disconnect() error {
	m.record("disconnect")
	m.SetState(backend.StateUninitialized)
	return nil
}

func (m *mockBackend) StartStreaming() error {
	m.record("start")
	if m.startErr != nil {
		return m.startErr
	}
	m.SetState(backend.StateStarted)
	return nil
}

func (m *mockBackend) StopStreaming() error {
	m.record("stop")
	switch m.State() {
	case backend.StateStarted, backend.StateConnected:
		m.SetState(backend.StateStopped)
	}
	return nil
}

func (m *mockBackend) AllocateStream(kind frame.Kind, width, height int, format frame.Format) (backend.Allocation, error) {
	m.record("allocate " + kind.String())

	size := frame.FrameSize(format, width, height)
	s := frame.Stream{Kind: kind, Width: width, Height: height, Format: format, SlotCount: 1, SlotSize: size}

	m.mu.Lock()
	m.streams[kind] = s
	m.bufs[kind] = bytes.Repeat([]byte{0x80}, size)
	m.mu.Unlock()

	return backend.Allocation{Stream: s}, nil
}

func (m *mockBackend) FreeStream(kind frame.Kind) error {
	m.record("free " + kind.String())
	m.mu.Lock()
	delete(m.streams, kind)
	delete(m.bufs, kind)
	m.mu.Unlock()
	return nil
}

func (m *mockBackend) Allocated(kind frame.Kind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.streams[kind]
	return ok
}

func (m *mockBackend) CurrentFrame(capture bool) (frame.Descriptor, error) {
	time.Sleep(m.delay)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !capture && m.frameErr != nil {
		return frame.Descriptor{}, m.frameErr
	}

	kind := frame.KindPreview
	if capture {
		kind = frame.KindCapture
	}
	s, ok := m.streams[kind]
	if !ok {
		return frame.Descriptor{}, backend.ErrFrameUnavailable
	}
	return frame.NewDescriptor(0, s.Width, s.Height, s.Format, m.bufs[kind], 0), nil
}

func (m *mockBackend) SetMode(mode backend.Mode, value int) error {
	m.record("mode " + mode.String())
	return nil
}

func (m *mockBackend) SendCommand(cmd backend.Command) error {
	m.record(backend.CommandName(cmd))
	if _, ok := cmd.(backend.StartFocus); ok {
		return m.focusErr
	}
	return nil
}

func (m *mockBackend) SetParam(backend.Param) error {
	m.record("param")
	return nil
}

func (m *mockBackend) SensorCount() (int, error)                { return 1, nil }
func (m *mockBackend) SensorInfo() (*backend.SensorInfo, error) { return &backend.SensorInfo{}, nil }
func (m *mockBackend) PreviewFormat() frame.Format              { return frame.FormatYUV420P }
func (m *mockBackend) CaptureFormat() frame.Format              { return frame.FormatYUV422I }
func (m *mockBackend) FrameInterval() time.Duration             { return 0 }

type testSurface struct {
	mu       sync.Mutex
	width    int
	height   int
	format   frame.Format
	buf      []byte
	enqueued int
	geometry int
	err      error
}

func (s *testSurface) SetGeometry(width, height int, format frame.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.geometry++
	if s.err != nil {
		return s.err
	}
	s.width, s.height, s.format = width, height, format
	s.buf = make([]byte, frame.FrameSize(format, width, height))
	return nil
}

func (s *testSurface) Lock() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf, nil
}

func (s *testSurface) Enqueue([]byte, time.Time) error {
	s.mu.Lock()
	s.enqueued++
	s.mu.Unlock()
	return nil
}

func (s *testSurface) Cancel([]byte) {}

func (s *testSurface) Enqueued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enqueued
}

type testAlloc struct{}

func (testAlloc) Alloc(size int) (*pool.Region, error) {
	return &pool.Region{Data: make([]byte, size)}, nil
}

func testParams() Parameters {
	p := DefaultParameters()
	p.Preview.FPS = 500
	return p
}

func newTest(m *mockBackend, opts ...Option) *Controller {
	opts = append([]Option{WithParameters(testParams()), WithRecordingAllocator(testAlloc{})}, opts...)
	return New(0, m, opts...)
}

func drain(ch <-chan Event) (events []Event) {
	for {
		select {
		case ev := <-ch:
			events = append(events, ev)
		default:
			return
		}
	}
}

func TestPreviewThenCapture(t *testing.T) {
	m := newMock()
	c := newTest(m)

	var mu sync.Mutex
	var previews int
	var previewFormat frame.Format
	pictures := make(chan []byte, 1)
	var shutter bool

	c.SetListener(&Callbacks{
		PreviewFrame: func(d frame.Descriptor) {
			mu.Lock()
			previews++
			previewFormat = d.Format
			mu.Unlock()
		},
		Shutter: func() { shutter = true },
		Picture: func(b []byte) { pictures <- append([]byte(nil), b...) },
	}, MsgAll)

	s := &testSurface{}
	c.SetSurface(s)

	require.NoError(t, c.StartPreview())
	require.Equal(t, StateRunningPreview, c.State())
	require.Equal(t, backend.StateStarted, m.State())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return previews >= 5
	}, time.Second, time.Millisecond)

	mu.Lock()
	require.Equal(t, frame.FormatYUV420SP, previewFormat)
	mu.Unlock()

	require.Equal(t, 640, s.width)
	require.Equal(t, frame.FormatRGB565, s.format)

	require.NoError(t, c.TakePicture())

	var jpg []byte
	select {
	case jpg = <-pictures:
	case <-time.After(5 * time.Second):
		t.Fatal("no picture")
	}
	c.Wait()

	require.Equal(t, []byte{0xFF, 0xD8}, jpg[:2])
	require.True(t, shutter)
	require.Equal(t, StateIdle, c.State())
	require.Equal(t, backend.StateStopped, m.State())
	require.False(t, m.Allocated(frame.KindPreview))
	require.False(t, m.Allocated(frame.KindCapture))

	calls := m.Calls()
	require.Contains(t, calls, "focus_init")
	require.Contains(t, calls, "take_picture")
	require.Contains(t, calls, "stop_picture")
	require.Contains(t, calls, "free capture")

	require.Equal(t, 1, c.Info().Pictures)
	require.NoError(t, c.Close())
	require.Equal(t, backend.StateUninitialized, m.State())
}

func TestTransitions(t *testing.T) {
	m := newMock()
	c := newTest(m)

	events, cancel := c.Subscribe(64)
	defer cancel()

	require.NoError(t, c.StartPreview())
	require.NoError(t, c.StartPreview()) // already running
	c.StopPreview()
	require.NoError(t, c.TakePicture())
	c.Wait()

	var states []State
	for _, ev := range drain(events) {
		require.True(t, CanTransit(ev.From, ev.To), "%s => %s", ev.From, ev.To)
		states = append(states, ev.To)
	}

	require.Equal(t, []State{
		StateStartingPreview, StateRunningPreview, StateStoppingPreview, StateIdle,
		StateStartingCapture, StateRunningCapture, StateStoppingCapture, StateIdle,
	}, states)
}

func TestStopLatency(t *testing.T) {
	m := newMock()
	c := newTest(m)

	p := c.Parameters()
	p.Preview.FPS = 1
	require.NoError(t, c.SetParameters(p))

	require.NoError(t, c.StartPreview())
	require.Eventually(t, func() bool {
		return c.Info().Frames >= 1
	}, time.Second, time.Millisecond)

	start := time.Now()
	c.StopPreview()
	require.Less(t, time.Since(start), 500*time.Millisecond)
	require.Equal(t, StateIdle, c.State())
	require.False(t, m.Allocated(frame.KindPreview))
}

func TestFrameUnavailable(t *testing.T) {
	m := newMock()
	m.setFrameErr(backend.ErrFrameUnavailable)

	var dispatched int
	c := newTest(m)
	c.SetListener(&Callbacks{
		PreviewFrame: func(frame.Descriptor) { dispatched++ },
	}, MsgAll)

	require.NoError(t, c.StartPreview())
	require.Eventually(t, func() bool {
		return c.Info().Misses >= 3
	}, time.Second, time.Millisecond)

	require.Equal(t, StateRunningPreview, c.State())

	c.StopPreview()
	require.Zero(t, dispatched)
	require.Zero(t, c.Info().Frames)
}

func TestStartFailure(t *testing.T) {
	m := newMock()
	m.startErr = backend.ErrHardwareControl

	var failed error
	c := newTest(m)
	c.SetListener(&Callbacks{Error: func(err error) { failed = err }}, MsgError)

	events, cancel := c.Subscribe(16)
	defer cancel()

	err := c.StartPreview()
	require.ErrorIs(t, err, backend.ErrHardwareControl)
	require.ErrorIs(t, failed, backend.ErrHardwareControl)
	require.Equal(t, StateIdle, c.State())
	require.False(t, m.Allocated(frame.KindPreview))

	var states []State
	for _, ev := range drain(events) {
		states = append(states, ev.To)
	}
	require.Equal(t, []State{StateStartingPreview, StateError, StateIdle}, states)
}

func TestRuntimeFailure(t *testing.T) {
	m := newMock()
	c := newTest(m)

	errs := make(chan error, 1)
	c.SetListener(&Callbacks{Error: func(err error) { errs <- err }}, MsgError)

	require.NoError(t, c.StartPreview())
	m.setFrameErr(backend.ErrHardwareControl)

	select {
	case err := <-errs:
		require.ErrorIs(t, err, backend.ErrHardwareControl)
	case <-time.After(time.Second):
		t.Fatal("no error")
	}

	c.Wait()
	require.Equal(t, StateIdle, c.State())
	require.False(t, m.Allocated(frame.KindPreview))

	// recovers on the next start
	m.setFrameErr(nil)
	require.NoError(t, c.StartPreview())
	c.StopPreview()
}

func TestWarmup(t *testing.T) {
	m := newMock()
	c := newTest(m)

	s := &testSurface{}
	c.SetSurface(s)

	require.NoError(t, c.StartPreview())
	require.Eventually(t, func() bool {
		return c.Info().Frames >= 6
	}, time.Second, time.Millisecond)
	c.StopPreview()

	require.Equal(t, c.Info().Frames-DefaultWarmup, s.Enqueued())
}

func TestSurfaceNegotiation(t *testing.T) {
	m := newMock()
	c := newTest(m)

	s := &testSurface{}
	c.SetSurface(s)

	require.NoError(t, c.StartPreview())

	// geometry is set while starting, before any frame is presented
	s.mu.Lock()
	require.Equal(t, 1, s.geometry)
	require.Equal(t, 640, s.width)
	require.Equal(t, 480, s.height)
	require.Equal(t, SurfaceFormat, s.format)
	s.mu.Unlock()

	require.Eventually(t, func() bool {
		return s.Enqueued() > 0
	}, time.Second, time.Millisecond)
	c.StopPreview()

	s.mu.Lock()
	require.Equal(t, 1, s.geometry)
	s.mu.Unlock()
}

func TestSurfaceNegotiationFailure(t *testing.T) {
	m := newMock()
	c := newTest(m)

	failed := make(chan error, 1)
	c.SetListener(&Callbacks{Error: func(err error) { failed <- err }}, MsgError)

	geometryErr := errors.New("bad geometry")
	s := &testSurface{err: geometryErr}
	c.SetSurface(s)

	err := c.StartPreview()
	require.ErrorIs(t, err, geometryErr)
	require.ErrorIs(t, <-failed, geometryErr)
	require.Equal(t, StateIdle, c.State())
	require.False(t, m.Allocated(frame.KindPreview))
	require.Zero(t, c.Info().Frames)
	require.Zero(t, s.Enqueued())
}

func TestSendCommand(t *testing.T) {
	m := newMock()
	c := newTest(m)

	err := c.SendCommand(backend.StartZoom{Level: 2})
	require.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, c.StartPreview())
	require.NoError(t, c.SendCommand(backend.StartZoom{Level: 2}))
	require.NoError(t, c.SendCommand(backend.StartFaceDetect{}))
	require.ErrorIs(t, c.SendCommand(backend.FocusInit{}), backend.ErrUnsupported)
	c.StopPreview()

	require.Contains(t, m.Calls(), "start_zoom")
	require.Contains(t, m.Calls(), "start_face_detect")
}

func TestAutoFocus(t *testing.T) {
	m := newMock()
	c := newTest(m)

	focused := make(chan bool, 1)
	c.SetListener(&Callbacks{Focus: func(ok bool) { focused <- ok }}, MsgFocus)

	require.NoError(t, c.AutoFocus())
	require.True(t, <-focused)
	c.CancelAutoFocus()

	m.focusErr = backend.ErrHardwareControl
	require.NoError(t, c.AutoFocus())
	require.False(t, <-focused)
	c.CancelAutoFocus()

	calls := strings.Join(m.Calls(), ",")
	require.Equal(t, "pause_face_detect,start_focus,pause_face_detect,start_focus", calls)
}

func TestRecording(t *testing.T) {
	m := newMock()
	c := newTest(m)

	videos := make(chan frame.Descriptor, 16)
	c.SetListener(&Callbacks{
		VideoFrame: func(d frame.Descriptor, _ time.Time) {
			select {
			case videos <- d:
			default:
			}
		},
	}, MsgVideoFrame)

	require.NoError(t, c.StartPreview())
	require.NoError(t, c.StartRecording())

	d := <-videos
	require.Equal(t, frame.FormatYUV420SP, d.Format)
	require.Equal(t, 640, d.Width)
	c.ReleaseRecordingFrame(d.Index)

	c.StopRecording()
	c.StopPreview()
	require.False(t, c.RecordingEnabled())
}

func TestInvalidState(t *testing.T) {
	m := newMock()
	m.delay = 20 * time.Millisecond
	c := newTest(m)

	require.NoError(t, c.TakePicture())
	require.ErrorIs(t, c.StartPreview(), ErrInvalidState)
	c.CancelPicture()
	require.Equal(t, StateIdle, c.State())
}

func TestDump(t *testing.T) {
	c := newTest(newMock())
	s := c.Dump()
	require.Contains(t, s, "preview enabled: false")
	require.Contains(t, s, "preview-size=640x480")
}

func TestParameters(t *testing.T) {
	c := newTest(newMock())

	p := c.Parameters()
	p.Picture.Width = 0
	require.Error(t, c.SetParameters(p))

	c.EnableMsg(MsgShutter | MsgFocus)
	c.DisableMsg(MsgFocus)
	require.True(t, c.MsgEnabled(MsgShutter))
	require.False(t, c.MsgEnabled(MsgFocus))
}

func TestStateString(t *testing.T) {
	require.Equal(t, "running_preview", StateRunningPreview.String())
	require.False(t, CanTransit(StateIdle, StateRunningPreview))
	require.True(t, StateStoppingCapture.Capture())
}
