package camera

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/BAT6188/libcamera2/pkg/backend"
	"github.com/BAT6188/libcamera2/pkg/frame"
	"github.com/BAT6188/libcamera2/pkg/hal"
	"github.com/BAT6188/libcamera2/pkg/pool"
	"github.com/BAT6188/libcamera2/pkg/registry"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	backend.Status

	mu    sync.Mutex
	bufs  map[frame.Kind]frame.Descriptor
	modes map[backend.Mode]int
}

func newFake() *fakeBackend {
	return &fakeBackend{
		bufs:  map[frame.Kind]frame.Descriptor{},
		modes: map[backend.Mode]int{},
	}
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Connect(int) error {
	if f.State() == backend.StateUninitialized {
		f.SetState(backend.StateConnected)
	}
	return nil
}

func (f *fakeBackend) Disconnect() error {
	f.SetState(backend.StateUninitialized)
	return nil
}

func (f *fakeBackend) StartStreaming() error {
	f.SetState(backend.StateStarted)
	return nil
}

func (f *fakeBackend) StopStreaming() error {
	if f.State() != backend.StateUninitialized {
		f.SetState(backend.StateStopped)
	}
	return nil
}

func (f *fakeBackend) AllocateStream(kind frame.Kind, width, height int, format frame.Format) (backend.Allocation, error) {
	size := frame.FrameSize(format, width, height)
	data := bytes.Repeat([]byte{0x80}, size)

	f.mu.Lock()
	f.bufs[kind] = frame.NewDescriptor(0, width, height, format, data, 0)
	f.mu.Unlock()

	return backend.Allocation{Stream: frame.Stream{Kind: kind, Width: width, Height: height, Format: format, SlotCount: 1, SlotSize: size}}, nil
}

func (f *fakeBackend) FreeStream(kind frame.Kind) error {
	f.mu.Lock()
	delete(f.bufs, kind)
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) CurrentFrame(capture bool) (frame.Descriptor, error) {
	time.Sleep(time.Millisecond)

	kind := frame.KindPreview
	if capture {
		kind = frame.KindCapture
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	d, ok := f.bufs[kind]
	if !ok {
		return frame.Descriptor{}, backend.ErrFrameUnavailable
	}
	return d, nil
}

func (f *fakeBackend) SetMode(mode backend.Mode, value int) error {
	f.mu.Lock()
	f.modes[mode] = value
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) SendCommand(backend.Command) error { return nil }
func (f *fakeBackend) SetParam(backend.Param) error      { return nil }
func (f *fakeBackend) SensorCount() (int, error)         { return 1, nil }
func (f *fakeBackend) SensorInfo() (*backend.SensorInfo, error) {
	return &backend.SensorInfo{Name: "fake", PreviewSizes: []frame.Size{{Width: 64, Height: 48}}}, nil
}
func (f *fakeBackend) PreviewFormat() frame.Format  { return frame.FormatYUV422I }
func (f *fakeBackend) CaptureFormat() frame.Format  { return frame.FormatYUV422I }
func (f *fakeBackend) FrameInterval() time.Duration { return 5 * time.Millisecond }

type heapAlloc struct{}

func (heapAlloc) Alloc(size int) (*pool.Region, error) {
	return &pool.Region{Data: make([]byte, size)}, nil
}

func newTestService(t *testing.T) (*service, *fakeBackend, *fakeBackend) {
	a, b := newFake(), newFake()

	reg := registry.New(registry.WithAccess(func(string) error { return nil }))
	require.NoError(t, reg.Add("v4l2", "/dev/video0", a))
	require.NoError(t, reg.Add("v4l2", "/dev/video1", b))

	params := hal.DefaultParameters()
	params.Preview.Width, params.Preview.Height = 64, 48
	params.Preview.FPS = 200
	params.Picture.Width, params.Picture.Height = 64, 48

	s := newService(reg, 0, params, zerolog.Nop(), hal.WithWarmup(0), hal.WithRecordingAllocator(heapAlloc{}))
	require.NoError(t, s.start(""))
	t.Cleanup(func() { _ = s.close() })

	return s, a, b
}

func call(h http.HandlerFunc, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestStatus(t *testing.T) {
	s, _, _ := newTestService(t)

	w := call(s.apiStatus, "GET", "/api/camera")
	require.Equal(t, http.StatusOK, w.Code)

	var st struct {
		State   string `json:"state"`
		Path    string `json:"path"`
		Backend string `json:"backend"`
		Devices []struct {
			Path string `json:"path"`
		} `json:"devices"`
		Sensor struct {
			Name string `json:"name"`
		} `json:"sensor"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	require.Equal(t, "idle", st.State)
	require.Equal(t, "/dev/video0", st.Path)
	require.Equal(t, "fake", st.Backend)
	require.Len(t, st.Devices, 2)
	require.Equal(t, "fake", st.Sensor.Name)
}

func TestPreviewAndFrame(t *testing.T) {
	s, a, _ := newTestService(t)

	w := call(s.apiFrame, "GET", "/api/camera/frame")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = call(s.apiPreview, "POST", "/api/camera/preview")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, backend.StateStarted, a.State())

	require.Eventually(t, func() bool {
		return call(s.apiFrame, "GET", "/api/camera/frame").Code == http.StatusOK
	}, time.Second, 5*time.Millisecond)

	w = call(s.apiFrame, "GET", "/api/camera/frame")
	require.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	require.Equal(t, []byte{0xFF, 0xD8}, w.Body.Bytes()[:2])

	w = call(s.apiDump, "GET", "/api/camera/dump")
	require.Contains(t, w.Body.String(), "preview enabled: true")

	w = call(s.apiPreview, "DELETE", "/api/camera/preview")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, backend.StateStopped, a.State())
}

func TestPicture(t *testing.T) {
	s, _, _ := newTestService(t)

	w := call(s.apiPicture, "GET", "/api/camera/picture")
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = call(s.apiPicture, "POST", "/api/camera/picture")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []byte{0xFF, 0xD8}, w.Body.Bytes()[:2])
}

func TestMode(t *testing.T) {
	s, a, _ := newTestService(t)

	w := call(s.apiMode, "POST", "/api/camera/mode?name=iso&value=1")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = call(s.apiMode, "POST", "/api/camera/mode?name=effect&value=x")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = call(s.apiMode, "POST", "/api/camera/mode?name=effect&value=2")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 2, a.modes[backend.ModeEffect])
}

func TestSelect(t *testing.T) {
	s, a, b := newTestService(t)

	w := call(s.apiPreview, "POST", "/api/camera/preview")
	require.Equal(t, http.StatusOK, w.Code)

	w = call(s.apiSelect, "POST", "/api/camera/select")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "/dev/video1")

	// previous device is released
	require.Equal(t, backend.StateUninitialized, a.State())

	w = call(s.apiPreview, "POST", "/api/camera/preview")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, backend.StateStarted, b.State())
}

func TestNoCamera(t *testing.T) {
	reg := registry.New(registry.WithAccess(func(string) error { return nil }))
	s := newService(reg, 0, hal.DefaultParameters(), zerolog.Nop())
	require.ErrorIs(t, s.start(""), registry.ErrNoDevice)

	w := call(s.apiPreview, "POST", "/api/camera/preview")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = call(s.apiStatus, "GET", "/api/camera")
	require.Equal(t, http.StatusOK, w.Code)
}
