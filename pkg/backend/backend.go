// Package backend declares the capability set every capture device
// implementation provides to the controller.
package backend

import (
	"errors"
	"sync"
	"time"

	"github.com/BAT6188/libcamera2/pkg/frame"
)

var (
	ErrDeviceUnavailable = errors.New("device unavailable")
	ErrUnsupported       = errors.New("unsupported format or size")
	ErrHardwareControl   = errors.New("hardware control failure")
	ErrFrameUnavailable  = errors.New("frame unavailable")
	ErrAllocation        = errors.New("allocation failure")
	ErrBusy              = errors.New("device busy")
)

type Backend interface {
	Name() string

	Connect(id int) error
	Disconnect() error
	StartStreaming() error
	StopStreaming() error

	AllocateStream(kind frame.Kind, width, height int, format frame.Format) (Allocation, error)
	FreeStream(kind frame.Kind) error
	// CurrentFrame blocks until the device completes a frame.
	CurrentFrame(capture bool) (frame.Descriptor, error)

	SetMode(mode Mode, value int) error
	SendCommand(cmd Command) error
	SetParam(param Param) error

	SensorCount() (int, error)
	SensorInfo() (*SensorInfo, error)

	State() State
	PreviewFormat() frame.Format
	CaptureFormat() frame.Format
	// FrameInterval is the native frame period, zero when unknown.
	FrameInterval() time.Duration
}

// Allocation is the result of AllocateStream.
type Allocation struct {
	Stream frame.Stream
	// Reused is true when the existing pool matched and was only re-issued.
	Reused bool
	// Evicted lists streams freed to stay under the physical memory limit.
	Evicted []frame.Kind
}

// State of a backend device connection.
type State byte

const (
	StateUninitialized State = iota
	StateConnected
	StateStarted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnected:
		return "connected"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is the only state shared by all backends.
type Status struct {
	mu    sync.Mutex
	state State
}

func (s *Status) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Status) SetState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

type Facing byte

const (
	FacingBack Facing = iota
	FacingFront
)

func (f Facing) String() string {
	if f == FacingFront {
		return "front"
	}
	return "back"
}

// SensorInfo is the capability table of the connected sensor.
type SensorInfo struct {
	ID           int          `json:"id"`
	Name         string       `json:"name"`
	Facing       Facing       `json:"facing"`
	Orientation  int          `json:"orientation"`
	PreviewSizes []frame.Size `json:"preview_sizes"`
	CaptureSizes []frame.Size `json:"capture_sizes"`
	// Modes holds a supported value bit mask per mode kind.
	Modes map[Mode]uint32 `json:"modes,omitempty"`
}

// Supports reports whether the size is present in the table.
func Supports(sizes []frame.Size, width, height int) bool {
	for _, s := range sizes {
		if s.Width == width && s.Height == height {
			return true
		}
	}
	return false
}
