package camera

import (
	"errors"
	"sync"
	"time"

	"github.com/BAT6188/libcamera2/pkg/frame"
)

// memorySurface keeps the last presented frame for the frame API.
// Only the controller worker writes into the back buffer.
type memorySurface struct {
	mu     sync.Mutex
	width  int
	height int
	format frame.Format
	back   []byte
	front  []byte
	ts     time.Time
	frames int
}

func (s *memorySurface) SetGeometry(width, height int, format frame.Format) error {
	size := frame.FrameSize(format, width, height)
	if size <= 0 {
		return errors.New("camera: bad surface geometry")
	}

	s.mu.Lock()
	s.width, s.height, s.format = width, height, format
	s.back = make([]byte, size)
	s.front = nil
	s.mu.Unlock()
	return nil
}

func (s *memorySurface) Lock() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.back == nil {
		return nil, errors.New("camera: surface has no geometry")
	}
	return s.back, nil
}

func (s *memorySurface) Enqueue(buf []byte, ts time.Time) error {
	s.mu.Lock()
	prev := s.front
	if prev == nil || len(prev) != len(buf) {
		prev = make([]byte, len(buf))
	}
	s.front, s.back = buf, prev
	s.ts = ts
	s.frames++
	s.mu.Unlock()
	return nil
}

func (s *memorySurface) Cancel([]byte) {}

// Snapshot returns a copy of the last presented frame.
func (s *memorySurface) Snapshot() (frame.Descriptor, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.front == nil {
		return frame.Descriptor{}, time.Time{}, false
	}

	data := append([]byte(nil), s.front...)
	return frame.NewDescriptor(0, s.width, s.height, s.format, data, 0), s.ts, true
}
