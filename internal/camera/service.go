package camera

import (
	"errors"
	"sync"

	"github.com/BAT6188/libcamera2/pkg/hal"
	"github.com/BAT6188/libcamera2/pkg/registry"
	"github.com/rs/zerolog"
)

var ErrNoCamera = errors.New("camera: no device selected")

type result struct {
	jpeg []byte
	err  error
}

// service owns the registry and the controller of the selected device
type service struct {
	log    zerolog.Logger
	reg    *registry.Registry
	id     int
	params hal.Parameters
	opts   []hal.Option

	mu      sync.Mutex
	ctrl    *hal.Controller
	entry   *registry.Entry
	surface *memorySurface
	waiters []chan result
}

func newService(reg *registry.Registry, id int, params hal.Parameters, log zerolog.Logger, opts ...hal.Option) *service {
	return &service{log: log, reg: reg, id: id, params: params, opts: opts}
}

// start selects the device by path, or the first accessible one
func (s *service) start(path string) error {
	var entry *registry.Entry
	var err error

	if path != "" {
		if entry, err = s.reg.SelectPath(path); err != nil {
			s.log.Warn().Err(err).Msgf("[camera] saved device %s", path)
		}
	}
	if entry == nil {
		if entry, err = s.reg.Select(); err != nil {
			return err
		}
	}

	s.open(entry)
	return nil
}

func (s *service) open(entry *registry.Entry) {
	opts := append([]hal.Option{
		hal.WithLogger(s.log),
		hal.WithParameters(s.params),
	}, s.opts...)

	ctrl := hal.New(s.id, entry.Backend, opts...)

	surface := &memorySurface{}
	ctrl.SetSurface(surface)
	ctrl.SetListener(&hal.Callbacks{
		Error: func(err error) {
			s.deliver(result{err: err})
		},
		Shutter: func() {
			s.log.Trace().Msg("[camera] shutter")
		},
		Focus: func(ok bool) {
			s.log.Debug().Msgf("[camera] focus ok=%t", ok)
		},
		Picture: func(b []byte) {
			s.deliver(result{jpeg: b})
		},
	}, hal.MsgError|hal.MsgShutter|hal.MsgFocus|hal.MsgCompressedImage)

	s.mu.Lock()
	s.ctrl = ctrl
	s.entry = entry
	s.surface = surface
	s.mu.Unlock()

	s.log.Info().Msgf("[camera] open %s %s", entry.Type, entry.Path)
}

func (s *service) current() (*hal.Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctrl == nil {
		return nil, ErrNoCamera
	}
	return s.ctrl, nil
}

// next closes the current controller and opens the next accessible device
func (s *service) next() (*registry.Entry, error) {
	s.mu.Lock()
	ctrl := s.ctrl
	s.ctrl = nil
	s.entry = nil
	s.mu.Unlock()

	if ctrl != nil {
		if err := ctrl.Close(); err != nil {
			s.log.Warn().Err(err).Msg("[camera] close")
		}
	}

	entry, err := s.reg.Select()
	if err != nil {
		return nil, err
	}

	s.open(entry)
	return entry, nil
}

func (s *service) wait() chan result {
	ch := make(chan result, 1)
	s.mu.Lock()
	s.waiters = append(s.waiters, ch)
	s.mu.Unlock()
	return ch
}

func (s *service) unwait(ch chan result) {
	s.mu.Lock()
	for i, w := range s.waiters {
		if w == ch {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
}

// deliver wakes every picture request
func (s *service) deliver(res result) {
	if res.err != nil {
		s.log.Error().Err(res.err).Msg("[camera] device")
	}

	s.mu.Lock()
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	for _, ch := range waiters {
		select {
		case ch <- res:
		default:
		}
	}
}

func (s *service) close() error {
	s.mu.Lock()
	ctrl := s.ctrl
	s.ctrl = nil
	s.mu.Unlock()

	var err error
	if ctrl != nil {
		err = ctrl.Close()
	}
	return errors.Join(err, s.reg.Close())
}
