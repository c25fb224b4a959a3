// Package registry keeps the capture devices known to the camera service
// and which of them is selected.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/BAT6188/libcamera2/pkg/backend"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

const MaxEntries = 8

var (
	ErrFull     = errors.New("registry: full")
	ErrExists   = errors.New("registry: path exists")
	ErrNotFound = errors.New("registry: not found")
	ErrNoDevice = errors.New("registry: no accessible device")
)

type Entry struct {
	Type    string          `json:"type"`
	Path    string          `json:"path"`
	Backend backend.Backend `json:"-"`
}

type Registry struct {
	mu      sync.Mutex
	entries []*Entry
	current int
	access  func(path string) error
	log     zerolog.Logger
}

type Option func(r *Registry)

func WithLogger(log zerolog.Logger) Option {
	return func(r *Registry) {
		r.log = log
	}
}

// WithAccess replaces the read/write permission probe.
func WithAccess(access func(path string) error) Option {
	return func(r *Registry) {
		r.access = access
	}
}

func New(opts ...Option) *Registry {
	r := &Registry{
		current: -1,
		access:  access,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func access(path string) error {
	return unix.Access(path, unix.R_OK|unix.W_OK)
}

func (r *Registry) Add(typ, path string, b backend.Backend) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) >= MaxEntries {
		return fmt.Errorf("%w: %s", ErrFull, path)
	}
	for _, e := range r.entries {
		if e.Path == path {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}

	r.entries = append(r.entries, &Entry{Type: typ, Path: path, Backend: b})
	r.log.Debug().Msgf("[registry] add %s %s", typ, path)
	return nil
}

func (r *Registry) Get(path string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.index(path); i >= 0 {
		return r.entries[i], true
	}
	return nil, false
}

func (r *Registry) index(path string) int {
	for i, e := range r.entries {
		if e.Path == path {
			return i
		}
	}
	return -1
}

// Entries returns a copy in selection order.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]Entry, len(r.entries))
	for i, e := range r.entries {
		entries[i] = *e
	}
	return entries
}

func (r *Registry) Current() (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current < 0 {
		return nil, false
	}
	return r.entries[r.current], true
}

// Select moves to the next accessible entry after the current one,
// wrapping around. With a single accessible entry it is selected again.
func (r *Registry) Select() (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.entries)
	for i := 1; i <= n; i++ {
		j := (r.current + i) % n
		e := r.entries[j]
		if err := r.access(e.Path); err != nil {
			r.log.Debug().Err(err).Msgf("[registry] skip %s", e.Path)
			continue
		}
		r.current = j
		r.log.Info().Msgf("[registry] select %s %s", e.Type, e.Path)
		return e, nil
	}

	return nil, ErrNoDevice
}

// SelectPath selects an entry by path if it is accessible.
func (r *Registry) SelectPath(path string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index(path)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err := r.access(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoDevice, path, err)
	}
	r.current = i
	return r.entries[i], nil
}

// Close disconnects every backend.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, e := range r.entries {
		if err := e.Backend.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Path, err))
		}
	}
	r.current = -1
	return errors.Join(errs...)
}
