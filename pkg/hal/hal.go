// Package hal drives one capture backend through the preview and capture
// lifecycle on behalf of a host camera service.
package hal

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BAT6188/libcamera2/pkg/backend"
	"github.com/BAT6188/libcamera2/pkg/convert"
	"github.com/BAT6188/libcamera2/pkg/frame"
	"github.com/BAT6188/libcamera2/pkg/jpeg"
	"github.com/BAT6188/libcamera2/pkg/pool"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidState = errors.New("hal: invalid state")
	ErrCanceled     = errors.New("hal: canceled")
)

const (
	// DefaultWarmup frames are dropped before the surface sees any
	DefaultWarmup = 3
	// RecordingSlots in the video frame ring
	RecordingSlots = 8

	captureRetries = 3
)

type Controller struct {
	id  int
	dev backend.Backend
	log zerolog.Logger

	conv   convert.Converter
	enc    jpeg.Encoder
	faces  FaceDetector
	alloc  pool.Allocator
	warmup int
	slots  int

	// state machine, guarded by mu
	mu       sync.Mutex
	state    State
	workerID int
	wake     chan struct{}
	done     chan struct{}
	subs     map[int]chan<- Event
	subID    int

	// collaborators and host settings, guarded by cfg
	cfg        sync.Mutex
	surface    Surface
	listener   Listener
	msgs       Msg
	params     Parameters
	recording  bool
	faceDetect bool
	facePaused bool

	// worker owned, reset on every preview start
	surfNeg    Surface
	surfFormat frame.Format
	dropped    int
	retries    int
	record     *pool.Pool
	recNext    int
	recBusy    []bool
	cbBuf      []byte
	lumaBuf    []byte

	stats struct {
		sync.Mutex
		frames   int
		misses   int
		pictures int
	}

	focusMu   sync.Mutex
	focusDone chan struct{}
}

type Option func(c *Controller)

func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) {
		c.log = log
	}
}

func WithConverter(conv convert.Converter) Option {
	return func(c *Controller) {
		c.conv = conv
	}
}

func WithEncoder(enc jpeg.Encoder) Option {
	return func(c *Controller) {
		c.enc = enc
	}
}

func WithFaceDetector(fd FaceDetector) Option {
	return func(c *Controller) {
		c.faces = fd
	}
}

// WithRecordingAllocator sets the memory used for video frames.
func WithRecordingAllocator(alloc pool.Allocator) Option {
	return func(c *Controller) {
		c.alloc = alloc
	}
}

func WithRecordingSlots(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.slots = n
		}
	}
}

func WithWarmup(frames int) Option {
	return func(c *Controller) {
		c.warmup = frames
	}
}

func WithParameters(p Parameters) Option {
	return func(c *Controller) {
		c.params = p
	}
}

func New(id int, dev backend.Backend, opts ...Option) *Controller {
	c := &Controller{
		id:     id,
		dev:    dev,
		log:    zerolog.Nop(),
		conv:   convert.Default{},
		enc:    jpeg.Default{},
		alloc:  pool.Heap{},
		warmup: DefaultWarmup,
		slots:  RecordingSlots,
		params: DefaultParameters(),
		subs:   map[int]chan<- Event{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) ID() int {
	return c.id
}

func (c *Controller) Backend() backend.Backend {
	return c.dev
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe returns a channel of state changes. Events are dropped when
// the channel is full.
func (c *Controller) Subscribe(size int) (<-chan Event, func()) {
	ch := make(chan Event, size)

	c.mu.Lock()
	c.subID++
	id := c.subID
	c.subs[id] = ch
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// setState must be called with mu held
func (c *Controller) setState(to State, err error) {
	from := c.state
	if from == to {
		return
	}
	if !CanTransit(from, to) {
		c.log.Error().Msgf("[hal] wrong transition %s => %s", from, to)
	}

	c.state = to
	c.log.Debug().Msgf("[hal] state %s => %s", from, to)

	ev := Event{From: from, To: to, Time: time.Now()}
	if err != nil {
		ev.Err = err.Error()
	}
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (c *Controller) SetSurface(s Surface) {
	c.cfg.Lock()
	c.surface = s
	c.cfg.Unlock()
}

func (c *Controller) SetListener(l Listener, msgs Msg) {
	c.cfg.Lock()
	c.listener = l
	c.msgs = msgs
	c.cfg.Unlock()
}

func (c *Controller) EnableMsg(m Msg) {
	c.cfg.Lock()
	c.msgs |= m
	c.cfg.Unlock()
}

func (c *Controller) DisableMsg(m Msg) {
	c.cfg.Lock()
	c.msgs &^= m
	c.cfg.Unlock()
}

// MsgEnabled reports whether any bit of m is enabled.
func (c *Controller) MsgEnabled(m Msg) bool {
	c.cfg.Lock()
	defer c.cfg.Unlock()
	return c.msgs&m != 0
}

func (c *Controller) Parameters() Parameters {
	c.cfg.Lock()
	defer c.cfg.Unlock()
	return c.params
}

// SetParameters is applied on the next preview or capture start.
func (c *Controller) SetParameters(p Parameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.cfg.Lock()
	c.params = p
	c.cfg.Unlock()
	return nil
}

// StartPreview blocks until the preview is running or failed to start.
func (c *Controller) StartPreview() error {
	c.mu.Lock()
	switch c.state {
	case StateRunningPreview:
		c.mu.Unlock()
		return nil
	case StateIdle:
	default:
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: start preview in %s", ErrInvalidState, state)
	}
	ready := c.run(StateStartingPreview)
	c.mu.Unlock()

	return <-ready
}

// StopPreview returns after the worker released the preview stream.
func (c *Controller) StopPreview() {
	c.mu.Lock()
	if !c.state.Preview() {
		c.mu.Unlock()
		return
	}
	done := c.stop(StateStoppingPreview)
	c.mu.Unlock()

	<-done
}

func (c *Controller) PreviewEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateRunningPreview || c.state == StateStartingPreview
}

// TakePicture stops the preview if it runs and blocks until the capture
// stream is armed. The picture is delivered to the listener.
func (c *Controller) TakePicture() error {
	c.StopPreview()

	c.mu.Lock()
	switch {
	case c.state.Capture():
		c.mu.Unlock()
		return nil
	case c.state != StateIdle:
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: take picture in %s", ErrInvalidState, state)
	}
	ready := c.run(StateStartingCapture)
	c.mu.Unlock()

	return <-ready
}

func (c *Controller) CancelPicture() {
	c.mu.Lock()
	if !c.state.Capture() {
		c.mu.Unlock()
		return
	}
	done := c.stop(StateStoppingCapture)
	c.mu.Unlock()

	<-done
}

// Wait blocks until the current worker exits.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		<-done
	}
}

// run must be called with mu held in the idle state
func (c *Controller) run(state State) <-chan error {
	c.setState(state, nil)

	c.workerID++
	c.wake = make(chan struct{})
	c.done = make(chan struct{})

	ready := make(chan error, 1)
	go c.worker(c.workerID, ready, c.wake, c.done)
	return ready
}

// stop must be called with mu held, returns the worker join channel
func (c *Controller) stop(state State) <-chan struct{} {
	switch c.state {
	case StateStartingPreview, StateRunningPreview, StateStartingCapture, StateRunningCapture:
		c.setState(state, nil)
		close(c.wake)
	}
	return c.done
}

func (c *Controller) StartRecording() error {
	c.cfg.Lock()
	c.recording = true
	c.cfg.Unlock()
	return nil
}

func (c *Controller) StopRecording() {
	c.cfg.Lock()
	c.recording = false
	for i := range c.recBusy {
		c.recBusy[i] = false
	}
	c.cfg.Unlock()
}

func (c *Controller) RecordingEnabled() bool {
	c.cfg.Lock()
	defer c.cfg.Unlock()
	return c.recording
}

// ReleaseRecordingFrame returns a video slot handed out by OnVideoFrame.
func (c *Controller) ReleaseRecordingFrame(index int) {
	c.cfg.Lock()
	if index >= 0 && index < len(c.recBusy) {
		c.recBusy[index] = false
	}
	c.cfg.Unlock()
}

// SendCommand forwards zoom and face detection commands, valid only while
// the preview runs.
func (c *Controller) SendCommand(cmd backend.Command) error {
	if c.State() != StateRunningPreview {
		return fmt.Errorf("%w: %s", ErrInvalidState, backend.CommandName(cmd))
	}

	switch cmd.(type) {
	case backend.StartFaceDetect:
		c.cfg.Lock()
		c.faceDetect = true
		c.facePaused = false
		c.cfg.Unlock()
	case backend.StopFaceDetect:
		c.cfg.Lock()
		c.faceDetect = false
		c.cfg.Unlock()
	case backend.StartZoom, backend.StopZoom:
	default:
		return fmt.Errorf("%w: %s", backend.ErrUnsupported, backend.CommandName(cmd))
	}

	return c.dev.SendCommand(cmd)
}

func (c *Controller) SetMode(mode backend.Mode, value int) error {
	return c.dev.SetMode(mode, value)
}

// Close stops every activity and disconnects the backend.
func (c *Controller) Close() error {
	c.StopPreview()
	c.StopRecording()
	c.CancelPicture()
	c.CancelAutoFocus()
	c.Wait()

	c.SetListener(nil, 0)
	c.SetSurface(nil)

	c.cfg.Lock()
	err := c.record.Free()
	c.record = nil
	c.recBusy = nil
	c.cfg.Unlock()

	return errors.Join(err, c.dev.Disconnect())
}

type Info struct {
	ID        int           `json:"id"`
	Backend   string        `json:"backend"`
	State     State         `json:"state"`
	Device    backend.State `json:"device"`
	Recording bool          `json:"recording"`
	Frames    int           `json:"frames"`
	Misses    int           `json:"misses"`
	Pictures  int           `json:"pictures"`
	Params    Parameters    `json:"params"`
}

func (c *Controller) Info() Info {
	info := Info{
		ID:      c.id,
		Backend: c.dev.Name(),
		State:   c.State(),
		Device:  c.dev.State(),
	}

	c.cfg.Lock()
	info.Recording = c.recording
	info.Params = c.params
	c.cfg.Unlock()

	c.stats.Lock()
	info.Frames = c.stats.frames
	info.Misses = c.stats.misses
	info.Pictures = c.stats.pictures
	c.stats.Unlock()

	return info
}

// Dump returns a human readable snapshot.
func (c *Controller) Dump() string {
	info := c.Info()

	sb := &strings.Builder{}
	fmt.Fprintf(sb, "camera %d (%s)\n", info.ID, info.Backend)
	fmt.Fprintf(sb, "  state: %s, device: %s\n", info.State, info.Device)
	fmt.Fprintf(sb, "  preview enabled: %t\n", info.State == StateRunningPreview)
	fmt.Fprintf(sb, "  taking picture: %t\n", info.State.Capture())
	fmt.Fprintf(sb, "  recording: %t\n", info.Recording)
	fmt.Fprintf(sb, "  preview %dx%d, frame interval %s\n",
		info.Params.Preview.Width, info.Params.Preview.Height, c.interval(info.Params))
	fmt.Fprintf(sb, "  frames: %d, misses: %d, pictures: %d\n", info.Frames, info.Misses, info.Pictures)
	fmt.Fprintf(sb, "  params: %s\n", info.Params.String())
	return sb.String()
}

func (c *Controller) interval(p Parameters) time.Duration {
	if p.Preview.FPS > 0 {
		return time.Second / time.Duration(p.Preview.FPS)
	}
	return c.dev.FrameInterval()
}
