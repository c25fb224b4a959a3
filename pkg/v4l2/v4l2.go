// Package v4l2 implements the capture backend for standard streaming
// capture devices. The kernel ring is rotated back to the driver right
// after each frame is normalized into a pool slot owned by this package.
package v4l2

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BAT6188/libcamera2/pkg/backend"
	"github.com/BAT6188/libcamera2/pkg/convert"
	"github.com/BAT6188/libcamera2/pkg/frame"
	"github.com/BAT6188/libcamera2/pkg/pool"
	"github.com/BAT6188/libcamera2/pkg/v4l2/device"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

const (
	PreviewSlots = 4
	CaptureSlots = 1
	RingBuffers  = 4
)

// Device is the V4L2 ioctl subset the backend uses.
type Device interface {
	Capability() (*device.Capability, error)
	ResetCrop() error
	ListFormats() ([]uint32, error)
	ListSizes(pixFmt uint32) ([][2]uint32, error)
	ListFrameRates(pixFmt, width, height uint32) ([]uint32, error)
	TryFormat(width, height int, pixFmt uint32) (device.PixFormat, error)
	SetFormat(width, height int, pixFmt uint32) (device.PixFormat, error)
	SetFrameRate(fps uint32) error
	SetControl(id uint32, value int32) error
	RequestBuffers(n int) (int, error)
	MapBuffer(i int) ([]byte, error)
	UnmapBuffers() error
	Queue(i int) error
	Dequeue() (index, bytesUsed int, err error)
	StreamOn() error
	StreamOff() error
	Close() error
}

type Config struct {
	Path string `yaml:"path"`
}

// FrameMode is one enumerated size and rate.
type FrameMode struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	FPS    int `json:"fps"`
}

func (m FrameMode) area() int {
	return m.Width * m.Height
}

// ring is the kernel buffer set and the format it was negotiated for
type ring struct {
	kind   frame.Kind
	pix    device.PixFormat
	width  int
	height int
	bufs   [][]byte
	primed bool
}

type Backend struct {
	backend.Status

	cfg  Config
	log  zerolog.Logger
	conv convert.Converter

	openDevice func(path string) (Device, error)
	alloc      pool.Allocator
	mapper     pool.Mapper

	mu sync.Mutex

	dev     Device
	id      int
	card    string
	modes   []FrameMode
	preview FrameMode
	picture FrameMode
	info    *backend.SensorInfo

	pools [2]*pool.Pool
	ring  *ring
	next  int
}

type Option func(b *Backend)

func WithLogger(log zerolog.Logger) Option {
	return func(b *Backend) {
		b.log = log
	}
}

func WithConverter(conv convert.Converter) Option {
	return func(b *Backend) {
		b.conv = conv
	}
}

// WithMemory replaces the slot memory, nil keeps the default.
func WithMemory(alloc pool.Allocator, mapper pool.Mapper) Option {
	return func(b *Backend) {
		if alloc != nil {
			b.alloc = alloc
		}
		if mapper != nil {
			b.mapper = mapper
		}
	}
}

func WithDevice(open func(path string) (Device, error)) Option {
	return func(b *Backend) {
		b.openDevice = open
	}
}

func New(cfg Config, opts ...Option) *Backend {
	if cfg.Path == "" {
		cfg.Path = "/dev/video0"
	}

	b := &Backend{
		cfg:        cfg,
		log:        zerolog.Nop(),
		conv:       convert.Default{},
		openDevice: openDevice,
		alloc:      pool.Heap{},
		mapper:     pool.NopMapper{},
		id:         -1,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Name() string {
	return "v4l2"
}

func (b *Backend) Path() string {
	return b.cfg.Path
}

func (b *Backend) Connect(id int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.State()
	if state != backend.StateUninitialized && b.id == id {
		return nil
	}
	if state == backend.StateConnected || state == backend.StateStarted {
		return fmt.Errorf("v4l2: connect %d: %w by %d", id, backend.ErrBusy, b.id)
	}

	if err := b.open(); err != nil {
		return err
	}

	if err := b.dev.ResetCrop(); err != nil {
		b.log.Trace().Err(err).Msg("[v4l2] crop not supported")
	}

	b.enumModes()

	b.id = id
	b.info = nil
	b.SetState(backend.StateConnected)

	b.log.Debug().Int("id", id).Str("card", b.card).Int("modes", len(b.modes)).
		Interface("preview", b.preview).Interface("picture", b.picture).Msg("[v4l2] connected")

	return nil
}

// open the node and check it can stream
func (b *Backend) open() error {
	if b.dev != nil {
		return nil
	}

	dev, err := b.openDevice(b.cfg.Path)
	if err != nil {
		return fmt.Errorf("v4l2: open %s: %w: %w", b.cfg.Path, backend.ErrDeviceUnavailable, err)
	}

	caps, err := dev.Capability()
	if err == nil && !caps.CanStream() {
		err = fmt.Errorf("capabilities 0x%08x", caps.Capabilities)
	}
	if err != nil {
		_ = dev.Close()
		return fmt.Errorf("v4l2: query %s: %w: %w", b.cfg.Path, backend.ErrDeviceUnavailable, err)
	}

	b.dev = dev
	b.card = caps.Card
	return nil
}

var defaultSizes = [][2]uint32{
	{1280, 720}, {800, 600}, {720, 576}, {720, 480}, {640, 480}, {352, 288}, {320, 240}, {176, 144},
}

func (b *Backend) enumModes() {
	b.modes = b.modes[:0]

	formats, err := b.dev.ListFormats()
	if err != nil {
		b.log.Warn().Err(err).Msg("[v4l2] list formats")
	}

	for _, pixFmt := range formats {
		sizes, err := b.dev.ListSizes(pixFmt)
		if err != nil {
			b.log.Warn().Err(err).Str("format", device.FourCCString(pixFmt)).Msg("[v4l2] list sizes")
		}

		if len(sizes) == 0 {
			// driver does not enumerate, probe well known sizes
			for _, wh := range defaultSizes {
				if pix, err := b.dev.TryFormat(int(wh[0]), int(wh[1]), pixFmt); err == nil {
					b.addMode(FrameMode{Width: pix.Width, Height: pix.Height, FPS: 25})
				}
			}
			continue
		}

		for _, wh := range sizes {
			rates, _ := b.dev.ListFrameRates(pixFmt, wh[0], wh[1])
			if len(rates) == 0 {
				rates = []uint32{1}
			}
			for _, fps := range rates {
				b.addMode(FrameMode{Width: int(wh[0]), Height: int(wh[1]), FPS: int(fps)})
			}
		}
	}

	sort.Slice(b.modes, func(i, j int) bool {
		if a1, a2 := b.modes[i].area(), b.modes[j].area(); a1 != a2 {
			return a1 < a2
		}
		return b.modes[i].FPS > b.modes[j].FPS
	})

	b.preview = FrameMode{}
	b.picture = FrameMode{}

	for _, m := range b.modes {
		if m.area() > b.picture.area() || m.area() == b.picture.area() && m.FPS < b.picture.FPS {
			b.picture = m
		}
		if m.FPS > b.preview.FPS || m.FPS == b.preview.FPS && m.area() > b.preview.area() {
			b.preview = m
		}
	}
}

func (b *Backend) addMode(m FrameMode) {
	for _, have := range b.modes {
		if have == m {
			return
		}
	}
	b.modes = append(b.modes, m)
}

// Modes returns the enumerated frame modes by area, faster first.
func (b *Backend) Modes() []FrameMode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]FrameMode(nil), b.modes...)
}

// BestModes returns the highest rate mode and the largest mode.
func (b *Backend) BestModes() (preview, picture FrameMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.preview, b.picture
}

func (b *Backend) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.State() != backend.StateStopped {
		return nil
	}

	var errs []error

	for i, p := range b.pools {
		errs = append(errs, p.Free())
		b.pools[i] = nil
	}

	if b.dev != nil {
		errs = append(errs, b.releaseRing(), b.dev.Close())
		b.dev = nil
	}

	b.id = -1
	b.info = nil
	b.modes = nil
	b.next = 0
	b.SetState(backend.StateUninitialized)

	b.log.Debug().Msg("[v4l2] disconnected")

	return errors.Join(errs...)
}

func (b *Backend) StartStreaming() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.start()
}

func (b *Backend) start() error {
	switch b.State() {
	case backend.StateStarted:
		return nil
	case backend.StateUninitialized:
		return fmt.Errorf("v4l2: start: %w", backend.ErrDeviceUnavailable)
	}

	if b.ring == nil {
		return fmt.Errorf("v4l2: start: no buffers: %w", backend.ErrHardwareControl)
	}

	if err := b.prime(); err != nil {
		return err
	}

	if err := b.dev.StreamOn(); err != nil {
		return fmt.Errorf("v4l2: stream on: %w: %w", backend.ErrHardwareControl, err)
	}

	b.SetState(backend.StateStarted)
	return nil
}

func (b *Backend) StopStreaming() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stop()
}

func (b *Backend) stop() error {
	switch b.State() {
	case backend.StateStarted:
		if err := b.dev.StreamOff(); err != nil {
			return fmt.Errorf("v4l2: stream off: %w: %w", backend.ErrHardwareControl, err)
		}
		// stream off hands every buffer back
		if b.ring != nil {
			b.ring.primed = false
		}
		b.SetState(backend.StateStopped)
	case backend.StateConnected:
		b.SetState(backend.StateStopped)
	}
	return nil
}

// prime queues every ring buffer to the driver
func (b *Backend) prime() error {
	if b.ring.primed {
		return nil
	}
	for i := range b.ring.bufs {
		if err := b.dev.Queue(i); err != nil {
			return fmt.Errorf("v4l2: queue %d: %w: %w", i, backend.ErrHardwareControl, err)
		}
	}
	b.ring.primed = true
	return nil
}

var sourceFormats = []struct {
	fourcc    uint32
	allowCrop bool
}{
	{device.V4L2_PIX_FMT_YUYV, true},
	{device.V4L2_PIX_FMT_UYVY, true},
	{device.V4L2_PIX_FMT_YVYU, true},
	{device.V4L2_PIX_FMT_NV12, false},
	{device.V4L2_PIX_FMT_NV21, false},
	{device.V4L2_PIX_FMT_YUV420, false},
	{device.V4L2_PIX_FMT_YVU420, false},
	{device.V4L2_PIX_FMT_GREY, true},
}

// closest returns the smallest enumerated mode covering the size
func (b *Backend) closest(width, height int) (FrameMode, bool) {
	for _, m := range b.modes {
		if m.Width >= width && m.Height >= height {
			return m, true
		}
	}
	return FrameMode{}, false
}

// negotiate picks a source format for the output size and sets it
func (b *Backend) negotiate(width, height int) (device.PixFormat, error) {
	m, ok := b.closest(width, height)
	if !ok {
		return device.PixFormat{}, fmt.Errorf("v4l2: size %dx%d: %w", width, height, backend.ErrUnsupported)
	}

	crop := m.Width != width || m.Height != height

	var pixFmt uint32
	for _, f := range sourceFormats {
		if crop && !f.allowCrop {
			continue
		}
		if _, err := b.dev.TryFormat(m.Width, m.Height, f.fourcc); err == nil {
			pixFmt = f.fourcc
			break
		}
	}
	if pixFmt == 0 {
		return device.PixFormat{}, fmt.Errorf("v4l2: no source format for %dx%d: %w", m.Width, m.Height, backend.ErrUnsupported)
	}

	pix, err := b.dev.SetFormat(m.Width, m.Height, pixFmt)
	if err != nil {
		return pix, fmt.Errorf("v4l2: set format: %w: %w", backend.ErrHardwareControl, err)
	}
	if pix.Width < width || pix.Height < height {
		return pix, fmt.Errorf("v4l2: driver chose %dx%d: %w", pix.Width, pix.Height, backend.ErrUnsupported)
	}
	if pix.BytesPerLine == 0 && pix.PixelFormat == device.V4L2_PIX_FMT_YUYV {
		pix.BytesPerLine = pix.Width * 2
	}

	// the rate is a hint only
	if err = b.dev.SetFrameRate(uint32(m.FPS)); err != nil {
		b.log.Debug().Err(err).Int("fps", m.FPS).Msg("[v4l2] set frame rate")
	}

	b.log.Debug().Stringer("source", pix).Int("bytesperline", pix.BytesPerLine).Int("fps", m.FPS).
		Str("output", fmt.Sprintf("%dx%d", width, height)).Msg("[v4l2] negotiated")

	return pix, nil
}

// setupRing negotiates the source and builds a primed kernel ring
func (b *Backend) setupRing(kind frame.Kind, width, height int) error {
	if r := b.ring; r != nil && r.width == width && r.height == height {
		r.kind = kind
		return nil
	}

	if b.State() == backend.StateStarted {
		if err := b.stop(); err != nil {
			return err
		}
	}
	if err := b.releaseRing(); err != nil {
		b.log.Warn().Err(err).Msg("[v4l2] release ring")
	}

	pix, err := b.negotiate(width, height)
	if err != nil {
		return err
	}

	n, err := b.dev.RequestBuffers(RingBuffers)
	if err != nil {
		return fmt.Errorf("v4l2: request buffers: %w: %w", backend.ErrAllocation, err)
	}

	r := &ring{kind: kind, pix: pix, width: width, height: height, bufs: make([][]byte, n)}
	b.ring = r

	if n < 2 {
		_ = b.releaseRing()
		return fmt.Errorf("v4l2: only %d buffers: %w", n, backend.ErrAllocation)
	}

	for i := range r.bufs {
		if r.bufs[i], err = b.dev.MapBuffer(i); err != nil {
			_ = b.releaseRing()
			return fmt.Errorf("v4l2: map buffer %d: %w: %w", i, backend.ErrAllocation, err)
		}
	}

	return b.prime()
}

// releaseRing unmaps the kernel buffers and returns them to the driver
func (b *Backend) releaseRing() error {
	if b.ring == nil {
		return nil
	}
	b.ring = nil
	return errors.Join(b.dev.UnmapBuffers(), func() error {
		_, err := b.dev.RequestBuffers(0)
		return err
	}())
}

func slotCount(kind frame.Kind) int {
	if kind == frame.KindCapture {
		return CaptureSlots
	}
	return PreviewSlots
}

func (b *Backend) AllocateStream(kind frame.Kind, width, height int, format frame.Format) (backend.Allocation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var alloc backend.Allocation

	if kind != frame.KindPreview && kind != frame.KindCapture {
		return alloc, fmt.Errorf("v4l2: allocate %s: %w", kind, backend.ErrUnsupported)
	}
	if format != frame.FormatYUV422I {
		return alloc, fmt.Errorf("v4l2: allocate %s: format %s: %w", kind, format, backend.ErrUnsupported)
	}
	if b.dev == nil {
		return alloc, fmt.Errorf("v4l2: allocate %s: %w", kind, backend.ErrDeviceUnavailable)
	}

	if cur := b.pools[kind]; cur.Matches(width, height, format) {
		alloc.Stream = cur.Stream()
		alloc.Reused = true
		return alloc, b.setupRing(kind, width, height)
	} else if cur != nil {
		if err := cur.Free(); err != nil {
			b.log.Warn().Err(err).Stringer("kind", kind).Msg("[v4l2] free on change")
		}
		b.pools[kind] = nil
	}

	prev := b.ring
	if err := b.setupRing(kind, width, height); err != nil {
		return alloc, err
	}

	p, err := pool.New(b.alloc, b.mapper, frame.Stream{
		Kind:      kind,
		Width:     width,
		Height:    height,
		Format:    format,
		SlotCount: slotCount(kind),
		SlotSize:  width * height << 1,
	})
	if err != nil {
		// drop the kernel buffers requested for this stream
		if b.ring != prev {
			if rerr := b.releaseRing(); rerr != nil {
				b.log.Warn().Err(rerr).Msg("[v4l2] release ring")
			}
		}
		return alloc, fmt.Errorf("v4l2: allocate %s: %w: %w", kind, backend.ErrAllocation, err)
	}

	b.pools[kind] = p
	if kind == frame.KindPreview {
		b.next = 0
	}

	b.log.Debug().Stringer("kind", kind).Int("size", p.Size()).Str("geometry", fmt.Sprintf("%dx%d", width, height)).
		Msg("[v4l2] stream allocated")

	alloc.Stream = p.Stream()
	return alloc, nil
}

func (b *Backend) FreeStream(kind frame.Kind) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if kind != frame.KindPreview && kind != frame.KindCapture {
		return nil
	}

	var errs []error

	if r := b.ring; r != nil && r.kind == kind {
		if b.State() == backend.StateStarted {
			errs = append(errs, b.stop())
		}
		errs = append(errs, b.releaseRing())
	}

	p := b.pools[kind]
	b.pools[kind] = nil
	errs = append(errs, p.Free())

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("v4l2: free %s: %w", kind, err)
	}
	return nil
}

func (b *Backend) CurrentFrame(capture bool) (frame.Descriptor, error) {
	kind := frame.KindPreview
	if capture {
		kind = frame.KindCapture
	}

	b.mu.Lock()
	dev, r := b.dev, b.ring
	b.mu.Unlock()

	if dev == nil || r == nil {
		return frame.Descriptor{}, fmt.Errorf("v4l2: get frame: %w", backend.ErrDeviceUnavailable)
	}

	index, used, err := dev.Dequeue()
	if err != nil {
		if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
			return frame.Descriptor{}, fmt.Errorf("v4l2: dequeue: %w: %w", backend.ErrFrameUnavailable, err)
		}
		return frame.Descriptor{}, fmt.Errorf("v4l2: dequeue: %w: %w", backend.ErrHardwareControl, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.normalize(kind, r, index, used)

	if qerr := dev.Queue(index); qerr != nil {
		return frame.Descriptor{}, fmt.Errorf("v4l2: requeue %d: %w: %w", index, backend.ErrHardwareControl, qerr)
	}

	return d, err
}

// normalize converts the kernel buffer into the next stable slot
func (b *Backend) normalize(kind frame.Kind, r *ring, index, used int) (frame.Descriptor, error) {
	p := b.pools[kind]
	if p.Size() == 0 {
		return frame.Descriptor{}, fmt.Errorf("v4l2: %s not allocated: %w", kind, backend.ErrFrameUnavailable)
	}
	if r.kind != kind {
		return frame.Descriptor{}, fmt.Errorf("v4l2: ring serves %s: %w", r.kind, backend.ErrFrameUnavailable)
	}
	if index < 0 || index >= len(r.bufs) {
		return frame.Descriptor{}, fmt.Errorf("v4l2: unknown buffer %d: %w", index, backend.ErrFrameUnavailable)
	}

	slot := 0
	if kind == frame.KindPreview {
		slot = b.next
		b.next = (b.next + 1) % p.Len()
	}
	d := p.Slot(slot)

	src := r.bufs[index]
	if used > 0 && used < len(src) {
		src = src[:used]
	}

	err := b.conv.Normalize(d.Data, src, r.pix.PixelFormat, d.Width, d.Height, r.pix.BytesPerLine)
	if err != nil {
		return frame.Descriptor{}, fmt.Errorf("v4l2: normalize: %w: %w", backend.ErrFrameUnavailable, err)
	}

	return d, nil
}

// modeMasks lists the values advertised per mode kind
var modeMasks = map[backend.Mode]uint32{
	backend.ModeWhiteBalance: 1<<6 - 1,
	backend.ModeEffect:       1<<7 - 1,
	backend.ModeAntibanding:  1<<4 - 1,
	backend.ModeFlash:        1<<5 - 1,
	backend.ModeScene:        1<<15 - 1,
	backend.ModeFocus:        1<<4 - 1,
}

func (b *Backend) SetMode(mode backend.Mode, value int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dev == nil {
		return fmt.Errorf("v4l2: mode %s: %w", mode, backend.ErrDeviceUnavailable)
	}

	var id uint32
	switch mode {
	case backend.ModeWhiteBalance:
		if value == 0 {
			id, value = device.V4L2_CID_AUTO_WHITE_BALANCE, 1
		} else {
			id = device.V4L2_CID_WHITE_BALANCE_TEMP
		}
	case backend.ModeEffect:
		id = device.V4L2_CID_COLORFX
	case backend.ModeFlash:
		id = device.V4L2_CID_FLASH_LED_MODE
	case backend.ModeFocus:
		id = device.V4L2_CID_FOCUS_AUTO
	case backend.ModeScene:
		id = device.V4L2_CID_SCENE_MODE
	case backend.ModeAntibanding:
		id = device.V4L2_CID_POWER_LINE_FREQUENCY
	default:
		return fmt.Errorf("v4l2: mode %s: %w", mode, backend.ErrUnsupported)
	}

	if err := b.dev.SetControl(id, int32(value)); err != nil {
		if errors.Is(err, unix.EINVAL) {
			return fmt.Errorf("v4l2: mode %s: %w: %w", mode, backend.ErrUnsupported, err)
		}
		return fmt.Errorf("v4l2: mode %s: %w: %w", mode, backend.ErrHardwareControl, err)
	}
	return nil
}

func (b *Backend) SendCommand(cmd backend.Command) error {
	switch cmd.(type) {
	case backend.TakePicture:
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.ring == nil || b.ring.kind != frame.KindCapture {
			return fmt.Errorf("v4l2: take picture: capture not allocated: %w", backend.ErrHardwareControl)
		}
		return b.start()
	}

	// the remaining commands have no streaming device counterpart
	return nil
}

func (b *Backend) SetParam(param backend.Param) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dev == nil {
		return fmt.Errorf("v4l2: set param: %w", backend.ErrDeviceUnavailable)
	}

	var width, height int
	var format frame.Format

	switch p := param.(type) {
	case backend.PreviewResolution:
		width, height, format = p.Width, p.Height, p.Format
	case backend.CaptureResolution:
		width, height, format = p.Width, p.Height, p.Format
	default:
		return nil
	}

	if format != frame.FormatUnknown && format != frame.FormatYUV422I {
		return fmt.Errorf("v4l2: format %s: %w", format, backend.ErrUnsupported)
	}
	if _, ok := b.closest(width, height); !ok {
		return fmt.Errorf("v4l2: size %dx%d: %w", width, height, backend.ErrUnsupported)
	}
	return nil
}

// SensorCount is one per node.
func (b *Backend) SensorCount() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.open(); err != nil {
		return 0, err
	}
	return 1, nil
}

func (b *Backend) SensorInfo() (*backend.SensorInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.info != nil {
		return b.info, nil
	}
	if b.dev == nil {
		return nil, fmt.Errorf("v4l2: sensor info: %w", backend.ErrDeviceUnavailable)
	}

	info := &backend.SensorInfo{
		ID:          b.id,
		Name:        b.card,
		Orientation: 90,
		Modes:       make(map[backend.Mode]uint32, len(modeMasks)),
	}
	for k, v := range modeMasks {
		info.Modes[k] = v
	}
	if b.id == 1 {
		info.Facing = backend.FacingFront
		info.Orientation = 270
	}

	const maxSizes = 16

	for _, m := range b.modes {
		size := frame.Size{Width: m.Width, Height: m.Height}
		if len(info.PreviewSizes) < maxSizes && !backend.Supports(info.PreviewSizes, size.Width, size.Height) {
			info.PreviewSizes = append(info.PreviewSizes, size)
		}
	}
	info.CaptureSizes = info.PreviewSizes

	b.info = info
	return info, nil
}

func (b *Backend) PreviewFormat() frame.Format {
	return frame.FormatYUV422I
}

func (b *Backend) CaptureFormat() frame.Format {
	return frame.FormatYUV422I
}

func (b *Backend) FrameInterval() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.preview.FPS <= 0 {
		return 0
	}
	return time.Second / time.Duration(b.preview.FPS)
}

// Source returns the negotiated kernel format, zero without a ring.
func (b *Backend) Source() device.PixFormat {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ring == nil {
		return device.PixFormat{}
	}
	return b.ring.pix
}
