// Package cim implements the capture backend for the CIM controller:
// custom control codes, physically contiguous pmem buffers and an IOMMU
// the driver walks when pmem is missing.
package cim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BAT6188/libcamera2/pkg/backend"
	"github.com/BAT6188/libcamera2/pkg/cim/device"
	"github.com/BAT6188/libcamera2/pkg/frame"
	"github.com/BAT6188/libcamera2/pkg/pool"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

const (
	PreviewSlots = 4
	CaptureSlots = 1
)

// Device is the control plane of the CIM driver.
type Device interface {
	SelectSensor(id int) error
	SensorCount() (int, error)
	SensorInfo() (*device.SensorInfo, error)
	PreviewSizes(n int) ([]frame.Size, error)
	CaptureSizes(n int) ([]frame.Size, error)
	SetPreviewSize(width, height int) error
	SetCaptureSize(width, height int) error
	SetPreviewFormat(format uint32) error
	SetCaptureFormat(format uint32) error
	SetPreviewMem(meta []device.Meta) error
	SetCaptureMem(meta []device.Meta) error
	SetTLBBase(base uint32) error
	SetParam(value uint32) error
	StartPreview() error
	Shutdown() error
	AutofocusInit() error
	Autofocus() error
	StartCapture() (uint64, error)
	GetFrame() (uint64, error)
	Close() error
}

// Memory is a physically contiguous allocator.
type Memory interface {
	pool.Allocator
	TotalSize() (int, error)
}

type MMU interface {
	pool.Mapper
	TLBBase() (uint32, error)
	Close() error
}

type Config struct {
	Path string `yaml:"path"`
	Pmem string `yaml:"pmem"`
	DMMU string `yaml:"dmmu"`
}

type Backend struct {
	backend.Status

	cfg Config
	log zerolog.Logger

	openDevice func(path string) (Device, error)
	openMemory func(path string) (Memory, error)
	openMMU    func(path string) (MMU, error)

	mu sync.Mutex

	dev       Device
	mem       Memory
	mmu       MMU
	tlbBase   uint32
	pmemTotal int
	id        int
	info      *backend.SensorInfo

	pools         [2]*pool.Pool
	previewFormat frame.Format
	captureFormat frame.Format
	captureFrame  uint64
}

type Option func(b *Backend)

func WithLogger(log zerolog.Logger) Option {
	return func(b *Backend) {
		b.log = log
	}
}

// WithDevices replaces the device openers, nil keeps the default.
func WithDevices(
	dev func(path string) (Device, error), mem func(path string) (Memory, error), mmu func(path string) (MMU, error),
) Option {
	return func(b *Backend) {
		if dev != nil {
			b.openDevice = dev
		}
		if mem != nil {
			b.openMemory = mem
		}
		if mmu != nil {
			b.openMMU = mmu
		}
	}
}

func New(cfg Config, opts ...Option) *Backend {
	if cfg.Path == "" {
		cfg.Path = "/dev/cim"
	}
	if cfg.Pmem == "" {
		cfg.Pmem = "/dev/pmem_camera"
	}
	if cfg.DMMU == "" {
		cfg.DMMU = "/dev/dmmu"
	}

	b := &Backend{
		cfg:           cfg,
		log:           zerolog.Nop(),
		openDevice:    openDevice,
		openMemory:    openMemory,
		openMMU:       openMMU,
		id:            -1,
		previewFormat: frame.FormatYUV420P,
		captureFormat: frame.FormatYUV422I,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Name() string {
	return "cim"
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
		return fmt.Errorf("cim: connect %d: %w by sensor %d", id, backend.ErrBusy, b.id)
	}

	opened := state == backend.StateUninitialized

	if err := b.open(); err != nil {
		return err
	}

	if b.mem == nil {
		if mem, err := b.openMemory(b.cfg.Pmem); err == nil {
			b.mem = mem
		} else {
			b.log.Debug().Err(err).Str("path", b.cfg.Pmem).Msg("[cim] pmem unavailable, use heap")
		}
	}

	if b.mmu == nil {
		if mmu, err := b.openMMU(b.cfg.DMMU); err == nil {
			b.mmu = mmu
			if b.tlbBase, err = mmu.TLBBase(); err != nil {
				b.log.Warn().Err(err).Msg("[cim] tlb base")
			}
		} else {
			b.log.Warn().Err(err).Str("path", b.cfg.DMMU).Msg("[cim] dmmu unavailable")
		}
	}

	if err := b.dev.SelectSensor(id); err != nil {
		err = fmt.Errorf("cim: select sensor %d: %w: %w", id, backend.ErrHardwareControl, err)
		if opened {
			err = errors.Join(err, b.closeHandles())
		}
		return err
	}

	b.id = id
	b.info = nil
	b.SetState(backend.StateConnected)

	b.log.Debug().Int("id", id).Bool("pmem", b.mem != nil).Msg("[cim] connected")

	return nil
}

// open the control node without changing state
func (b *Backend) open() error {
	if b.dev != nil {
		return nil
	}
	dev, err := b.openDevice(b.cfg.Path)
	if err != nil {
		return fmt.Errorf("cim: open %s: %w: %w", b.cfg.Path, backend.ErrDeviceUnavailable, err)
	}
	b.dev = dev
	return nil
}

// closeHandles drops the control node, pmem and dmmu opened by Connect
func (b *Backend) closeHandles() error {
	var errs []error
	if b.dev != nil {
		errs = append(errs, b.dev.Close())
		b.dev = nil
	}
	if b.mmu != nil {
		errs = append(errs, b.mmu.Close())
		b.mmu = nil
	}
	b.mem = nil
	b.pmemTotal = 0
	b.tlbBase = 0
	return errors.Join(errs...)
}

func (b *Backend) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.State() != backend.StateStopped {
		return nil
	}

	var errs []error

	for i, p := range b.pools {
		if err := p.Free(); err != nil {
			errs = append(errs, err)
		}
		b.pools[i] = nil
	}

	errs = append(errs, b.closeHandles())

	b.captureFrame = 0
	b.id = -1
	b.info = nil
	b.previewFormat = frame.FormatYUV420P
	b.captureFormat = frame.FormatYUV422I
	b.SetState(backend.StateUninitialized)

	b.log.Debug().Msg("[cim] disconnected")

	return errors.Join(errs...)
}

func (b *Backend) StartStreaming() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.State() {
	case backend.StateStarted:
		return nil
	case backend.StateUninitialized:
		return fmt.Errorf("cim: start: %w", backend.ErrDeviceUnavailable)
	}

	b.SetState(backend.StateStopped)

	if err := b.dev.StartPreview(); err != nil {
		return fmt.Errorf("cim: start preview: %w: %w", backend.ErrHardwareControl, err)
	}

	b.SetState(backend.StateStarted)
	return nil
}

func (b *Backend) StopStreaming() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.State() {
	case backend.StateStarted:
		if err := b.dev.Shutdown(); err != nil {
			return fmt.Errorf("cim: shutdown: %w: %w", backend.ErrHardwareControl, err)
		}
		b.SetState(backend.StateStopped)
	case backend.StateConnected:
		// never streamed
		b.SetState(backend.StateStopped)
	}
	return nil
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
		return alloc, fmt.Errorf("cim: allocate %s: %w", kind, backend.ErrUnsupported)
	}
	if b.dev == nil {
		return alloc, fmt.Errorf("cim: allocate %s: %w", kind, backend.ErrDeviceUnavailable)
	}

	if cur := b.pools[kind]; cur.Matches(width, height, format) {
		alloc.Stream = cur.Stream()
		alloc.Reused = true
		return alloc, b.setMem(kind)
	} else if cur != nil {
		if err := cur.Free(); err != nil {
			b.log.Warn().Err(err).Stringer("kind", kind).Msg("[cim] free on change")
		}
		b.pools[kind] = nil
	}

	s := frame.Stream{
		Kind:      kind,
		Width:     width,
		Height:    height,
		Format:    format,
		SlotCount: slotCount(kind),
		SlotSize:  width * height << 1,
	}

	// both streams share one physical pool, the other one is dropped
	// when the sum reaches its size
	other := frame.KindCapture
	if kind == frame.KindCapture {
		other = frame.KindPreview
	}
	if b.pmemTotal > 0 && s.Footprint()+b.pools[other].Size() >= b.pmemTotal {
		b.log.Debug().Stringer("kind", other).Int("total", b.pmemTotal).Msg("[cim] evict stream")
		if err := b.pools[other].Free(); err != nil {
			b.log.Warn().Err(err).Caller().Send()
		}
		b.pools[other] = nil
		alloc.Evicted = append(alloc.Evicted, other)
	}

	var allocator pool.Allocator = pool.Heap{}
	if b.mem != nil {
		allocator = b.mem
	}
	var mapper pool.Mapper = pool.NopMapper{}
	if b.mmu != nil {
		mapper = b.mmu
	}

	p, err := pool.New(allocator, mapper, s)
	if err != nil {
		return alloc, fmt.Errorf("cim: allocate %s: %w: %w", kind, backend.ErrAllocation, err)
	}

	if b.mem != nil && b.pmemTotal == 0 {
		if b.pmemTotal, err = b.mem.TotalSize(); err != nil {
			b.log.Warn().Err(err).Msg("[cim] pmem total size")
		}
	}

	b.pools[kind] = p

	if err = b.setMem(kind); err != nil {
		_ = p.Free()
		b.pools[kind] = nil
		return alloc, err
	}

	b.log.Debug().Stringer("kind", kind).Int("size", p.Size()).Str("geometry", fmt.Sprintf("%dx%d", width, height)).
		Msg("[cim] stream allocated")

	alloc.Stream = p.Stream()
	return alloc, nil
}

// setMem hands the slot layout of a pool to the driver
func (b *Backend) setMem(kind frame.Kind) error {
	p := b.pools[kind]
	slots := p.Slots()
	format := device.HALFormat(p.Stream().Format)

	meta := make([]device.Meta, len(slots))
	for i, slot := range slots {
		meta[i] = device.MetaFromFrame(slot, len(slots), format)
	}

	var err error
	if kind == frame.KindPreview {
		if err = b.dev.SetPreviewMem(meta); err == nil && b.mem == nil {
			err = b.dev.SetTLBBase(b.tlbBase)
		}
	} else {
		err = b.dev.SetCaptureMem(meta)
	}
	if err != nil {
		return fmt.Errorf("cim: set %s mem: %w: %w", kind, backend.ErrHardwareControl, err)
	}
	return nil
}

func (b *Backend) FreeStream(kind frame.Kind) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if kind != frame.KindPreview && kind != frame.KindCapture {
		return nil
	}

	p := b.pools[kind]
	b.pools[kind] = nil
	if kind == frame.KindCapture {
		b.captureFrame = 0
	}

	if err := p.Free(); err != nil {
		return fmt.Errorf("cim: free %s: %w", kind, err)
	}
	return nil
}

// Stream returns the allocated stream of that kind, zero when free.
func (b *Backend) Stream(kind frame.Kind) frame.Stream {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p := b.pools[kind]; p.Size() > 0 {
		return p.Stream()
	}
	return frame.Stream{Kind: kind}
}

func (b *Backend) CurrentFrame(capture bool) (frame.Descriptor, error) {
	b.mu.Lock()
	dev := b.dev
	b.mu.Unlock()

	if dev == nil {
		return frame.Descriptor{}, fmt.Errorf("cim: get frame: %w", backend.ErrDeviceUnavailable)
	}

	var addr uint64
	var err error

	kind := frame.KindPreview
	if capture {
		kind = frame.KindCapture
		b.mu.Lock()
		addr = b.captureFrame
		b.mu.Unlock()
	} else if addr, err = dev.GetFrame(); err != nil {
		if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
			return frame.Descriptor{}, fmt.Errorf("cim: get frame: %w: %w", backend.ErrFrameUnavailable, err)
		}
		return frame.Descriptor{}, fmt.Errorf("cim: get frame: %w: %w", backend.ErrHardwareControl, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	p := b.pools[kind]
	if p.Size() == 0 {
		return frame.Descriptor{}, fmt.Errorf("cim: %s not allocated: %w", kind, backend.ErrFrameUnavailable)
	}

	var d frame.Descriptor
	var ok bool
	if b.mem != nil {
		d, ok = p.FindPhys(addr)
	} else {
		d, ok = p.FindVirt(uintptr(addr))
	}
	if !ok {
		return frame.Descriptor{}, fmt.Errorf("cim: unknown %s frame 0x%x: %w", kind, addr, backend.ErrFrameUnavailable)
	}

	return d, nil
}

var modeCommands = map[backend.Mode]uint32{
	backend.ModeWhiteBalance: device.CPCMD_SET_BALANCE,
	backend.ModeEffect:       device.CPCMD_SET_EFFECT,
	backend.ModeFlash:        device.CPCMD_SET_FLASH_MODE,
	backend.ModeFocus:        device.CPCMD_SET_FOCUS_MODE,
	backend.ModeScene:        device.CPCMD_SET_SCENE_MODE,
	backend.ModeAntibanding:  device.CPCMD_SET_ANTIBANDING,
}

func (b *Backend) SetMode(mode backend.Mode, value int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cmd, ok := modeCommands[mode]
	if !ok {
		return fmt.Errorf("cim: mode %s: %w", mode, backend.ErrUnsupported)
	}
	if b.dev == nil {
		return fmt.Errorf("cim: mode %s: %w", mode, backend.ErrDeviceUnavailable)
	}
	if err := b.dev.SetParam(uint32(uint16(value)) | cmd); err != nil {
		return fmt.Errorf("cim: mode %s: %w: %w", mode, backend.ErrHardwareControl, err)
	}
	return nil
}

func (b *Backend) SendCommand(cmd backend.Command) error {
	b.mu.Lock()
	dev := b.dev
	b.mu.Unlock()

	if dev == nil {
		return fmt.Errorf("cim: %s: %w", backend.CommandName(cmd), backend.ErrDeviceUnavailable)
	}

	var err error

	switch cmd.(type) {
	case backend.FocusInit:
		err = dev.AutofocusInit()
	case backend.StartFocus:
		err = dev.Autofocus()
	case backend.StartPreview:
		err = dev.StartPreview()
	case backend.StopPreview:
		err = dev.Shutdown()
	case backend.TakePicture:
		var addr uint64
		if addr, err = dev.StartCapture(); err == nil && addr == 0 {
			err = errors.New("no capture frame")
		}
		b.mu.Lock()
		b.captureFrame = addr
		b.mu.Unlock()
	case backend.StopPicture:
		b.log.Trace().Msg("[cim] stop picture")
	default:
		// zoom and face detection are not handled by the controller
		return nil
	}

	if err != nil {
		return fmt.Errorf("cim: %s: %w: %w", backend.CommandName(cmd), backend.ErrHardwareControl, err)
	}
	return nil
}

func (b *Backend) SetParam(param backend.Param) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dev == nil {
		return fmt.Errorf("cim: set param: %w", backend.ErrDeviceUnavailable)
	}

	switch p := param.(type) {
	case backend.PreviewResolution:
		if err := b.check(p.Format, p.Width, p.Height, false); err != nil {
			return err
		}
		b.previewFormat = p.Format
		if err := b.dev.SetPreviewSize(p.Width, p.Height); err != nil {
			return fmt.Errorf("cim: preview size: %w: %w", backend.ErrHardwareControl, err)
		}
		if err := b.dev.SetPreviewFormat(device.HALFormat(p.Format)); err != nil {
			b.log.Warn().Err(err).Msg("[cim] preview format")
		}
	case backend.CaptureResolution:
		if err := b.check(p.Format, p.Width, p.Height, true); err != nil {
			return err
		}
		b.captureFormat = p.Format
		if err := b.dev.SetCaptureSize(p.Width, p.Height); err != nil {
			return fmt.Errorf("cim: capture size: %w: %w", backend.ErrHardwareControl, err)
		}
		if err := b.dev.SetCaptureFormat(device.HALFormat(p.Format)); err != nil {
			b.log.Warn().Err(err).Msg("[cim] capture format")
		}
	}
	return nil
}

// check validates against the cached capability table, if any
func (b *Backend) check(format frame.Format, width, height int, capture bool) error {
	switch format {
	case frame.FormatUnknown, frame.FormatRGB888, frame.FormatRGBA8888:
		return fmt.Errorf("cim: format %s: %w", format, backend.ErrUnsupported)
	}
	if b.info == nil {
		return nil
	}
	sizes := b.info.PreviewSizes
	if capture {
		sizes = b.info.CaptureSizes
	}
	if len(sizes) > 0 && !backend.Supports(sizes, width, height) {
		return fmt.Errorf("cim: size %dx%d: %w", width, height, backend.ErrUnsupported)
	}
	return nil
}

func (b *Backend) SensorCount() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.open(); err != nil {
		return 0, err
	}
	n, err := b.dev.SensorCount()
	if err != nil {
		return 0, fmt.Errorf("cim: sensor count: %w: %w", backend.ErrHardwareControl, err)
	}
	return n, nil
}

func (b *Backend) SensorInfo() (*backend.SensorInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.info != nil {
		return b.info, nil
	}
	if b.dev == nil {
		return nil, fmt.Errorf("cim: sensor info: %w", backend.ErrDeviceUnavailable)
	}

	raw, err := b.dev.SensorInfo()
	if err != nil {
		return nil, fmt.Errorf("cim: sensor info: %w: %w", backend.ErrHardwareControl, err)
	}

	info := &backend.SensorInfo{
		ID:          raw.ID,
		Name:        raw.Name,
		Orientation: raw.Orientation,
		Modes: map[backend.Mode]uint32{
			backend.ModeWhiteBalance: uint32(raw.Modes.Balance),
			backend.ModeEffect:       uint32(raw.Modes.Effect),
			backend.ModeFlash:        uint32(raw.Modes.Flash),
			backend.ModeFocus:        uint32(raw.Modes.Focus),
			backend.ModeScene:        uint32(raw.Modes.Scene),
			backend.ModeAntibanding:  uint32(raw.Modes.Antibanding),
		},
	}
	if raw.Facing != 0 {
		info.Facing = backend.FacingFront
	}
	if info.PreviewSizes, err = b.dev.PreviewSizes(raw.PreviewNr); err != nil {
		return nil, fmt.Errorf("cim: preview sizes: %w: %w", backend.ErrHardwareControl, err)
	}
	if info.CaptureSizes, err = b.dev.CaptureSizes(raw.CaptureNr); err != nil {
		return nil, fmt.Errorf("cim: capture sizes: %w: %w", backend.ErrHardwareControl, err)
	}

	b.info = info
	return info, nil
}

func (b *Backend) PreviewFormat() frame.Format {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.previewFormat
}

func (b *Backend) CaptureFormat() frame.Format {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.captureFormat
}

// FrameInterval is unknown, the driver paces GetFrame itself.
func (b *Backend) FrameInterval() time.Duration {
	return 0
}

// PmemTotal is the physical pool size learned from the first allocation.
func (b *Backend) PmemTotal() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pmemTotal
}
