package pool

import (
	"errors"
	"fmt"

	"github.com/BAT6188/libcamera2/pkg/frame"
)

var ErrAllocation = errors.New("pool: allocation failed")

const pageSize = 0x1000

// Region is one contiguous allocation. Phys is zero when the memory has
// no device visible physical address.
type Region struct {
	Data    []byte
	Phys    uint64
	Release func() error
}

type Allocator interface {
	Alloc(size int) (*Region, error)
}

// Mapper maps a region into the device I/O address space.
type Mapper interface {
	Map(data []byte) error
	Unmap(data []byte) error
}

type NopMapper struct{}

func (NopMapper) Map([]byte) error   { return nil }
func (NopMapper) Unmap([]byte) error { return nil }

// Pool is the backing memory of one stream split into equal slots.
type Pool struct {
	stream frame.Stream
	region *Region
	mapper Mapper
	mapped bool
	slots  []frame.Descriptor
}

// New allocates, touches, maps and lays out a pool for the stream.
// On any failure nothing stays allocated.
func New(alloc Allocator, mapper Mapper, s frame.Stream) (*Pool, error) {
	if s.SlotCount <= 0 || s.SlotSize <= 0 {
		return nil, fmt.Errorf("%w: bad stream %dx%d", ErrAllocation, s.SlotCount, s.SlotSize)
	}
	if need := frame.FrameSize(s.Format, s.Width, s.Height); need > s.SlotSize {
		return nil, fmt.Errorf("%w: slot %d less than frame %d", ErrAllocation, s.SlotSize, need)
	}
	if mapper == nil {
		mapper = NopMapper{}
	}

	size := s.SlotSize * s.SlotCount

	region, err := alloc.Alloc(size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllocation, err)
	}
	if len(region.Data) < size {
		release(region)
		return nil, fmt.Errorf("%w: short region %d < %d", ErrAllocation, len(region.Data), size)
	}

	touch(region.Data[:size])

	if err = mapper.Map(region.Data[:size]); err != nil {
		release(region)
		return nil, fmt.Errorf("%w: map: %w", ErrAllocation, err)
	}

	p := &Pool{stream: s, region: region, mapper: mapper, mapped: true}

	p.slots = make([]frame.Descriptor, s.SlotCount)
	for i := range p.slots {
		data := region.Data[i*s.SlotSize : (i+1)*s.SlotSize]
		var phys uint64
		if region.Phys != 0 {
			phys = region.Phys + uint64(i*s.SlotSize)
		}
		p.slots[i] = frame.NewDescriptor(i, s.Width, s.Height, s.Format, data, phys)
	}

	return p, nil
}

// touch forces physical backing of every page
func touch(b []byte) {
	for i := 0; i < len(b); i += pageSize {
		b[i] = 0xff
	}
	if n := len(b); n > 0 {
		b[n-1] = 0xff
	}
}

func release(r *Region) {
	if r.Release != nil {
		_ = r.Release()
	}
}

func (p *Pool) Stream() frame.Stream {
	return p.stream
}

func (p *Pool) Kind() frame.Kind {
	return p.stream.Kind
}

// Size of the whole allocation, zero after Free.
func (p *Pool) Size() int {
	if p == nil || p.region == nil {
		return 0
	}
	return p.stream.Footprint()
}

func (p *Pool) Len() int {
	return len(p.slots)
}

func (p *Pool) Mapped() bool {
	return p != nil && p.mapped
}

func (p *Pool) Phys() uint64 {
	if p.region == nil {
		return 0
	}
	return p.region.Phys
}

// Matches reports whether a request can reuse this pool as is.
func (p *Pool) Matches(width, height int, format frame.Format) bool {
	return p != nil && p.region != nil &&
		p.stream.Width == width && p.stream.Height == height && p.stream.Format == format
}

// Slot returns a copy of slot i template.
func (p *Pool) Slot(i int) frame.Descriptor {
	return p.slots[i]
}

// Slots returns copies of all slot templates.
func (p *Pool) Slots() []frame.Descriptor {
	return append([]frame.Descriptor(nil), p.slots...)
}

func (p *Pool) FindVirt(addr uintptr) (frame.Descriptor, bool) {
	for _, slot := range p.slots {
		if slot.Addr() == addr {
			return slot, true
		}
	}
	return frame.Descriptor{}, false
}

func (p *Pool) FindPhys(addr uint64) (frame.Descriptor, bool) {
	if addr == 0 {
		return frame.Descriptor{}, false
	}
	for _, slot := range p.slots {
		if slot.Phys() == addr {
			return slot, true
		}
	}
	return frame.Descriptor{}, false
}

// Free unmaps and then releases the memory. Safe to call on a nil or
// already freed pool.
func (p *Pool) Free() error {
	if p == nil || p.region == nil {
		return nil
	}

	var errs []error

	if p.mapped {
		if err := p.mapper.Unmap(p.region.Data[:p.stream.Footprint()]); err != nil {
			errs = append(errs, err)
		}
		p.mapped = false
	}

	if p.region.Release != nil {
		if err := p.region.Release(); err != nil {
			errs = append(errs, err)
		}
	}

	p.region = nil
	p.slots = nil
	p.stream.SlotCount = 0
	p.stream.SlotSize = 0

	return errors.Join(errs...)
}
