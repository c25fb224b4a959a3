package frame

import (
	"fmt"
	"unsafe"
)

// Kind of stream a pool serves.
type Kind byte

const (
	KindPreview Kind = iota
	KindCapture
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindPreview:
		return "preview"
	case KindCapture:
		return "capture"
	case KindRecord:
		return "record"
	}
	return "unknown"
}

type Size struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Stream describes an allocated set of equal slots.
type Stream struct {
	Kind      Kind   `json:"kind"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Format    Format `json:"format"`
	SlotCount int    `json:"slot_count"`
	SlotSize  int    `json:"slot_size"`
}

func (s Stream) Footprint() int {
	return s.SlotCount * s.SlotSize
}

// Descriptor is one completed frame. It is always passed by value and never
// outlives the call that produced it, except through Data which points into
// pool memory.
type Descriptor struct {
	Index  int
	Width  int
	Height int
	Format Format
	Planes Planes
	Data   []byte
}

// NewDescriptor lays out a frame over data. Virtual addresses are taken
// from data and physical addresses are offset from phys when non zero.
func NewDescriptor(index, width, height int, format Format, data []byte, phys uint64) Descriptor {
	d := Descriptor{
		Index:  index,
		Width:  width,
		Height: height,
		Format: format,
		Planes: Layout(format, width, height),
		Data:   data,
	}

	var base uintptr
	if len(data) > 0 {
		base = uintptr(unsafe.Pointer(&data[0]))
	}

	for i := range d.Planes {
		p := &d.Planes[i]
		p.Addr = base + uintptr(p.Offset)
		if phys != 0 {
			p.Phys = phys + uint64(p.Offset)
		}
	}

	return d
}

// Addr returns the slot base address (luma plane).
func (d *Descriptor) Addr() uintptr {
	return d.Planes[0].Addr
}

func (d *Descriptor) Phys() uint64 {
	return d.Planes[0].Phys
}

// Plane returns the bytes of plane i up to the end of the frame data.
func (d *Descriptor) Plane(i int) []byte {
	if off := d.Planes[i].Offset; off < len(d.Data) {
		return d.Data[off:]
	}
	return nil
}
