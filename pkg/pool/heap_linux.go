package pool

import (
	"golang.org/x/sys/unix"
)

// Heap allocates anonymous shared memory. It has no physical address and
// is used when no contiguous memory device is present.
type Heap struct{}

func (Heap) Alloc(size int) (*Region, error) {
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, err
	}
	return &Region{
		Data: b,
		Release: func() error {
			return unix.Munmap(b)
		},
	}, nil
}
