package device

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/BAT6188/libcamera2/pkg/ioctl"
	"golang.org/x/sys/unix"
)

type Device struct {
	fd   int
	bufs [][]byte
}

func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	return &Device{fd: fd}, nil
}

func (d *Device) Capability() (*Capability, error) {
	c := v4l2_capability{}
	if err := ioctl.Ioctl(d.fd, VIDIOC_QUERYCAP, unsafe.Pointer(&c)); err != nil {
		return nil, err
	}
	caps := c.capabilities
	if c.device_caps != 0 {
		caps = c.device_caps
	}
	return &Capability{
		Driver:       ioctl.Str(c.driver[:]),
		Card:         ioctl.Str(c.card[:]),
		BusInfo:      ioctl.Str(c.bus_info[:]),
		Version:      fmt.Sprintf("%d.%d.%d", byte(c.version>>16), byte(c.version>>8), byte(c.version)),
		Capabilities: caps,
	}, nil
}

// ResetCrop selects the default crop rectangle. Many drivers do not
// support cropping and the error can be ignored.
func (d *Device) ResetCrop() error {
	cc := v4l2_cropcap{typ: V4L2_BUF_TYPE_VIDEO_CAPTURE}
	if err := ioctl.Ioctl(d.fd, VIDIOC_CROPCAP, unsafe.Pointer(&cc)); err != nil {
		return err
	}
	c := v4l2_crop{typ: V4L2_BUF_TYPE_VIDEO_CAPTURE, c: cc.defrect}
	return ioctl.Ioctl(d.fd, VIDIOC_S_CROP, unsafe.Pointer(&c))
}

func (d *Device) ListFormats() ([]uint32, error) {
	var items []uint32

	for i := uint32(0); ; i++ {
		fd := v4l2_fmtdesc{
			index: i,
			typ:   V4L2_BUF_TYPE_VIDEO_CAPTURE,
		}
		if err := ioctl.Ioctl(d.fd, VIDIOC_ENUM_FMT, unsafe.Pointer(&fd)); err != nil {
			if !errors.Is(err, unix.EINVAL) {
				return nil, err
			}
			break
		}

		items = append(items, fd.pixelformat)
	}

	return items, nil
}

func (d *Device) ListSizes(pixFmt uint32) ([][2]uint32, error) {
	var items [][2]uint32

	for i := uint32(0); ; i++ {
		fs := v4l2_frmsizeenum{
			index:        i,
			pixel_format: pixFmt,
		}
		if err := ioctl.Ioctl(d.fd, VIDIOC_ENUM_FRAMESIZES, unsafe.Pointer(&fs)); err != nil {
			if !errors.Is(err, unix.EINVAL) {
				return nil, err
			}
			break
		}

		if fs.typ != V4L2_FRMSIZE_TYPE_DISCRETE {
			continue
		}

		items = append(items, [2]uint32{fs.discrete.width, fs.discrete.height})
	}

	return items, nil
}

func (d *Device) ListFrameRates(pixFmt, width, height uint32) ([]uint32, error) {
	var items []uint32

	for i := uint32(0); ; i++ {
		fi := v4l2_frmivalenum{
			index:        i,
			pixel_format: pixFmt,
			width:        width,
			height:       height,
		}
		if err := ioctl.Ioctl(d.fd, VIDIOC_ENUM_FRAMEINTERVALS, unsafe.Pointer(&fi)); err != nil {
			if !errors.Is(err, unix.EINVAL) {
				return nil, err
			}
			break
		}

		if fi.typ != V4L2_FRMIVAL_TYPE_DISCRETE || fi.discrete.numerator != 1 {
			continue
		}

		items = append(items, fi.discrete.denominator)
	}

	return items, nil
}

func (d *Device) TryFormat(width, height int, pixFmt uint32) (PixFormat, error) {
	return d.format(VIDIOC_TRY_FMT, width, height, pixFmt)
}

func (d *Device) SetFormat(width, height int, pixFmt uint32) (PixFormat, error) {
	return d.format(VIDIOC_S_FMT, width, height, pixFmt)
}

func (d *Device) format(req uint, width, height int, pixFmt uint32) (PixFormat, error) {
	f := v4l2_format{
		typ: V4L2_BUF_TYPE_VIDEO_CAPTURE,
		pix: v4l2_pix_format{
			width:       uint32(width),
			height:      uint32(height),
			pixelformat: pixFmt,
			field:       V4L2_FIELD_ANY,
			colorspace:  V4L2_COLORSPACE_DEFAULT,
		},
	}
	if err := ioctl.Ioctl(d.fd, req, unsafe.Pointer(&f)); err != nil {
		return PixFormat{}, err
	}
	return PixFormat{
		Width:        int(f.pix.width),
		Height:       int(f.pix.height),
		PixelFormat:  f.pix.pixelformat,
		BytesPerLine: int(f.pix.bytesperline),
		SizeImage:    int(f.pix.sizeimage),
	}, nil
}

func (d *Device) SetFrameRate(fps uint32) error {
	p := v4l2_streamparm{
		typ: V4L2_BUF_TYPE_VIDEO_CAPTURE,
		capture: v4l2_captureparm{
			timeperframe: v4l2_fract{numerator: 1, denominator: fps},
		},
	}
	return ioctl.Ioctl(d.fd, VIDIOC_S_PARM, unsafe.Pointer(&p))
}

func (d *Device) SetControl(id uint32, value int32) error {
	c := v4l2_control{id: id, value: value}
	return ioctl.Ioctl(d.fd, VIDIOC_S_CTRL, unsafe.Pointer(&c))
}

// RequestBuffers asks the driver for n mmap buffers and returns how many
// it granted. Zero releases the ring, mapped buffers must be unmapped first.
func (d *Device) RequestBuffers(n int) (int, error) {
	rb := v4l2_requestbuffers{
		count:  uint32(n),
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}
	if err := ioctl.Ioctl(d.fd, VIDIOC_REQBUFS, unsafe.Pointer(&rb)); err != nil {
		return 0, err
	}
	d.bufs = make([][]byte, rb.count)
	return int(rb.count), nil
}

func (d *Device) MapBuffer(i int) ([]byte, error) {
	qb := v4l2_buffer{
		index:  uint32(i),
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}
	if err := ioctl.Ioctl(d.fd, VIDIOC_QUERYBUF, unsafe.Pointer(&qb)); err != nil {
		return nil, err
	}

	b, err := unix.Mmap(d.fd, int64(qb.offset), int(qb.length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}

	d.bufs[i] = b
	return b, nil
}

func (d *Device) UnmapBuffers() error {
	var errs []error
	for i, b := range d.bufs {
		if b != nil {
			errs = append(errs, unix.Munmap(b))
			d.bufs[i] = nil
		}
	}
	return errors.Join(errs...)
}

func (d *Device) Queue(i int) error {
	qb := v4l2_buffer{
		index:  uint32(i),
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}
	return ioctl.Ioctl(d.fd, VIDIOC_QBUF, unsafe.Pointer(&qb))
}

// Dequeue blocks until the driver fills a buffer.
func (d *Device) Dequeue() (index, bytesUsed int, err error) {
	dq := v4l2_buffer{
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}
	if err = ioctl.Ioctl(d.fd, VIDIOC_DQBUF, unsafe.Pointer(&dq)); err != nil {
		return
	}
	return int(dq.index), int(dq.bytesused), nil
}

func (d *Device) StreamOn() error {
	typ := uint32(V4L2_BUF_TYPE_VIDEO_CAPTURE)
	return ioctl.Ioctl(d.fd, VIDIOC_STREAMON, unsafe.Pointer(&typ))
}

// StreamOff also returns all queued buffers to user space.
func (d *Device) StreamOff() error {
	typ := uint32(V4L2_BUF_TYPE_VIDEO_CAPTURE)
	return ioctl.Ioctl(d.fd, VIDIOC_STREAMOFF, unsafe.Pointer(&typ))
}

func (d *Device) Close() error {
	return unix.Close(d.fd)
}
