package device

import (
	"errors"
	"unsafe"

	"github.com/BAT6188/libcamera2/pkg/frame"
	"github.com/BAT6188/libcamera2/pkg/ioctl"
	"github.com/BAT6188/libcamera2/pkg/pool"
	"golang.org/x/sys/unix"
)

// Device is an open CIM control node.
type Device struct {
	fd int
}

func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	return &Device{fd: fd}, nil
}

func (d *Device) do(req uint, arg uintptr) (uintptr, error) {
	return ioctl.IoctlValue(d.fd, req, arg)
}

func (d *Device) SelectSensor(id int) error {
	_, err := d.do(CIMIO_SELECT_SENSOR, uintptr(id))
	return err
}

func (d *Device) SensorCount() (int, error) {
	n, err := d.do(CIMIO_GET_SENSOR_COUNT, 0)
	return int(n), err
}

func (d *Device) SensorInfo() (*SensorInfo, error) {
	var si sensor_info
	if err := ioctl.Ioctl(d.fd, CIMIO_GET_SENSORINFO, unsafe.Pointer(&si)); err != nil {
		return nil, err
	}
	return &SensorInfo{
		ID:          int(si.sensor_id),
		Name:        ioctl.Str(si.name[:]),
		Facing:      int(si.facing),
		Orientation: int(si.orientation),
		PreviewNr:   int(si.prev_resolution_nr),
		CaptureNr:   int(si.cap_resolution_nr),
		Modes: ModeMasks{
			Balance:     si.modes.balance,
			Effect:      si.modes.effect,
			Antibanding: si.modes.antibanding,
			Flash:       si.modes.flash_mode,
			Scene:       si.modes.scene_mode,
			Focus:       si.modes.focus_mode,
			FPS:         si.modes.fps,
		},
	}, nil
}

func (d *Device) PreviewSizes(n int) ([]frame.Size, error) {
	return d.sizes(CIMIO_GET_SUPPORT_PSIZE, n)
}

func (d *Device) CaptureSizes(n int) ([]frame.Size, error) {
	return d.sizes(CIMIO_GET_SUPPORT_CSIZE, n)
}

func (d *Device) sizes(req uint, n int) ([]frame.Size, error) {
	var table [maxResolutions]frm_size
	if err := ioctl.Ioctl(d.fd, req, unsafe.Pointer(&table)); err != nil {
		return nil, err
	}
	if n > maxResolutions {
		n = maxResolutions
	}
	sizes := make([]frame.Size, 0, n)
	for _, s := range table[:n] {
		sizes = append(sizes, frame.Size{Width: int(s.w), Height: int(s.h)})
	}
	return sizes, nil
}

func (d *Device) SetPreviewSize(width, height int) error {
	s := frm_size{w: uint32(width), h: uint32(height)}
	return ioctl.Ioctl(d.fd, CIMIO_SET_PREVIEW_SIZE, unsafe.Pointer(&s))
}

func (d *Device) SetCaptureSize(width, height int) error {
	s := frm_size{w: uint32(width), h: uint32(height)}
	return ioctl.Ioctl(d.fd, CIMIO_SET_CAPTURE_SIZE, unsafe.Pointer(&s))
}

func (d *Device) SetPreviewFormat(format uint32) error {
	_, err := d.do(CIMIO_SET_PREVIEW_FMT, uintptr(format))
	return err
}

func (d *Device) SetCaptureFormat(format uint32) error {
	_, err := d.do(CIMIO_SET_CAPTURE_FMT, uintptr(format))
	return err
}

func (d *Device) SetPreviewMem(meta []Meta) error {
	return d.setMem(CIMIO_SET_PREVIEW_MEM, meta)
}

func (d *Device) SetCaptureMem(meta []Meta) error {
	return d.setMem(CIMIO_SET_CAPTURE_MEM, meta)
}

func (d *Device) setMem(req uint, meta []Meta) error {
	if len(meta) == 0 || len(meta) > maxSlots {
		return errors.New("cim: bad slot count")
	}
	raw := make([]camera_yuv_meta, len(meta))
	for i, m := range meta {
		raw[i] = camera_yuv_meta{
			index:   int32(m.Index),
			width:   int32(m.Width),
			height:  int32(m.Height),
			yPhy:    uint32(m.YPhys),
			uPhy:    uint32(m.UPhys),
			vPhy:    uint32(m.VPhys),
			yAddr:   uint32(m.YAddr),
			uAddr:   uint32(m.UAddr),
			vAddr:   uint32(m.VAddr),
			yStride: int32(m.YStride),
			uStride: int32(m.UStride),
			vStride: int32(m.VStride),
			count:   int32(m.Count),
			format:  int32(m.Format),
		}
	}
	return ioctl.Ioctl(d.fd, req, unsafe.Pointer(&raw[0]))
}

func (d *Device) SetTLBBase(base uint32) error {
	_, err := d.do(CIMIO_SET_TLB_BASE, uintptr(base))
	return err
}

func (d *Device) SetParam(value uint32) error {
	_, err := d.do(CIMIO_SET_PARAM, uintptr(value))
	return err
}

func (d *Device) StartPreview() error {
	_, err := d.do(CIMIO_START_PREVIEW, 0)
	return err
}

func (d *Device) Shutdown() error {
	_, err := d.do(CIMIO_SHUTDOWN, 0)
	return err
}

func (d *Device) AutofocusInit() error {
	_, err := d.do(CIMIO_AF_INIT, 0)
	return err
}

func (d *Device) Autofocus() error {
	_, err := d.do(CIMIO_DO_FOCUS, 0)
	return err
}

// StartCapture triggers a still capture and returns the frame address.
func (d *Device) StartCapture() (uint64, error) {
	addr, err := d.do(CIMIO_START_CAPTURE, 0)
	return uint64(addr), err
}

// GetFrame blocks until the next preview frame and returns its address.
func (d *Device) GetFrame() (uint64, error) {
	addr, err := d.do(CIMIO_GET_FRAME, 0)
	return uint64(addr), err
}

func (d *Device) Close() error {
	return unix.Close(d.fd)
}

// Pmem allocates physically contiguous memory, one region per open.
type Pmem struct {
	Path string
}

func (p *Pmem) TotalSize() (int, error) {
	fd, err := unix.Open(p.Path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return 0, err
	}
	defer unix.Close(fd)

	var r pmem_region
	if err = ioctl.Ioctl(fd, PMEM_GET_TOTAL_SIZE, unsafe.Pointer(&r)); err != nil {
		return 0, err
	}
	return int(r.len), nil
}

func (p *Pmem) Alloc(size int) (*pool.Region, error) {
	fd, err := unix.Open(p.Path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}

	b, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	var r pmem_region
	if err = ioctl.Ioctl(fd, PMEM_GET_PHYS, unsafe.Pointer(&r)); err != nil {
		_ = unix.Munmap(b)
		_ = unix.Close(fd)
		return nil, err
	}

	return &pool.Region{
		Data: b,
		Phys: uint64(r.offset),
		Release: func() error {
			return errors.Join(unix.Munmap(b), unix.Close(fd))
		},
	}, nil
}

// DMMU maps user memory into the CIM IOMMU.
type DMMU struct {
	fd int
}

func OpenDMMU(path string) (*DMMU, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	return &DMMU{fd: fd}, nil
}

func (m *DMMU) TLBBase() (uint32, error) {
	var base uint32
	if err := ioctl.Ioctl(m.fd, DMMU_GET_PAGE_TABLE_BASE_PHYS, unsafe.Pointer(&base)); err != nil {
		return 0, err
	}
	return base, nil
}

func (m *DMMU) Map(b []byte) error {
	return m.mem(DMMU_MAP_USER_MEM, b)
}

func (m *DMMU) Unmap(b []byte) error {
	return m.mem(DMMU_UNMAP_USER_MEM, b)
}

func (m *DMMU) mem(req uint, b []byte) error {
	if len(b) == 0 {
		return nil
	}
	info := dmmu_mem_info{
		size:  int32(len(b)),
		vaddr: uintptr(unsafe.Pointer(&b[0])),
	}
	return ioctl.Ioctl(m.fd, req, unsafe.Pointer(&info))
}

func (m *DMMU) Close() error {
	return unix.Close(m.fd)
}
