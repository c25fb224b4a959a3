package device

import (
	"unsafe"

	"github.com/BAT6188/libcamera2/pkg/ioctl"
)

// control codes of the Ingenic CIM driver, passed without size encoding
const (
	CIMIO_SHUTDOWN          = 0x01
	CIMIO_START_PREVIEW     = 0x02
	CIMIO_START_CAPTURE     = 0x03
	CIMIO_GET_FRAME         = 0x04
	CIMIO_GET_SENSORINFO    = 0x05
	CIMIO_GET_VAR           = 0x06
	CIMIO_GET_SUPPORT_PSIZE = 0x07
	CIMIO_SET_PARAM         = 0x08
	CIMIO_SET_PREVIEW_MEM   = 0x09
	CIMIO_SET_CAPTURE_MEM   = 0x0a
	CIMIO_SELECT_SENSOR     = 0x0b
	CIMIO_DO_FOCUS          = 0x0c
	CIMIO_AF_INIT           = 0x0d
	CIMIO_GET_SENSOR_COUNT  = 0x0e
	CIMIO_SET_PREVIEW_SIZE  = 0x0f
	CIMIO_SET_CAPTURE_SIZE  = 0x10
	CIMIO_GET_SUPPORT_CSIZE = 0x11
	CIMIO_SET_VIDEO_MEM     = 0x12
	CIMIO_STOP_PREVIEW      = 0x13
	CIMIO_SET_TLB_BASE      = 0x14
	CIMIO_SET_PREVIEW_FMT   = 0x15
	CIMIO_SET_CAPTURE_FMT   = 0x16
)

// set param commands, or-ed with the mode value
const (
	CPCMD_SET_BALANCE     = 0x1 << 16
	CPCMD_SET_EFFECT      = 0x2 << 16
	CPCMD_SET_ANTIBANDING = 0x3 << 16
	CPCMD_SET_FLASH_MODE  = 0x4 << 16
	CPCMD_SET_SCENE_MODE  = 0x5 << 16
	CPCMD_SET_FOCUS_MODE  = 0x7 << 16
)

// HAL pixel formats understood by the driver
const (
	HAL_PIXEL_FORMAT_RGB_565      = 0x04
	HAL_PIXEL_FORMAT_YV12         = 0x32315659
	HAL_PIXEL_FORMAT_YCbCr_422_SP = 0x10
	HAL_PIXEL_FORMAT_YCrCb_420_SP = 0x11
	HAL_PIXEL_FORMAT_YCbCr_422_I  = 0x14
	HAL_PIXEL_FORMAT_JZ_YUV_420_P = 0x47700001
	HAL_PIXEL_FORMAT_JZ_YUV_420_B = 0x47700002
)

const (
	maxResolutions = 16
	maxSensorName  = 32
	maxSlots       = 8
)

type sensor_info struct {
	sensor_id          uint32
	name               [maxSensorName]byte
	facing             int32
	orientation        int32
	prev_resolution_nr uint32
	cap_resolution_nr  uint32
	modes              mode_bit_map
}

type mode_bit_map struct {
	balance     uint16
	effect      uint16
	antibanding uint16
	flash_mode  uint16
	scene_mode  uint16
	focus_mode  uint16
	fps         uint16
	_           uint16
}

type frm_size struct {
	w uint32
	h uint32
}

// camera_yuv_meta is passed as an array, one entry per slot
type camera_yuv_meta struct {
	index   int32
	width   int32
	height  int32
	yPhy    uint32
	uPhy    uint32
	vPhy    uint32
	yAddr   uint32
	uAddr   uint32
	vAddr   uint32
	yStride int32
	uStride int32
	vStride int32
	count   int32
	format  int32
}

// Android pmem driver
var (
	PMEM_GET_PHYS       = ioctl.IOW('p', 1, unsafe.Sizeof(uint32(0)))
	PMEM_GET_TOTAL_SIZE = ioctl.IOW('p', 7, unsafe.Sizeof(uint32(0)))
)

type pmem_region struct {
	offset uintptr
	len    uintptr
}

// Ingenic dmmu driver
var (
	DMMU_GET_PAGE_TABLE_BASE_PHYS = ioctl.IOR('d', 0x01, unsafe.Sizeof(uint32(0)))
	DMMU_MAP_USER_MEM             = ioctl.IOWR('d', 0x02, unsafe.Sizeof(dmmu_mem_info{}))
	DMMU_UNMAP_USER_MEM           = ioctl.IOW('d', 0x03, unsafe.Sizeof(dmmu_mem_info{}))
)

type dmmu_mem_info struct {
	size                  int32
	page_count            int32
	paddr                 uint32
	vaddr                 uintptr
	pages_phys_addr_table uintptr
	start_offset          uint32
	end_offset            uint32
}
