package device

import (
	"fmt"
)

type Capability struct {
	Driver       string
	Card         string
	BusInfo      string
	Version      string
	Capabilities uint32
}

// CanStream reports video capture with mmap streaming I/O.
func (c *Capability) CanStream() bool {
	const need = V4L2_CAP_VIDEO_CAPTURE | V4L2_CAP_STREAMING
	return c.Capabilities&need == need
}

// PixFormat is the format the driver agreed to.
type PixFormat struct {
	Width        int
	Height       int
	PixelFormat  uint32
	BytesPerLine int
	SizeImage    int
}

func (f PixFormat) String() string {
	return fmt.Sprintf("%s %dx%d", FourCCString(f.PixelFormat), f.Width, f.Height)
}
