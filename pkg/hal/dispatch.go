package hal

import (
	"fmt"
	"time"

	"github.com/BAT6188/libcamera2/pkg/frame"
	"github.com/BAT6188/libcamera2/pkg/pool"
)

// SurfaceFormat is negotiated with every new surface.
const SurfaceFormat = frame.FormatRGB565

type snapshot struct {
	surface    Surface
	listener   Listener
	msgs       Msg
	params     Parameters
	recording  bool
	faceDetect bool
}

func (c *Controller) snapshot() (s snapshot) {
	c.cfg.Lock()
	s.surface = c.surface
	s.listener = c.listener
	s.msgs = c.msgs
	s.params = c.params
	s.recording = c.recording
	s.faceDetect = c.faceDetect && !c.facePaused
	c.cfg.Unlock()
	return
}

func (c *Controller) dispatchPreview(d frame.Descriptor, ts time.Time) {
	c.stats.Lock()
	c.stats.frames++
	c.stats.Unlock()

	s := c.snapshot()

	if s.listener != nil {
		if s.recording && s.msgs&MsgVideoFrame != 0 {
			c.dispatchVideo(s, d, ts)
		}
		if s.msgs&MsgPreviewFrame != 0 {
			c.dispatchCallback(s, d)
		}
		if s.faceDetect && s.msgs&MsgPreviewMetadata != 0 {
			c.dispatchFaces(s, d)
		}
	}

	if s.surface == nil {
		return
	}

	if c.dropped < c.warmup {
		c.dropped++
		return
	}

	if err := c.present(s.surface, d, ts); err != nil {
		c.log.Warn().Err(err).Msg("[hal] surface")
	}
}

// negotiate sets the surface geometry and pixel format for the preview
func (c *Controller) negotiate(s Surface, width, height int) error {
	if err := s.SetGeometry(width, height, SurfaceFormat); err != nil {
		return fmt.Errorf("hal: surface %dx%d %s: %w", width, height, SurfaceFormat, err)
	}
	c.surfNeg = s
	c.surfFormat = SurfaceFormat
	return nil
}

func (c *Controller) present(s Surface, d frame.Descriptor, ts time.Time) error {
	// surface replaced while running
	if s != c.surfNeg {
		if err := c.negotiate(s, d.Width, d.Height); err != nil {
			return err
		}
	}

	buf, err := s.Lock()
	if err != nil {
		return err
	}

	if err = c.conv.Convert(buf, c.surfFormat, d); err != nil {
		s.Cancel(buf)
		return err
	}

	return s.Enqueue(buf, ts)
}

// dispatchCallback hands the frame to the host in the preview format
func (c *Controller) dispatchCallback(s snapshot, d frame.Descriptor) {
	format := s.params.Preview.Format
	if format == frame.FormatUnknown || format == d.Format {
		s.listener.OnPreviewFrame(d)
		return
	}

	size := frame.FrameSize(format, d.Width, d.Height)
	if cap(c.cbBuf) < size {
		c.cbBuf = make([]byte, size)
	}
	buf := c.cbBuf[:size]

	if err := c.conv.Convert(buf, format, d); err != nil {
		c.log.Warn().Err(err).Msg("[hal] preview callback")
		return
	}

	s.listener.OnPreviewFrame(frame.NewDescriptor(d.Index, d.Width, d.Height, format, buf, 0))
}

func (c *Controller) prepareRecord(format frame.Format, width, height int) error {
	if format == frame.FormatUnknown {
		format = frame.FormatYUV420SP
	}

	c.cfg.Lock()
	defer c.cfg.Unlock()

	if c.record.Matches(width, height, format) {
		return nil
	}
	if err := c.record.Free(); err != nil {
		c.log.Warn().Err(err).Msg("[hal] free recording slots")
	}
	c.record = nil
	c.recBusy = nil

	p, err := pool.New(c.alloc, nil, frame.Stream{
		Kind:      frame.KindRecord,
		Width:     width,
		Height:    height,
		Format:    format,
		SlotCount: c.slots,
		SlotSize:  frame.FrameSize(format, width, height),
	})
	if err != nil {
		return err
	}

	c.record = p
	c.recBusy = make([]bool, c.slots)
	c.recNext = 0
	return nil
}

func (c *Controller) dispatchVideo(s snapshot, d frame.Descriptor, ts time.Time) {
	if err := c.prepareRecord(s.params.Video.Format, d.Width, d.Height); err != nil {
		c.log.Warn().Err(err).Msg("[hal] recording slots")
		return
	}

	c.cfg.Lock()
	i := c.recNext
	if c.recBusy[i] {
		c.cfg.Unlock()
		c.log.Trace().Msgf("[hal] video slot %d busy", i)
		return
	}
	c.recBusy[i] = true
	c.recNext = (i + 1) % len(c.recBusy)
	slot := c.record.Slot(i)
	c.cfg.Unlock()

	if err := c.conv.Convert(slot.Data, slot.Format, d); err != nil {
		c.ReleaseRecordingFrame(i)
		c.log.Warn().Err(err).Msg("[hal] video frame")
		return
	}

	s.listener.OnVideoFrame(slot, ts)
}

func (c *Controller) dispatchFaces(s snapshot, d frame.Descriptor) {
	if c.faces == nil {
		return
	}

	luma, err := c.luma(d)
	if err != nil {
		c.log.Trace().Err(err).Msg("[hal] face detect")
		return
	}

	faces, err := c.faces.Detect(luma, d.Width, d.Height)
	if err != nil {
		c.log.Debug().Err(err).Msg("[hal] face detect")
		return
	}

	s.listener.OnFaces(faces)
}

// luma copies plane 0 with stride equal to width
func (c *Controller) luma(d frame.Descriptor) ([]byte, error) {
	w, h := d.Width, d.Height
	if len(d.Data) < frame.FrameSize(d.Format, w, h) {
		return nil, fmt.Errorf("hal: short %s frame", d.Format)
	}

	if cap(c.lumaBuf) < w*h {
		c.lumaBuf = make([]byte, w*h)
	}
	dst := c.lumaBuf[:w*h]

	stride := d.Planes[0].Stride
	switch {
	case d.Format == frame.FormatYUV422I:
		for y := 0; y < h; y++ {
			row := d.Data[y*stride:]
			for x := 0; x < w; x++ {
				dst[y*w+x] = row[x*2]
			}
		}
	case d.Format.Planar420(), d.Format.SemiPlanar():
		for y := 0; y < h; y++ {
			copy(dst[y*w:(y+1)*w], d.Data[y*stride:])
		}
	default:
		return nil, fmt.Errorf("hal: no luma in %s", d.Format)
	}

	return dst, nil
}

func (c *Controller) dispatchCapture(d frame.Descriptor) error {
	s := c.snapshot()

	if s.listener != nil {
		if s.msgs&MsgShutter != 0 {
			s.listener.OnShutter()
		}
		if s.msgs&MsgRawImage != 0 {
			s.listener.OnRawImage(d)
		}
		if s.msgs&MsgCompressedImage != 0 {
			b, err := c.enc.Encode(d, s.params.Picture.Quality)
			if err != nil {
				return fmt.Errorf("hal: jpeg: %w", err)
			}
			s.listener.OnPicture(b)
		}
	}

	c.stats.Lock()
	c.stats.pictures++
	c.stats.Unlock()
	return nil
}
