package hal

import (
	"image"
	"time"

	"github.com/BAT6188/libcamera2/pkg/frame"
)

// Msg is a bit mask of the callbacks the host wants.
type Msg uint32

const (
	MsgError           Msg = 0x0001
	MsgShutter         Msg = 0x0002
	MsgFocus           Msg = 0x0004
	MsgZoom            Msg = 0x0008
	MsgPreviewFrame    Msg = 0x0010
	MsgVideoFrame      Msg = 0x0020
	MsgPostviewFrame   Msg = 0x0040
	MsgRawImage        Msg = 0x0080
	MsgCompressedImage Msg = 0x0100
	MsgRawImageNotify  Msg = 0x0200
	MsgPreviewMetadata Msg = 0x0400
	MsgFocusMove       Msg = 0x0800
	MsgAll             Msg = 0xffff
)

// Surface is the presentation window, one buffer per frame:
// lock, write pixels, then enqueue or cancel.
type Surface interface {
	SetGeometry(width, height int, format frame.Format) error
	Lock() ([]byte, error)
	Enqueue(buf []byte, ts time.Time) error
	Cancel(buf []byte)
}

// Listener receives the data and notify callbacks. All calls are made
// from the worker goroutine, except OnFocus.
type Listener interface {
	OnError(err error)
	OnShutter()
	OnFocus(ok bool)
	OnPreviewFrame(d frame.Descriptor)
	OnVideoFrame(d frame.Descriptor, ts time.Time)
	OnRawImage(d frame.Descriptor)
	OnPicture(jpeg []byte)
	OnFaces(faces []Face)
}

// Callbacks implements Listener with optional funcs.
type Callbacks struct {
	Error        func(err error)
	Shutter      func()
	Focus        func(ok bool)
	PreviewFrame func(d frame.Descriptor)
	VideoFrame   func(d frame.Descriptor, ts time.Time)
	RawImage     func(d frame.Descriptor)
	Picture      func(jpeg []byte)
	Faces        func(faces []Face)
}

func (c *Callbacks) OnError(err error) {
	if c.Error != nil {
		c.Error(err)
	}
}

func (c *Callbacks) OnShutter() {
	if c.Shutter != nil {
		c.Shutter()
	}
}

func (c *Callbacks) OnFocus(ok bool) {
	if c.Focus != nil {
		c.Focus(ok)
	}
}

func (c *Callbacks) OnPreviewFrame(d frame.Descriptor) {
	if c.PreviewFrame != nil {
		c.PreviewFrame(d)
	}
}

func (c *Callbacks) OnVideoFrame(d frame.Descriptor, ts time.Time) {
	if c.VideoFrame != nil {
		c.VideoFrame(d, ts)
	}
}

func (c *Callbacks) OnRawImage(d frame.Descriptor) {
	if c.RawImage != nil {
		c.RawImage(d)
	}
}

func (c *Callbacks) OnPicture(jpeg []byte) {
	if c.Picture != nil {
		c.Picture(jpeg)
	}
}

func (c *Callbacks) OnFaces(faces []Face) {
	if c.Faces != nil {
		c.Faces(faces)
	}
}

type Face struct {
	Rect  image.Rectangle `json:"rect"`
	Score int             `json:"score"`
}

// FaceDetector works on a luma plane with stride equal to width.
type FaceDetector interface {
	Detect(luma []byte, width, height int) ([]Face, error)
}
