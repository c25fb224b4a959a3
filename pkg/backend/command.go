package backend

import (
	"github.com/BAT6188/libcamera2/pkg/frame"
)

// Command is a control plane request with a payload shaped per command.
type Command interface {
	command() string
}

type (
	FocusInit       struct{}
	StartFocus      struct{}
	StartPreview    struct{}
	StopPreview     struct{}
	StopZoom        struct{}
	StartFaceDetect struct{}
	StopFaceDetect  struct{}
	PauseFaceDetect struct{}
	StopPicture     struct{}

	StartZoom struct {
		Level int
	}

	TakePicture struct {
		Width  int
		Height int
	}
)

func (FocusInit) command() string       { return "focus_init" }
func (StartFocus) command() string      { return "start_focus" }
func (StartPreview) command() string    { return "start_preview" }
func (StopPreview) command() string     { return "stop_preview" }
func (StartZoom) command() string       { return "start_zoom" }
func (StopZoom) command() string        { return "stop_zoom" }
func (StartFaceDetect) command() string { return "start_face_detect" }
func (StopFaceDetect) command() string  { return "stop_face_detect" }
func (PauseFaceDetect) command() string { return "pause_face_detect" }
func (TakePicture) command() string     { return "take_picture" }
func (StopPicture) command() string     { return "stop_picture" }

// CommandName is used for logging.
func CommandName(cmd Command) string {
	if cmd == nil {
		return "nil"
	}
	return cmd.command()
}

// Param configures a stream geometry before allocation.
type Param interface {
	param() frame.Kind
}

type PreviewResolution struct {
	Width, Height int
	Format        frame.Format
}

type CaptureResolution struct {
	Width, Height int
	Format        frame.Format
}

func (PreviewResolution) param() frame.Kind { return frame.KindPreview }
func (CaptureResolution) param() frame.Kind { return frame.KindCapture }

// ParamKind returns the stream a parameter applies to.
func ParamKind(p Param) frame.Kind {
	return p.param()
}

// Mode is a sensor setting kind.
type Mode byte

const (
	ModeWhiteBalance Mode = iota
	ModeEffect
	ModeFlash
	ModeFocus
	ModeScene
	ModeAntibanding
)

var modeNames = []string{"white_balance", "effect", "flash", "focus", "scene", "antibanding"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "unknown"
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func ParseMode(s string) (Mode, bool) {
	for i, name := range modeNames {
		if name == s {
			return Mode(i), true
		}
	}
	return 0, false
}
