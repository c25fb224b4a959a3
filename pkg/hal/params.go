package hal

import (
	"fmt"

	"github.com/BAT6188/libcamera2/pkg/frame"
)

type Parameters struct {
	Preview struct {
		Width  int          `yaml:"width" json:"width"`
		Height int          `yaml:"height" json:"height"`
		Format frame.Format `yaml:"format" json:"format"`
		FPS    int          `yaml:"fps" json:"fps"`
	} `yaml:"preview" json:"preview"`

	Picture struct {
		Width   int `yaml:"width" json:"width"`
		Height  int `yaml:"height" json:"height"`
		Quality int `yaml:"quality" json:"quality"`
	} `yaml:"picture" json:"picture"`

	Video struct {
		Format frame.Format `yaml:"format" json:"format"`
		// Hint prepares the recording slots on preview start
		Hint bool `yaml:"recording_hint" json:"recording_hint"`
	} `yaml:"video" json:"video"`
}

func DefaultParameters() Parameters {
	var p Parameters
	p.Preview.Width = 640
	p.Preview.Height = 480
	p.Preview.Format = frame.FormatYUV420SP
	p.Preview.FPS = 25
	p.Picture.Width = 1280
	p.Picture.Height = 720
	p.Picture.Quality = 90
	p.Video.Format = frame.FormatYUV420SP
	return p
}

func (p *Parameters) Validate() error {
	if p.Preview.Width <= 0 || p.Preview.Height <= 0 {
		return fmt.Errorf("hal: bad preview size %dx%d", p.Preview.Width, p.Preview.Height)
	}
	if p.Picture.Width <= 0 || p.Picture.Height <= 0 {
		return fmt.Errorf("hal: bad picture size %dx%d", p.Picture.Width, p.Picture.Height)
	}
	if p.Picture.Quality < 0 || p.Picture.Quality > 100 {
		return fmt.Errorf("hal: bad jpeg quality %d", p.Picture.Quality)
	}
	if p.Preview.FPS < 0 {
		return fmt.Errorf("hal: bad preview fps %d", p.Preview.FPS)
	}
	return nil
}

func (p *Parameters) String() string {
	return fmt.Sprintf(
		"preview-size=%dx%d;preview-format=%s;preview-frame-rate=%d;picture-size=%dx%d;jpeg-quality=%d;video-frame-format=%s;recording-hint=%t",
		p.Preview.Width, p.Preview.Height, p.Preview.Format, p.Preview.FPS,
		p.Picture.Width, p.Picture.Height, p.Picture.Quality, p.Video.Format, p.Video.Hint,
	)
}
