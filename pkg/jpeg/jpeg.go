// Package jpeg encodes captured frames for the picture callback.
package jpeg

import (
	"bytes"
	"image/jpeg"

	"github.com/BAT6188/libcamera2/pkg/convert"
	"github.com/BAT6188/libcamera2/pkg/frame"
)

const DefaultQuality = 90

type Encoder interface {
	Encode(src frame.Descriptor, quality int) ([]byte, error)
}

type Default struct{}

func (Default) Encode(src frame.Descriptor, quality int) ([]byte, error) {
	return Encode(src, quality)
}

// Encode returns a baseline JPEG, quality out of 1..100 uses the default.
func Encode(src frame.Descriptor, quality int) ([]byte, error) {
	img, err := convert.ToImage(src)
	if err != nil {
		return nil, err
	}

	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}

	buf := bytes.NewBuffer(make([]byte, 0, src.Width*src.Height/4))
	if err = jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
