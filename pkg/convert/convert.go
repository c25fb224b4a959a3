// Package convert renders frames between the pixel formats used by the
// capture backends, the presentation surface and the encoders.
package convert

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/BAT6188/libcamera2/pkg/frame"
)

var ErrUnsupported = errors.New("convert: unsupported conversion")

// Converter is stateless, one call per frame.
type Converter interface {
	// Normalize turns a raw streaming buffer with the given fourcc into
	// packed YUYV at dst with stride width*2.
	Normalize(dst, src []byte, fourcc uint32, width, height, srcStride int) error
	// Convert writes src into dst laid out by frame.Layout for format.
	Convert(dst []byte, format frame.Format, src frame.Descriptor) error
}

type Default struct{}

func (Default) Convert(dst []byte, format frame.Format, src frame.Descriptor) error {
	return Convert(dst, format, src)
}

func (Default) Normalize(dst, src []byte, fourcc uint32, width, height, srcStride int) error {
	return Normalize(dst, src, fourcc, width, height, srcStride)
}

// sampler returns the colour of one pixel
type sampler func(x, y int) (yy, cb, cr byte)

func newSampler(d frame.Descriptor) (sampler, error) {
	w, h := d.Width, d.Height
	if need := frame.FrameSize(d.Format, w, h); len(d.Data) < need {
		return nil, fmt.Errorf("convert: %s %dx%d short data %d < %d", d.Format, w, h, len(d.Data), need)
	}

	b := d.Data
	p := d.Planes

	switch d.Format {
	case frame.FormatYUV422I:
		stride := p[0].Stride
		return func(x, y int) (byte, byte, byte) {
			i := y*stride + x&^1*2
			return b[y*stride+x*2], b[i+1], b[i+3]
		}, nil

	case frame.FormatYUV420P, frame.FormatYV12:
		cb, cr := p[1], p[2]
		if d.Format == frame.FormatYV12 {
			cb, cr = cr, cb
		}
		ys := p[0].Stride
		return func(x, y int) (byte, byte, byte) {
			return b[y*ys+x], b[cb.Offset+y/2*cb.Stride+x/2], b[cr.Offset+y/2*cr.Stride+x/2]
		}, nil

	case frame.FormatYUV420SP, frame.FormatYUV422SP:
		// NV21 keeps V first, NV16 keeps U first
		off, stride := p[1].Offset, p[1].Stride
		sub := 2
		if d.Format == frame.FormatYUV422SP {
			sub = 1
		}
		return func(x, y int) (byte, byte, byte) {
			i := off + y/sub*stride + x&^1
			if sub == 2 {
				return b[y*w+x], b[i+1], b[i]
			}
			return b[y*w+x], b[i], b[i+1]
		}, nil

	case frame.FormatRGB565, frame.FormatRGB888, frame.FormatRGBA8888:
		bpp := d.Format.BytesPerPixel()
		stride := p[0].Stride
		return func(x, y int) (byte, byte, byte) {
			i := y*stride + x*bpp
			var r, g, bl byte
			if bpp == 2 {
				v := uint16(b[i]) | uint16(b[i+1])<<8
				r = byte(v>>11) << 3
				g = byte(v>>5) << 2
				bl = byte(v) << 3
			} else {
				r, g, bl = b[i], b[i+1], b[i+2]
			}
			return color.RGBToYCbCr(r, g, bl)
		}, nil
	}

	return nil, fmt.Errorf("%w: from %s", ErrUnsupported, d.Format)
}

// Convert writes src into dst laid out by frame.Layout for format.
func Convert(dst []byte, format frame.Format, src frame.Descriptor) error {
	w, h := src.Width, src.Height
	if need := frame.FrameSize(format, w, h); len(dst) < need {
		return fmt.Errorf("convert: %s %dx%d short dst %d < %d", format, w, h, len(dst), need)
	}

	at, err := newSampler(src)
	if err != nil {
		return err
	}

	p := frame.Layout(format, w, h)

	switch format {
	case frame.FormatRGB565, frame.FormatRGB888, frame.FormatRGBA8888:
		bpp := format.BytesPerPixel()
		for y := 0; y < h; y++ {
			row := dst[y*p[0].Stride:]
			for x := 0; x < w; x++ {
				r, g, b := color.YCbCrToRGB(at(x, y))
				i := x * bpp
				switch format {
				case frame.FormatRGB565:
					v := uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
					row[i] = byte(v)
					row[i+1] = byte(v >> 8)
				case frame.FormatRGBA8888:
					row[i+3] = 0xff
					fallthrough
				default:
					row[i], row[i+1], row[i+2] = r, g, b
				}
			}
		}

	case frame.FormatYUV422I:
		for y := 0; y < h; y++ {
			row := dst[y*p[0].Stride:]
			for x := 0; x < w; x++ {
				yy, cb, cr := at(x, y)
				row[x*2] = yy
				if x&1 == 0 {
					row[x*2+1] = cb
					row[x*2+3] = cr
				}
			}
		}

	case frame.FormatYUV420P, frame.FormatYV12:
		cb, cr := p[1], p[2]
		if format == frame.FormatYV12 {
			cb, cr = cr, cb
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				yy, u, v := at(x, y)
				dst[y*p[0].Stride+x] = yy
				if x&1 == 0 && y&1 == 0 {
					dst[cb.Offset+y/2*cb.Stride+x/2] = u
					dst[cr.Offset+y/2*cr.Stride+x/2] = v
				}
			}
		}

	case frame.FormatYUV420SP, frame.FormatYUV422SP:
		sub := 2
		if format == frame.FormatYUV422SP {
			sub = 1
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				yy, u, v := at(x, y)
				dst[y*w+x] = yy
				if x&1 == 0 && y%sub == 0 {
					i := p[1].Offset + y/sub*p[1].Stride + x
					if sub == 2 {
						dst[i], dst[i+1] = v, u
					} else {
						dst[i], dst[i+1] = u, v
					}
				}
			}
		}

	default:
		return fmt.Errorf("%w: to %s", ErrUnsupported, format)
	}

	return nil
}

// ToImage copies a frame into an image the standard encoders accept.
func ToImage(src frame.Descriptor) (*image.YCbCr, error) {
	w, h := src.Width, src.Height

	if src.Format == frame.FormatYUV422I && src.Planes[0].Stride == w*2 {
		img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio422)
		n := w * h * 2
		if len(src.Data) < n {
			return nil, fmt.Errorf("convert: short data %d < %d", len(src.Data), n)
		}
		YUYVToPlanar(img.Y, img.Cb, img.Cr, src.Data[:n])
		return img, nil
	}

	at, err := newSampler(src)
	if err != nil {
		return nil, err
	}

	img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio444)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*img.YStride + x
			img.Y[i], img.Cb[i], img.Cr[i] = at(x, y)
		}
	}
	return img, nil
}

// YUYVToPlanar splits packed YUYV into planar 4:2:2.
func YUYVToPlanar(dy, du, dv, src []byte) {
	n := len(src)
	iy, iu, iv := 0, 0, 0
	for i := 0; i+3 < n; i += 4 {
		dy[iy] = src[i]
		du[iu] = src[i+1]
		dy[iy+1] = src[i+2]
		dv[iv] = src[i+3]
		iy += 2
		iu++
		iv++
	}
}
