package frame

// Plane is one colour component of a frame. Offset is relative to the slot
// base, Addr and Phys are absolute and only set on descriptors that belong
// to a pool.
type Plane struct {
	Offset int
	Stride int
	Addr   uintptr
	Phys   uint64
}

// Planes holds Y, U and V in that order. Packed formats alias all three.
type Planes [3]Plane

func align16(n int) int {
	return (n + 15) &^ 15
}

// Layout computes per plane offsets and strides for one frame. The values
// are consumed by hardware converters as is, so they must not be changed.
func Layout(format Format, width, height int) (p Planes) {
	switch {
	case format.Planar420():
		yStride := align16(width)
		cStride := align16(yStride >> 1)
		u := align16(yStride * height)
		p[0] = Plane{Offset: 0, Stride: yStride}
		p[1] = Plane{Offset: u, Stride: cStride}
		// V follows a tightly packed U regardless of the chroma stride
		p[2] = Plane{Offset: u + (width*height)>>2, Stride: cStride}
	case format == FormatYUV420B:
		// tile encoded, chroma interleaved after luma
		c := width * height * 12 / 8
		p[0] = Plane{Offset: 0, Stride: width << 4}
		p[1] = Plane{Offset: c, Stride: width << 3}
		p[2] = p[1]
	case format.SemiPlanar():
		p[0] = Plane{Offset: 0, Stride: width}
		p[1] = Plane{Offset: width * height, Stride: width}
		p[2] = p[1]
	default:
		stride := width * format.BytesPerPixel()
		p[0] = Plane{Stride: stride}
		p[1] = p[0]
		p[2] = p[0]
	}
	return
}

// FrameSize returns the number of bytes one frame occupies.
func FrameSize(format Format, width, height int) int {
	switch {
	case format.Planar420():
		// V rows are read through the padded stride
		p := Layout(format, width, height)
		return p[2].Offset + p[2].Stride*(height>>1)
	case format == FormatYUV420B, format == FormatYUV420SP:
		return width * height * 12 / 8
	case format == FormatYUV422SP:
		return width * height * 2
	}
	return width * height * format.BytesPerPixel()
}
