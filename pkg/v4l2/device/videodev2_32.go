//go:build 386 || arm || mips || mipsle

package device

type v4l2_format struct { // size 204
	typ uint32          // offset 0, size 4
	pix v4l2_pix_format // offset 4, size 48
	_   [152]byte       // filler
}

type v4l2_buffer struct { // size 68
	index     uint32        // offset 0, size 4
	typ       uint32        // offset 4, size 4
	bytesused uint32        // offset 8, size 4
	flags     uint32        // offset 12, size 4
	field     uint32        // offset 16, size 4
	_         [8]byte       // timestamp
	timecode  v4l2_timecode // offset 28, size 16
	sequence  uint32        // offset 44, size 4
	memory    uint32        // offset 48, size 4
	offset    uint32        // offset 52, size 4
	length    uint32        // offset 56, size 4
	_         [8]byte       // filler
}
