//go:build amd64 || arm64 || mips64 || mips64le || riscv64

package device

type v4l2_format struct { // size 208
	typ uint32          // offset 0, size 4
	_   [4]byte         // align
	pix v4l2_pix_format // offset 8, size 48
	_   [152]byte       // filler
}

type v4l2_buffer struct { // size 88
	index     uint32        // offset 0, size 4
	typ       uint32        // offset 4, size 4
	bytesused uint32        // offset 8, size 4
	flags     uint32        // offset 12, size 4
	field     uint32        // offset 16, size 4
	_         [20]byte      // align + timestamp
	timecode  v4l2_timecode // offset 40, size 16
	sequence  uint32        // offset 56, size 4
	memory    uint32        // offset 60, size 4
	offset    uint32        // offset 64, size 4
	_         [4]byte       // union
	length    uint32        // offset 72, size 4
	_         [12]byte      // filler
}
