package ioctl

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIOR(t *testing.T) {
	switch runtime.GOARCH {
	case "amd64", "arm64", "arm", "386":
		// #define SNDRV_PCM_IOCTL_INFO		_IOR('A', 0x01, struct snd_pcm_info)
		require.Equal(t, uint(0x81204101), IOR('A', 0x01, 288))
		// #define VIDIOC_QUERYCAP		 _IOR('V',  0, struct v4l2_capability)
		require.Equal(t, uint(0x80685600), IOR('V', 0, 104))
	case "mips", "mipsle":
		require.Equal(t, uint(0x40685600), IOR('V', 0, 104))
	}
}

func TestIOW(t *testing.T) {
	switch runtime.GOARCH {
	case "amd64", "arm64", "arm", "386":
		// #define VIDIOC_STREAMON		 _IOW('V', 18, int)
		require.Equal(t, uint(0x40045612), IOW('V', 18, 4))
		// #define VIDIOC_REQBUFS		_IOWR('V',  8, struct v4l2_requestbuffers)
		require.Equal(t, uint(0xc0145608), IOWR('V', 8, 20))
		require.Equal(t, uint(0x4301), IO('C', 1))
	case "mips", "mipsle":
		require.Equal(t, uint(0x80045612), IOW('V', 18, 4))
		require.Equal(t, uint(0x20004301), IO('C', 1))
	}
}

func TestStr(t *testing.T) {
	require.Equal(t, "uvcvideo", Str([]byte("uvcvideo\x00\x00garbage")))
	require.Equal(t, "full", Str([]byte("full")))
}
