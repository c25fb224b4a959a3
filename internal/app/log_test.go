package app

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRing(t *testing.T) {
	r := newRing(3)

	_, err := r.Write([]byte("hello\n"))
	require.NoError(t, err)
	_, err = r.Write([]byte("world\n"))
	require.NoError(t, err)
	require.Equal(t, "hello\nworld\n", string(r.Bytes()))

	out := bytes.NewBuffer(nil)
	n, err := r.WriteTo(out)
	require.NoError(t, err)
	require.Equal(t, int64(12), n)

	r.Reset()
	require.Empty(t, r.Bytes())
}

func TestRingOverflow(t *testing.T) {
	r := newRing(2)

	for _, line := range []string{"a\n", "b\n", "c\n", "d\n"} {
		_, _ = r.Write([]byte(line))
	}

	// oldest lines dropped, order kept
	require.Equal(t, "c\nd\n", string(r.Bytes()))
}

func TestMemoryLogger(t *testing.T) {
	prev := MemoryLog
	t.Cleanup(func() { MemoryLog = prev })
	MemoryLog = newRing(10)

	logger := NewLogger(map[string]string{"level": "debug"})
	logger.Debug().Str("module", "camera").Msg("[camera] open")

	require.True(t, strings.Contains(string(MemoryLog.Bytes()), `"message":"[camera] open"`))
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger(map[string]string{"format": "json", "level": "debug", "output": "stdout"})
	require.Equal(t, zerolog.DebugLevel, logger.GetLevel())

	logger = NewLogger(map[string]string{"level": "bad"})
	require.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestGetLogger(t *testing.T) {
	prev := modules
	t.Cleanup(func() { modules = prev })

	Logger = zerolog.Nop().Level(zerolog.InfoLevel)
	modules = map[string]string{
		"camera": "trace",
		"api":    "warn",
	}

	require.Equal(t, zerolog.TraceLevel, GetLogger("camera").GetLevel())
	require.Equal(t, zerolog.WarnLevel, GetLogger("api").GetLevel())
	require.Equal(t, Logger.GetLevel(), GetLogger("registry").GetLevel())
}
