package app

import (
	"bytes"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

var Logger = zerolog.Nop()

// MemoryLog keeps the latest log lines for GET /api/log
var MemoryLog = newRing(1000)

// GetLogger returns the root logger with the module level from
// the `log:` config section, if any. Every event carries the module name.
func GetLogger(module string) zerolog.Logger {
	logger := Logger.With().Str("module", module).Logger()

	if s, ok := modules[module]; ok {
		lvl, err := zerolog.ParseLevel(s)
		if err == nil {
			return logger.Level(lvl)
		}
		Logger.Warn().Err(err).Str("module", module).Msg("[app] log level")
	}

	return logger
}

// modules holds the logger settings and per module levels
var modules = map[string]string{
	"format": "",
	"level":  "info",
	"output": "stderr",
	"time":   zerolog.TimeFormatUnixMs,
}

// initLogger reads the `log:` section:
//
//	output: stderr, stdout, file:/path or empty for memory only
//	format: color, text, json or empty to detect a terminal
//	time:   UNIXMS, UNIXMICRO, UNIXNANO or empty without timestamps
//	level:  trace, debug, info, warn, error, disabled
//	camera: debug  # any other key is a module level
func initLogger() {
	var cfg struct {
		Mod map[string]string `yaml:"log"`
	}

	cfg.Mod = modules

	LoadConfig(&cfg)

	Logger = NewLogger(modules)
}

func NewLogger(opts map[string]string) zerolog.Logger {
	var writer io.Writer = MemoryLog

	if out := openOutput(opts["output"]); out != nil {
		if opts["format"] != "json" {
			out = consoleWriter(out, opts["format"], opts["time"] != "")
		}
		writer = zerolog.MultiLevelWriter(out, MemoryLog)
	}

	lvl, err := zerolog.ParseLevel(opts["level"])
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	logger := zerolog.New(writer).Level(lvl)

	if timeFormat := opts["time"]; timeFormat != "" {
		zerolog.TimeFieldFormat = timeFormat
		logger = logger.With().Timestamp().Logger()
	}

	return logger
}

func openOutput(output string) io.Writer {
	switch {
	case output == "stderr":
		return os.Stderr
	case output == "stdout":
		return os.Stdout
	case strings.HasPrefix(output, "file:"):
		f, err := os.OpenFile(output[5:], os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return os.Stderr
		}
		return f
	}
	return nil
}

func consoleWriter(out io.Writer, format string, withTime bool) io.Writer {
	console := &zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}

	switch format {
	case "text":
		console.NoColor = true
	case "color":
	default:
		f, ok := out.(*os.File)
		console.NoColor = !ok || !isatty.IsTerminal(f.Fd())
	}

	if !withTime {
		console.PartsOrder = []string{
			zerolog.LevelFieldName,
			zerolog.CallerFieldName,
			zerolog.MessageFieldName,
		}
	}

	return console
}

// ring keeps the last size log lines. zerolog writes one event per call.
type ring struct {
	mu    sync.Mutex
	lines [][]byte
	next  int
	full  bool
}

func newRing(size int) *ring {
	return &ring{lines: make([][]byte, size)}
}

func (r *ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	// overwritten slot keeps its backing array
	r.lines[r.next] = append(r.lines[r.next][:0], p...)
	if r.next++; r.next == len(r.lines) {
		r.next = 0
		r.full = true
	}
	r.mu.Unlock()

	return len(p), nil
}

func (r *ring) WriteTo(w io.Writer) (n int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.each(func(line []byte) bool {
		var nn int
		nn, err = w.Write(line)
		n += int64(nn)
		return err == nil
	})
	return
}

func (r *ring) Bytes() []byte {
	var buf bytes.Buffer
	r.mu.Lock()
	r.each(func(line []byte) bool {
		buf.Write(line)
		return true
	})
	r.mu.Unlock()
	return buf.Bytes()
}

// each walks lines oldest first, must be called with mu held
func (r *ring) each(f func(line []byte) bool) {
	start := 0
	if r.full {
		start = r.next
	}
	for i := 0; i < len(r.lines); i++ {
		line := r.lines[(start+i)%len(r.lines)]
		if line == nil {
			continue
		}
		if !f(line) {
			return
		}
	}
}

func (r *ring) Reset() {
	r.mu.Lock()
	for i := range r.lines {
		r.lines[i] = nil
	}
	r.next = 0
	r.full = false
	r.mu.Unlock()
}
