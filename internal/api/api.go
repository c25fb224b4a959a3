package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/BAT6188/libcamera2/internal/app"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// Config is the `api:` section.
type Config struct {
	Listen     string `yaml:"listen"`
	UnixListen string `yaml:"unix_listen"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	BasePath   string `yaml:"base_path"`
	Origin     string `yaml:"origin"`
}

func Init() {
	var cfg struct {
		Mod Config `yaml:"api"`
	}

	cfg.Mod.Listen = ":1985"

	app.LoadConfig(&cfg)

	log = app.GetLogger("api")

	if cfg.Mod.Listen == "" && cfg.Mod.UnixListen == "" {
		return
	}

	basePath = strings.TrimSuffix(cfg.Mod.BasePath, "/")

	HandleFunc("api", apiHandler)
	HandleFunc("api/config", configHandler)
	HandleFunc("api/log", logHandler)

	Handler = newHandler(cfg.Mod, http.DefaultServeMux)

	if cfg.Mod.Listen != "" {
		go serve("tcp", cfg.Mod.Listen)
	}

	if cfg.Mod.UnixListen != "" {
		// stale socket from a previous run
		_ = unix.Unlink(cfg.Mod.UnixListen)
		go serve("unix", cfg.Mod.UnixListen)
	}
}

// newHandler wraps mux with middlewares, the first in the list runs first.
func newHandler(cfg Config, mux http.Handler) http.Handler {
	var chain []func(http.Handler) http.Handler

	if log.Trace().Enabled() {
		chain = append(chain, middlewareLog)
	}
	if cfg.Username != "" {
		chain = append(chain, func(next http.Handler) http.Handler {
			return middlewareAuth(cfg.Username, cfg.Password, next)
		})
	}
	if cfg.Origin == "*" {
		chain = append(chain, middlewareCORS)
	}

	h := mux
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}

func serve(network, address string) {
	ln, err := net.Listen(network, address)
	if err != nil {
		log.Error().Err(err).Msg("[api] listen")
		return
	}

	log.Info().Str("addr", address).Msg("[api] listen")

	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		Port = addr.Port
	}

	srv := &http.Server{
		Handler:           Handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serversMu.Lock()
	servers = append(servers, srv)
	serversMu.Unlock()

	if err = srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("[api] serve")
	}
}

// Shutdown stops every listener and waits for active requests.
func Shutdown(ctx context.Context) error {
	serversMu.Lock()
	list := servers
	servers = nil
	serversMu.Unlock()

	var errs []error
	for _, srv := range list {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	servers   []*http.Server
	serversMu sync.Mutex
)

// Port is the bound TCP port, useful with `listen: ":0"`.
var Port int

const (
	MimeJSON = "application/json"
	MimeText = "text/plain"
	MimeJPEG = "image/jpeg"
	MimeYAML = "application/yaml"
)

var Handler http.Handler

// HandleFunc handle pattern with relative path:
// - "api/camera" => "{basepath}/api/camera"
// - "/camera"    => "/camera"
func HandleFunc(pattern string, handler http.HandlerFunc) {
	if len(pattern) == 0 || pattern[0] != '/' {
		pattern = basePath + "/" + pattern
	}
	log.Trace().Str("path", pattern).Msg("[api] register path")
	http.HandleFunc(pattern, handler)
}

// ResponseJSON always sets Content-Type so the server skips sniffing.
func ResponseJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", MimeJSON)
	_ = json.NewEncoder(w).Encode(v)
}

func Response(w http.ResponseWriter, body any, contentType string) {
	w.Header().Set("Content-Type", contentType)

	switch v := body.(type) {
	case []byte:
		_, _ = w.Write(v)
	case string:
		_, _ = w.Write([]byte(v))
	default:
		_, _ = fmt.Fprint(w, body)
	}
}

// Error logs err with the caller and answers with the status.
func Error(w http.ResponseWriter, err error, status int) {
	ev := log.Warn()
	if status >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).Int("status", status).Caller(1).Send()

	http.Error(w, err.Error(), status)
}

var basePath string
var log = zerolog.Nop()

func middlewareLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Trace().Msgf("[api] %s %s %s", r.Method, r.URL, r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

func isLocal(remote string) bool {
	if remote == "@" || remote == "" {
		return true // unix socket
	}
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func middlewareAuth(username, password string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isLocal(r.RemoteAddr) {
			user, pass, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 ||
				subtle.ConstantTimeCompare([]byte(pass), []byte(password)) != 1 {
				w.Header().Set("Www-Authenticate", `Basic realm="libcamera2"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func middlewareCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

var infoMu sync.Mutex

func apiHandler(w http.ResponseWriter, r *http.Request) {
	infoMu.Lock()
	info := make(map[string]any, len(app.Info)+1)
	for k, v := range app.Info {
		info[k] = v
	}
	infoMu.Unlock()

	info["host"] = r.Host

	ResponseJSON(w, info)
}

func logHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		w.Header().Set("Content-Type", "application/jsonlines")
		_, _ = app.MemoryLog.WriteTo(w)
	case "DELETE":
		app.MemoryLog.Reset()
		Response(w, "OK", MimeText)
	default:
		http.Error(w, "", http.StatusMethodNotAllowed)
	}
}
