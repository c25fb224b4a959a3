package camera

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/BAT6188/libcamera2/internal/api"
	"github.com/BAT6188/libcamera2/internal/api/ws"
	"github.com/BAT6188/libcamera2/internal/app"
	"github.com/BAT6188/libcamera2/pkg/backend"
	"github.com/BAT6188/libcamera2/pkg/hal"
	"github.com/BAT6188/libcamera2/pkg/jpeg"
	"github.com/BAT6188/libcamera2/pkg/registry"
)

const pictureTimeout = 5 * time.Second

func statusCode(err error) int {
	switch {
	case errors.Is(err, ErrNoCamera), errors.Is(err, registry.ErrNoDevice):
		return http.StatusNotFound
	case errors.Is(err, hal.ErrInvalidState), errors.Is(err, backend.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, backend.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, backend.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type status struct {
	hal.Info
	Path    string              `json:"path,omitempty"`
	Devices []registry.Entry    `json:"devices"`
	Sensors int                 `json:"sensors,omitempty"`
	Sensor  *backend.SensorInfo `json:"sensor,omitempty"`
}

func (s *service) apiStatus(w http.ResponseWriter, r *http.Request) {
	st := status{Devices: s.reg.Entries()}

	s.mu.Lock()
	ctrl, entry := s.ctrl, s.entry
	s.mu.Unlock()

	if ctrl != nil {
		st.Info = ctrl.Info()
		st.Path = entry.Path

		dev := ctrl.Backend()
		if n, err := dev.SensorCount(); err == nil {
			st.Sensors = n
		}
		if info, err := dev.SensorInfo(); err == nil {
			st.Sensor = info
		}
	}

	api.ResponseJSON(w, st)
}

func (s *service) apiPreview(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.current()
	if err != nil {
		http.Error(w, err.Error(), statusCode(err))
		return
	}

	switch r.Method {
	case "POST":
		if err = ctrl.StartPreview(); err != nil {
			api.Error(w, err, statusCode(err))
			return
		}
	case "DELETE":
		ctrl.StopPreview()
	default:
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	api.ResponseJSON(w, ctrl.Info())
}

func (s *service) apiPicture(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	ctrl, err := s.current()
	if err != nil {
		http.Error(w, err.Error(), statusCode(err))
		return
	}

	ch := s.wait()
	defer s.unwait(ch)

	if err = ctrl.TakePicture(); err != nil {
		api.Error(w, err, statusCode(err))
		return
	}

	select {
	case res := <-ch:
		if res.err != nil {
			api.Error(w, res.err, statusCode(res.err))
			return
		}
		api.Response(w, res.jpeg, api.MimeJPEG)
	case <-time.After(pictureTimeout):
		http.Error(w, "picture timeout", http.StatusGatewayTimeout)
	case <-r.Context().Done():
	}
}

func (s *service) apiFrame(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	surface := s.surface
	s.mu.Unlock()

	if surface == nil {
		http.Error(w, ErrNoCamera.Error(), http.StatusNotFound)
		return
	}

	d, ts, ok := surface.Snapshot()
	if !ok {
		http.Error(w, "no frame", http.StatusNotFound)
		return
	}

	b, err := jpeg.Encode(d, s.params.Picture.Quality)
	if err != nil {
		api.Error(w, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Last-Modified", ts.UTC().Format(http.TimeFormat))
	api.Response(w, b, api.MimeJPEG)
}

func (s *service) apiFocus(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.current()
	if err != nil {
		http.Error(w, err.Error(), statusCode(err))
		return
	}

	switch r.Method {
	case "POST":
		if err = ctrl.AutoFocus(); err != nil {
			api.Error(w, err, statusCode(err))
		}
	case "DELETE":
		ctrl.CancelAutoFocus()
	default:
		http.Error(w, "", http.StatusMethodNotAllowed)
	}
}

func (s *service) apiMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()

	mode, ok := backend.ParseMode(query.Get("name"))
	if !ok {
		http.Error(w, "unknown mode: "+query.Get("name"), http.StatusBadRequest)
		return
	}

	value, err := strconv.Atoi(query.Get("value"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctrl, err := s.current()
	if err != nil {
		http.Error(w, err.Error(), statusCode(err))
		return
	}

	if err = ctrl.SetMode(mode, value); err != nil {
		api.Error(w, err, statusCode(err))
	}
}

func (s *service) apiSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	entry, err := s.next()
	if err != nil {
		api.Error(w, err, statusCode(err))
		return
	}

	if err = app.PatchConfig("device", entry.Path, "camera"); err != nil {
		s.log.Warn().Err(err).Msg("[camera] save selection")
	}

	api.ResponseJSON(w, entry)
}

func (s *service) apiDump(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.current()
	if err != nil {
		http.Error(w, err.Error(), statusCode(err))
		return
	}

	api.Response(w, ctrl.Dump(), api.MimeText)
}

// wsCamera pushes every state change of the selected controller
func (s *service) wsCamera(tr *ws.Transport, msg *ws.Message) error {
	ctrl, err := s.current()
	if err != nil {
		return err
	}

	events, cancel := ctrl.Subscribe(16)

	done := make(chan struct{})
	tr.OnClose(func() {
		close(done)
	})

	tr.Write(&ws.Message{Type: "camera", Value: ctrl.Info()})

	go func() {
		defer cancel()
		for {
			select {
			case ev := <-events:
				tr.Write(&ws.Message{Type: "camera", Value: ev})
			case <-done:
				return
			}
		}
	}()

	return nil
}
