package camera

import (
	"fmt"

	"github.com/BAT6188/libcamera2/internal/api"
	"github.com/BAT6188/libcamera2/internal/api/ws"
	"github.com/BAT6188/libcamera2/internal/app"
	"github.com/BAT6188/libcamera2/pkg/backend"
	"github.com/BAT6188/libcamera2/pkg/cim"
	"github.com/BAT6188/libcamera2/pkg/hal"
	"github.com/BAT6188/libcamera2/pkg/registry"
	"github.com/BAT6188/libcamera2/pkg/v4l2"
	"github.com/rs/zerolog"
)

// Device is one registry entry from the config.
type Device struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
	Pmem string `yaml:"pmem"`
	DMMU string `yaml:"dmmu"`
}

func Init() {
	var cfg struct {
		Mod struct {
			Devices []Device `yaml:"devices"`
			// Device is the last selected path, written by the select API
			Device         string `yaml:"device"`
			ID             int    `yaml:"id"`
			SkipFrames     int    `yaml:"skip_frames"`
			RecordingSlots int    `yaml:"recording_slots"`

			hal.Parameters `yaml:",inline"`
		} `yaml:"camera"`
	}

	// default config
	cfg.Mod.Parameters = hal.DefaultParameters()
	cfg.Mod.SkipFrames = hal.DefaultWarmup
	cfg.Mod.RecordingSlots = hal.RecordingSlots

	app.LoadConfig(&cfg)

	log = app.GetLogger("camera")

	if len(cfg.Mod.Devices) == 0 {
		cfg.Mod.Devices = []Device{{Type: "v4l2", Path: "/dev/video0"}}
	}

	if err := cfg.Mod.Parameters.Validate(); err != nil {
		log.Warn().Err(err).Msg("[camera] use default parameters")
		cfg.Mod.Parameters = hal.DefaultParameters()
	}

	reg := registry.New(registry.WithLogger(log))
	for _, dev := range cfg.Mod.Devices {
		b, err := newBackend(dev)
		if err == nil {
			err = reg.Add(dev.Type, dev.Path, b)
		}
		if err != nil {
			log.Warn().Err(err).Msgf("[camera] skip %s", dev.Path)
		}
	}

	svc = newService(reg, cfg.Mod.ID, cfg.Mod.Parameters, log,
		hal.WithWarmup(cfg.Mod.SkipFrames),
		hal.WithRecordingSlots(cfg.Mod.RecordingSlots),
	)

	if err := svc.start(cfg.Mod.Device); err != nil {
		log.Warn().Err(err).Msg("[camera] no device")
	}

	api.HandleFunc("api/camera", svc.apiStatus)
	api.HandleFunc("api/camera/preview", svc.apiPreview)
	api.HandleFunc("api/camera/picture", svc.apiPicture)
	api.HandleFunc("api/camera/frame", svc.apiFrame)
	api.HandleFunc("api/camera/focus", svc.apiFocus)
	api.HandleFunc("api/camera/mode", svc.apiMode)
	api.HandleFunc("api/camera/select", svc.apiSelect)
	api.HandleFunc("api/camera/dump", svc.apiDump)
	api.HandleFunc("api/camera/probe", apiProbe)

	ws.HandleFunc("camera", svc.wsCamera)
}

// Close stops the selected camera and disconnects every device.
func Close() error {
	if svc == nil {
		return nil
	}
	return svc.close()
}

var log zerolog.Logger

var svc *service

func newBackend(dev Device) (backend.Backend, error) {
	switch dev.Type {
	case "cim":
		return cim.New(cim.Config{Path: dev.Path, Pmem: dev.Pmem, DMMU: dev.DMMU}, cim.WithLogger(log)), nil
	case "v4l2", "":
		return v4l2.New(v4l2.Config{Path: dev.Path}, v4l2.WithLogger(log)), nil
	}
	return nil, fmt.Errorf("camera: unknown device type %q", dev.Type)
}
