package app

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
)

var Version = "0.3.0"

var (
	ConfigPath string
	// Daemon is set by the -daemon flag, main re-runs the process detached
	Daemon  bool
	PidFile string
	LogFile string
)

var Info = map[string]any{
	"version": Version,
}

func Init() {
	var confs flagConfig
	var version bool

	flag.Var(&confs, "config", "Path to config file, raw YAML/JSON or key=value, can be repeated")
	flag.BoolVar(&Daemon, "daemon", false, "Run in background")
	flag.StringVar(&PidFile, "pidfile", "libcamera2.pid", "PID file for daemon mode")
	flag.StringVar(&LogFile, "logfile", "libcamera2.log", "Log file for daemon mode")
	flag.BoolVar(&version, "version", false, "Print version and exit")
	flag.Parse()

	revision, vcsTime := readRevisionTime()

	if version {
		fmt.Printf("libcamera2 version %s (%s) %s/%s\n", Version, revision, runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	initConfig(confs)
	initLogger()

	platform := fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
	Logger.Info().Str("version", Version).Str("platform", platform).Str("revision", revision).Msg("libcamera2")
	Logger.Debug().Str("version", runtime.Version()).Str("vcs.time", vcsTime).Msg("build")

	if ConfigPath != "" {
		Logger.Info().Str("path", ConfigPath).Msg("config")
	}
}

func readRevisionTime() (revision, vcsTime string) {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if len(setting.Value) > 7 {
					revision = setting.Value[:7]
				} else {
					revision = setting.Value
				}
			case "vcs.time":
				vcsTime = setting.Value
			case "vcs.modified":
				if setting.Value == "true" {
					revision = "mod." + revision
				}
			}
		}
	}
	return
}
