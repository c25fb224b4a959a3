package main

import (
	"context"
	"fmt"
	"time"

	"github.com/BAT6188/libcamera2/internal/api"
	"github.com/BAT6188/libcamera2/internal/api/ws"
	"github.com/BAT6188/libcamera2/internal/app"
	"github.com/BAT6188/libcamera2/internal/camera"
	"github.com/BAT6188/libcamera2/pkg/shell"
	daemon "github.com/sevlyar/go-daemon"
)

func main() {
	app.Init() // init config and logs

	if app.Daemon {
		cntxt := &daemon.Context{
			PidFileName: app.PidFile,
			PidFilePerm: 0644,
			LogFileName: app.LogFile,
			LogFilePerm: 0640,
		}

		child, err := cntxt.Reborn()
		if err != nil {
			app.Logger.Fatal().Err(err).Msg("[main] daemon")
		}
		if child != nil {
			fmt.Println("Running in daemon mode with PID:", child.Pid)
			return
		}
		defer cntxt.Release()
	}

	api.Init() // init HTTP API server
	ws.Init()  // init WS API endpoint

	camera.Init() // device registry and capture controller

	sig := shell.RunUntilSignal()
	app.Logger.Info().Msgf("[main] exit with signal: %s", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := api.Shutdown(ctx); err != nil {
		app.Logger.Warn().Err(err).Msg("[main] shutdown api")
	}

	if err := camera.Close(); err != nil {
		app.Logger.Warn().Err(err).Msg("[main] close camera")
	}
}
