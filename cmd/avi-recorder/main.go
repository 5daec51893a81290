// avi-recorder - record motion triggered MJPEG video into AVI files
//  Copyright (C) 2026, The Cacophony Project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"

	arg "github.com/alexflint/go-arg"
	"github.com/coreos/go-systemd/daemon"
	"golang.org/x/sys/unix"
	"periph.io/x/periph/host"

	"github.com/TheCacophonyProject/avi-recorder/avi"
	"github.com/TheCacophonyProject/avi-recorder/camera"
	"github.com/TheCacophonyProject/avi-recorder/motion"
	"github.com/TheCacophonyProject/avi-recorder/pacer"
	"github.com/TheCacophonyProject/avi-recorder/playback"
	"github.com/TheCacophonyProject/avi-recorder/recorder"
	"github.com/TheCacophonyProject/avi-recorder/sensor"
	"github.com/TheCacophonyProject/avi-recorder/storage"
	"github.com/TheCacophonyProject/avi-recorder/stream"
	"github.com/TheCacophonyProject/avi-recorder/throttle"
	"github.com/TheCacophonyProject/avi-recorder/timelapse"
	"github.com/TheCacophonyProject/avi-recorder/writeback"
)

var version = "<not set>"

type Args struct {
	ConfigFile string `arg:"-c,--config" help:"path to configuration file"`
	Timestamps bool   `arg:"-t,--timestamps" help:"include timestamps in log output"`
	Verbose    bool   `arg:"-v,--verbose" help:"log motion detection details"`
}

func (Args) Version() string {
	return version
}

func procArgs() Args {
	var args Args
	args.ConfigFile = "/etc/avi-recorder.yaml"
	arg.MustParse(&args)
	return args
}

func main() {
	err := runMain()
	if err != nil {
		log.Fatal(err)
	}
}

func runMain() error {
	args := procArgs()
	if !args.Timestamps {
		log.SetFlags(0)
	}
	log.Printf("running version: %s", version)

	conf, err := ParseConfigFile(args.ConfigFile)
	if err != nil {
		return err
	}
	if args.Verbose {
		conf.Motion.Verbose = true
	}
	logConfig(conf)

	if err := os.MkdirAll(conf.OutputDir, 0755); err != nil {
		return err
	}
	dir := storage.NewDir(conf.OutputDir)
	log.Print("deleting temp files")
	if err := storage.DeleteTempFiles(dir); err != nil {
		return err
	}

	if _, err := host.Init(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	buf := writeback.New(conf.ClusterSize, avi.ChunkHeaderLen)
	header := new(avi.HeaderScratch)

	framePacer := pacer.New(nil)
	defer framePacer.Stop()
	if err := framePacer.SetFPS(conf.Recorder.FPS); err != nil {
		return err
	}

	cam := camera.NewSocketCamera(conf.Camera)
	go func() {
		if err := cam.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("camera input failed: %v", err)
			stop()
		}
	}()

	var listener recorder.RecordingListener
	var throttleListener throttle.ThrottledEventListener
	if conf.QueueEvents {
		events := throttle.NewThrottledEventRecorder(throttle.DBusQueue)
		listener = events
		throttleListener = events
	}

	fileRecorder := recorder.NewAVIFileRecorder(&conf.Recorder, conf.Storage, dir, buf, header, cam)
	var rec recorder.Recorder = fileRecorder
	if conf.Throttler.ApplyThrottling {
		rec = throttle.NewThrottledRecorder(fileRecorder, &conf.Throttler, conf.Recorder.MinSecs, conf.Recorder.FPS, throttleListener)
	}

	controller := recorder.NewController(&conf.Recorder, cam, motion.NewSizeDetector(conf.Motion), rec, listener)
	controller.UseMotion = conf.Motion.Enabled
	controller.FPS = framePacer.FPS
	if conf.PIR.Enabled {
		pir, err := sensor.NewPIR(conf.PIR)
		if err != nil {
			return err
		}
		controller.PIR = pir
	}
	if conf.Timelapse.Enabled {
		controller.Timelapse = timelapse.New(&conf.Timelapse, dir, buf, header, cam)
	}
	engine := playback.New(dir, framePacer, conf.Playback, conf.ClusterSize, conf.Recorder.FPS, controller.Recording)
	controller.Playback = engine
	controller.Heartbeat = newHeartbeat(framePacer.FPS, cam).beat

	log.Print("starting d-bus service")
	err = startService(&service{
		fsys:     dir,
		control:  controller,
		player:   engine,
		recorder: fileRecorder,
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/stream", stream.Handler(engine))
	server := &http.Server{Addr: conf.HTTPAddress, Handler: mux}
	go func() {
		log.Printf("streaming playback on %s", conf.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server failed: %v", err)
			stop()
		}
	}()
	defer server.Close()

	daemon.SdNotify(false, "READY=1")

	err = controller.Run(ctx, framePacer.Captures())
	if res := engine.Stop(); res.Forced {
		log.Print("playback was forced closed")
	}
	if errors.Is(err, context.Canceled) {
		log.Print("shut down")
		return nil
	}
	return err
}

func logConfig(conf *Config) {
	log.Printf("frame input: %s", conf.Camera.FrameInput)
	log.Printf("frame size: %s", conf.Camera.FrameSize)
	log.Printf("output dir: %s", conf.OutputDir)
	log.Printf("cluster size: %d", conf.ClusterSize)
	log.Printf("frame rate: %d", conf.Recorder.FPS)
	log.Printf("recording limits: %ds to %ds, %d frames", conf.Recorder.MinSecs, conf.Recorder.MaxSecs, conf.Recorder.MaxFrames)
	log.Printf("minimum free space: %dMB, auto delete: %t", conf.Storage.MinFreeMB, conf.Storage.AutoDelete)
	log.Printf("motion: %+v", conf.Motion)
	log.Printf("throttler: %+v", conf.Throttler)
	if !conf.Recorder.WindowStart.IsZero() {
		log.Printf("recording window: %02d:%02d to %02d:%02d",
			conf.Recorder.WindowStart.Hour(), conf.Recorder.WindowStart.Minute(),
			conf.Recorder.WindowEnd.Hour(), conf.Recorder.WindowEnd.Minute())
	}
	if conf.Timelapse.Enabled {
		log.Printf("timelapse: %+v", conf.Timelapse)
	}
	if conf.PIR.Enabled {
		log.Printf("pir sensor on %s", conf.PIR.Pin)
	}
}
