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

package recorder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/TheCacophonyProject/window"

	"github.com/TheCacophonyProject/avi-recorder/camera"
	"github.com/TheCacophonyProject/avi-recorder/loglimiter"
	"github.com/TheCacophonyProject/avi-recorder/motion"
	"github.com/TheCacophonyProject/avi-recorder/sensor"
)

var (
	ErrFrameTooLarge = errors.New("frame exceeds maximum buffer size")
	errEmptyFrame    = errors.New("empty frame")
)

type State int32

const (
	Idle State = iota
	Recording
	Cooldown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Cooldown:
		return "cooldown"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

type RecordingListener interface {
	MotionDetected()
	RecordingStarted()
	RecordingEnded()
}

type nullListener struct{}

func (nullListener) MotionDetected()   {}
func (nullListener) RecordingStarted() {}
func (nullListener) RecordingEnded()   {}

// PlaybackStopper is halted whenever a recording starts.
type PlaybackStopper interface {
	Halt()
}

// FrameProcessor is handed every valid frame after the recording step,
// while the frame is still borrowed.
type FrameProcessor interface {
	Process(frame []byte, fps int)
	ForceClose()
}

func NewController(
	conf *RecorderConfig,
	cam camera.Camera,
	evaluator motion.Evaluator,
	rec Recorder,
	listener RecordingListener,
) *Controller {
	if listener == nil {
		listener = nullListener{}
	}
	fps := conf.FPS
	return &Controller{
		conf:      conf,
		camera:    cam,
		evaluator: evaluator,
		recorder:  rec,
		listener:  listener,
		window:    conf.Window(),
		now:       time.Now,
		limiter:   loglimiter.New(time.Minute),
		UseMotion: true,
		FPS:       func() int { return fps },
	}
}

// Controller is the Idle/Recording/Cooldown state machine. Tick is called
// once per paced frame from a single goroutine; StartRecording,
// StopRecording and State are safe to call from anywhere.
type Controller struct {
	conf      *RecorderConfig
	camera    camera.Camera
	evaluator motion.Evaluator
	recorder  Recorder
	listener  RecordingListener
	window    *window.Window
	now       func() time.Time
	limiter   *loglimiter.LogLimiter

	// UseMotion enables motion triggering. When off, frames are only
	// sampled for light level.
	UseMotion bool
	PIR       sensor.Trigger
	Playback  PlaybackStopper
	Timelapse FrameProcessor
	// FPS is the current frame rate, handed to the timelapse.
	FPS func() int
	// Heartbeat is called by Run after every tick.
	Heartbeat func()

	state       atomic.Int32
	forceRecord atomic.Bool
	forceStop   atomic.Bool

	startedAt     time.Time
	lastSampleAt  time.Time
	cooldownAt    time.Time
	frames        int
	motionHeld    bool
	ticks         int
	skippedFrames int
}

func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) Recording() bool {
	return c.State() == Recording
}

func (c *Controller) setState(s State) {
	if old := c.State(); old != s {
		c.state.Store(int32(s))
		if old != Idle || s != Recording {
			log.Printf("state: %s -> %s", old, s)
		}
	}
}

// StartRecording begins a recording on the next tick regardless of motion
// or the recording window. It lasts until StopRecording or a hard limit.
func (c *Controller) StartRecording() {
	c.forceStop.Store(false)
	c.forceRecord.Store(true)
}

// StopRecording ends the current recording on the next tick.
func (c *Controller) StopRecording() {
	c.forceRecord.Store(false)
	c.forceStop.Store(true)
}

// Run calls Tick for every capture signal until ctx is done, then closes
// any open sessions.
func (c *Controller) Run(ctx context.Context, captures <-chan struct{}) error {
	defer c.Shutdown()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-captures:
			c.Tick()
			if c.Heartbeat != nil {
				c.Heartbeat()
			}
		}
	}
}

// Shutdown closes an open recording, subject to the minimum duration, and
// force closes the timelapse.
func (c *Controller) Shutdown() {
	if c.State() == Recording {
		c.finish(c.now(), "shutdown")
	}
	if c.Timelapse != nil {
		c.Timelapse.ForceClose()
	}
}

// Tick processes one paced frame.
func (c *Controller) Tick() {
	f := c.camera.GetFrame()
	if f == nil {
		return
	}
	defer c.camera.ReleaseFrame(f)
	c.ticks++

	if err := c.checkFrame(f.Data); err != nil {
		c.skippedFrames++
		c.limiter.Printf("frame skipped: %v", err)
		return
	}

	now := c.now()
	switch c.State() {
	case Idle:
		c.idle(f.Data, now)
	case Recording:
		c.recording(f.Data, now)
	case Cooldown:
		if now.Sub(c.cooldownAt) >= c.conf.cooldown() {
			c.setState(Idle)
		}
	}

	if c.Timelapse != nil {
		c.Timelapse.Process(f.Data, c.FPS())
	}
}

func (c *Controller) checkFrame(frame []byte) error {
	if len(frame) == 0 {
		return errEmptyFrame
	}
	if len(frame) > c.conf.MaxFrameBytes {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(frame))
	}
	return nil
}

func (c *Controller) idle(frame []byte, now time.Time) {
	c.forceStop.Store(false)
	manual := c.forceRecord.Load()
	triggered := manual || c.pirTriggered()
	if c.UseMotion {
		if c.evaluator.Evaluate(frame, false) {
			c.listener.MotionDetected()
			triggered = true
		}
	} else if now.Sub(c.lastSampleAt) >= c.conf.motionCheck() {
		c.lastSampleAt = now
		c.evaluator.LightLevel(frame)
	}
	if triggered {
		c.start(frame, now, manual)
	}
}

func (c *Controller) start(frame []byte, now time.Time, manual bool) {
	if err := c.recorder.CheckCanRecord(); err != nil {
		c.limiter.Printf("recording not started: %v", err)
		return
	}
	if !manual && !c.window.Active() {
		c.limiter.Print("motion detected but outside of recording window")
		return
	}
	if c.Playback != nil {
		c.Playback.Halt()
	}
	if err := c.recorder.StartRecording(); err != nil {
		c.limiter.Printf("can't start recording file: %v", err)
		return
	}

	c.startedAt = now
	c.lastSampleAt = now
	c.frames = 0
	c.motionHeld = true
	c.setState(Recording)
	c.listener.RecordingStarted()
	c.write(frame, now)
}

func (c *Controller) recording(frame []byte, now time.Time) {
	if !c.write(frame, now) {
		return
	}

	if now.Sub(c.lastSampleAt) >= c.conf.motionCheck() {
		c.lastSampleAt = now
		if c.UseMotion {
			c.motionHeld = c.evaluator.Evaluate(frame, true)
			if c.motionHeld {
				c.listener.MotionDetected()
			}
		} else {
			c.motionHeld = false
			c.evaluator.LightLevel(frame)
		}
	}
	triggered := c.motionHeld || c.forceRecord.Load() || c.pirTriggered()

	elapsed := now.Sub(c.startedAt)
	switch {
	case c.forceStop.Swap(false):
		c.finish(now, "stopped on request")
	case elapsed >= c.conf.maxDuration():
		c.forceRecord.Store(false)
		c.finish(now, "maximum duration reached")
	case c.frames >= c.conf.MaxFrames:
		c.forceRecord.Store(false)
		c.finish(now, "maximum frames reached")
	case !triggered && elapsed >= c.conf.minDuration():
		c.finish(now, "no more motion")
	}
}

// write appends the frame to the recording, returning false if the
// session had to be ended.
func (c *Controller) write(frame []byte, now time.Time) bool {
	if err := c.recorder.WriteFrame(frame); err != nil {
		c.forceRecord.Store(false)
		c.finish(now, err.Error())
		return false
	}
	c.frames++
	return true
}

func (c *Controller) finish(now time.Time, reason string) {
	log.Printf("recording ending after %d frames: %s", c.frames, reason)
	if err := c.recorder.StopRecording(); err != nil {
		log.Printf("failed to stop recording: %v", err)
	}
	c.listener.RecordingEnded()
	c.cooldownAt = now
	c.setState(Cooldown)
}

func (c *Controller) pirTriggered() bool {
	return c.PIR != nil && c.PIR.Triggered()
}
