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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/avi-recorder/camera"
)

type TestCamera struct {
	data     []byte
	nilFrame bool
	gets     int
	releases int
}

func (tc *TestCamera) GetFrame() *camera.Frame {
	tc.gets++
	if tc.nilFrame {
		return nil
	}
	return &camera.Frame{Data: tc.data}
}

func (tc *TestCamera) ReleaseFrame(*camera.Frame) { tc.releases++ }
func (tc *TestCamera) FrameSizeLabel() string     { return "VGA" }

type TestEvaluator struct {
	motion          bool
	idleCalls       int
	recordingCalls  int
	lightLevelCalls int
}

func (te *TestEvaluator) Evaluate(frame []byte, recording bool) bool {
	if recording {
		te.recordingCalls++
	} else {
		te.idleCalls++
	}
	return te.motion
}

func (te *TestEvaluator) LightLevel([]byte) int {
	te.lightLevelCalls++
	return 100
}

type TestRecorder struct {
	NoWriteRecorder
	starts     int
	stops      int
	frames     int
	recording  bool
	canRecord  error
	writeError error
}

func (tr *TestRecorder) StartRecording() error {
	tr.starts++
	tr.recording = true
	return nil
}

func (tr *TestRecorder) StopRecording() error {
	tr.stops++
	tr.recording = false
	return nil
}

func (tr *TestRecorder) WriteFrame([]byte) error {
	if tr.writeError != nil {
		return tr.writeError
	}
	tr.frames++
	return nil
}

func (tr *TestRecorder) CheckCanRecord() error { return tr.canRecord }

type TestListener struct {
	motion, started, ended int
}

func (tl *TestListener) MotionDetected()   { tl.motion++ }
func (tl *TestListener) RecordingStarted() { tl.started++ }
func (tl *TestListener) RecordingEnded()   { tl.ended++ }

type TestPlayback struct{ halts int }

func (tp *TestPlayback) Halt() { tp.halts++ }

type TestTimelapse struct {
	frames []int
	closed bool
}

func (tt *TestTimelapse) Process(frame []byte, fps int) { tt.frames = append(tt.frames, fps) }
func (tt *TestTimelapse) ForceClose()                   { tt.closed = true }

type testSetup struct {
	conf       *RecorderConfig
	camera     *TestCamera
	evaluator  *TestEvaluator
	recorder   *TestRecorder
	listener   *TestListener
	controller *Controller
	now        time.Time
}

func newTestSetup(conf RecorderConfig) *testSetup {
	s := &testSetup{
		conf:      &conf,
		camera:    &TestCamera{data: []byte{0xff, 0xd8, 1, 2, 3}},
		evaluator: new(TestEvaluator),
		recorder:  new(TestRecorder),
		listener:  new(TestListener),
		now:       time.Date(2024, 3, 9, 12, 0, 0, 0, time.Local),
	}
	s.controller = NewController(s.conf, s.camera, s.evaluator, s.recorder, s.listener)
	s.controller.now = func() time.Time { return s.now }
	s.controller.window.Now = s.controller.now
	return s
}

// tick runs one paced frame then advances the clock by a second.
func (s *testSetup) tick() State {
	s.controller.Tick()
	s.now = s.now.Add(time.Second)
	return s.controller.State()
}

func TestMotionRecordingLifecycle(t *testing.T) {
	s := newTestSetup(DefaultRecorderConfig())
	s.evaluator.motion = true

	for i := 1; i <= 40; i++ {
		require.Equal(t, Recording, s.tick(), "tick %d", i)
	}
	s.evaluator.motion = false

	assert.Equal(t, Cooldown, s.tick(), "tick 41")
	for i := 42; i <= 45; i++ {
		assert.Equal(t, Cooldown, s.tick(), "tick %d", i)
	}
	assert.Equal(t, Idle, s.tick(), "tick 46")

	assert.Equal(t, 1, s.recorder.starts)
	assert.Equal(t, 1, s.recorder.stops)
	assert.Equal(t, 41, s.recorder.frames)
	assert.Equal(t, 1, s.evaluator.idleCalls)
	assert.Equal(t, 8, s.evaluator.recordingCalls)
	assert.Equal(t, 1, s.listener.started)
	assert.Equal(t, 1, s.listener.ended)
	assert.Equal(t, s.camera.gets, s.camera.releases)
}

func TestNotTriggeredWithoutMotion(t *testing.T) {
	s := newTestSetup(DefaultRecorderConfig())
	for i := 0; i < 20; i++ {
		assert.Equal(t, Idle, s.tick())
	}
	assert.Equal(t, 20, s.evaluator.idleCalls)
	assert.Equal(t, 0, s.recorder.starts)
}

func TestRecordsMinimumDurationAfterMotionStops(t *testing.T) {
	conf := DefaultRecorderConfig()
	conf.MinSecs = 10
	s := newTestSetup(conf)
	s.evaluator.motion = true
	s.tick()
	s.evaluator.motion = false

	for i := 2; i <= 10; i++ {
		require.Equal(t, Recording, s.tick(), "tick %d", i)
	}
	assert.Equal(t, Cooldown, s.tick())
	assert.Equal(t, 11, s.recorder.frames)
}

func TestCanMakeMultipleRecordings(t *testing.T) {
	conf := DefaultRecorderConfig()
	conf.MinSecs = 2
	conf.MotionCheckSecs = 1
	conf.CooldownSecs = 2
	s := newTestSetup(conf)

	for recording := 0; recording < 3; recording++ {
		s.evaluator.motion = true
		require.Equal(t, Recording, s.tick())
		s.evaluator.motion = false
		for s.controller.State() != Idle {
			s.tick()
		}
	}
	assert.Equal(t, 3, s.recorder.starts)
	assert.Equal(t, 3, s.recorder.stops)
}

func TestMaxSecsEndsRecording(t *testing.T) {
	conf := DefaultRecorderConfig()
	conf.MinSecs = 2
	conf.MaxSecs = 5
	s := newTestSetup(conf)
	s.evaluator.motion = true

	for i := 1; i <= 5; i++ {
		require.Equal(t, Recording, s.tick(), "tick %d", i)
	}
	assert.Equal(t, Cooldown, s.tick())
	assert.Equal(t, 6, s.recorder.frames)
}

func TestMaxFramesEndsManualRecording(t *testing.T) {
	conf := DefaultRecorderConfig()
	conf.MaxFrames = 3
	s := newTestSetup(conf)

	s.controller.StartRecording()
	assert.Equal(t, Recording, s.tick())
	assert.Equal(t, Recording, s.tick())
	assert.Equal(t, Cooldown, s.tick())
	assert.Equal(t, 3, s.recorder.frames)

	// The manual trigger doesn't restart a capped recording.
	for i := 0; i < 10; i++ {
		assert.NotEqual(t, Recording, s.tick())
	}
	assert.Equal(t, 1, s.recorder.starts)
}

func TestManualRecording(t *testing.T) {
	s := newTestSetup(DefaultRecorderConfig())
	s.controller.StartRecording()

	for i := 0; i < 60; i++ {
		require.Equal(t, Recording, s.tick())
	}
	assert.Equal(t, 0, s.listener.motion)

	s.controller.StopRecording()
	assert.Equal(t, Cooldown, s.tick())
	assert.Equal(t, 1, s.recorder.stops)
}

func TestStopRecordingWhileIdleIsIgnored(t *testing.T) {
	s := newTestSetup(DefaultRecorderConfig())
	s.controller.StopRecording()
	assert.Equal(t, Idle, s.tick())

	s.evaluator.motion = true
	assert.Equal(t, Recording, s.tick())
	assert.Equal(t, Recording, s.tick())
}

func TestNotTriggeredOutsideWindow(t *testing.T) {
	conf := DefaultRecorderConfig()
	conf.MinSecs = 1
	s := newTestSetup(conf)
	s.conf.WindowStart.Time = time.Date(1, 1, 1, 20, 0, 0, 0, time.UTC)
	s.conf.WindowEnd.Time = time.Date(1, 1, 1, 22, 0, 0, 0, time.UTC)
	s.controller.window = s.conf.Window()
	s.controller.window.Now = s.controller.now

	s.evaluator.motion = true
	assert.Equal(t, Idle, s.tick())
	assert.Equal(t, 0, s.recorder.starts)

	s.controller.StartRecording()
	assert.Equal(t, Recording, s.tick())

	s.controller.StopRecording()
	assert.Equal(t, Cooldown, s.tick())
	for s.controller.State() != Idle {
		s.tick()
	}

	s.now = time.Date(2024, 3, 9, 21, 0, 0, 0, time.Local)
	assert.Equal(t, Recording, s.tick())
	assert.Equal(t, 2, s.recorder.starts)
}

func TestNotStartedIfCheckCanRecordFails(t *testing.T) {
	s := newTestSetup(DefaultRecorderConfig())
	s.recorder.canRecord = errors.New("no space")
	s.evaluator.motion = true
	assert.Equal(t, Idle, s.tick())
	assert.Equal(t, 0, s.recorder.starts)
}

func TestWriteErrorEndsRecording(t *testing.T) {
	s := newTestSetup(DefaultRecorderConfig())
	s.evaluator.motion = true
	s.recorder.writeError = errors.New("card removed")
	assert.Equal(t, Cooldown, s.tick())
	assert.Equal(t, 1, s.recorder.stops)
}

func TestOversizeFrameSkipsTick(t *testing.T) {
	conf := DefaultRecorderConfig()
	conf.MaxFrameBytes = 4
	s := newTestSetup(conf)
	s.evaluator.motion = true

	assert.Equal(t, Idle, s.tick())
	assert.Equal(t, 0, s.evaluator.idleCalls)
	assert.Equal(t, 1, s.camera.releases)
	assert.Equal(t, 1, s.controller.skippedFrames)
}

func TestEmptyFrameSkipsTick(t *testing.T) {
	s := newTestSetup(DefaultRecorderConfig())
	s.camera.data = nil
	s.evaluator.motion = true
	assert.Equal(t, Idle, s.tick())
	assert.Equal(t, 0, s.evaluator.idleCalls)
	assert.Equal(t, 1, s.camera.releases)
}

func TestNilFrameIsNotReleased(t *testing.T) {
	s := newTestSetup(DefaultRecorderConfig())
	s.camera.nilFrame = true
	s.evaluator.motion = true
	assert.Equal(t, Idle, s.tick())
	assert.Equal(t, 1, s.camera.gets)
	assert.Equal(t, 0, s.camera.releases)
	assert.Equal(t, 0, s.evaluator.idleCalls)
}

func TestPIRTriggersRecording(t *testing.T) {
	s := newTestSetup(DefaultRecorderConfig())
	pir := &testTrigger{}
	s.controller.PIR = pir

	assert.Equal(t, Idle, s.tick())
	pir.on = true
	assert.Equal(t, Recording, s.tick())
}

type testTrigger struct{ on bool }

func (tt *testTrigger) Triggered() bool { return tt.on }

func TestLightLevelSampledWhenMotionDisabled(t *testing.T) {
	s := newTestSetup(DefaultRecorderConfig())
	s.controller.UseMotion = false
	s.evaluator.motion = true

	for i := 0; i < 10; i++ {
		assert.Equal(t, Idle, s.tick())
	}
	assert.Equal(t, 0, s.evaluator.idleCalls)
	assert.Equal(t, 2, s.evaluator.lightLevelCalls)
}

func TestRecordingHaltsPlayback(t *testing.T) {
	s := newTestSetup(DefaultRecorderConfig())
	playback := new(TestPlayback)
	s.controller.Playback = playback

	s.tick()
	assert.Equal(t, 0, playback.halts)
	s.evaluator.motion = true
	s.tick()
	assert.Equal(t, 1, playback.halts)
}

func TestTimelapseGetsEveryValidFrame(t *testing.T) {
	s := newTestSetup(DefaultRecorderConfig())
	timelapse := new(TestTimelapse)
	s.controller.Timelapse = timelapse
	s.controller.FPS = func() int { return 7 }

	s.tick()
	s.camera.nilFrame = true
	s.tick()
	s.camera.nilFrame = false
	s.evaluator.motion = true
	s.tick()
	assert.Equal(t, []int{7, 7}, timelapse.frames)
}

func TestRunClosesRecordingOnShutdown(t *testing.T) {
	conf := DefaultRecorderConfig()
	s := newTestSetup(conf)
	timelapse := new(TestTimelapse)
	s.controller.Timelapse = timelapse
	s.evaluator.motion = true
	beats := 0
	s.controller.Heartbeat = func() { beats++ }

	ctx, cancel := context.WithCancel(context.Background())
	captures := make(chan struct{})
	done := make(chan error)
	go func() { done <- s.controller.Run(ctx, captures) }()

	captures <- struct{}{}
	captures <- struct{}{}
	cancel()
	assert.Equal(t, context.Canceled, <-done)

	assert.Equal(t, 2, beats)
	assert.Equal(t, 1, s.recorder.starts)
	assert.Equal(t, 1, s.recorder.stops)
	assert.Equal(t, Cooldown, s.controller.State())
	assert.True(t, timelapse.closed)
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "recording", Recording.String())
	assert.Equal(t, "cooldown", Cooldown.String())
}
