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

package throttle

import (
	"errors"
	"log"
	"time"

	"github.com/juju/ratelimit"

	"github.com/TheCacophonyProject/avi-recorder/recorder"
)

// ErrThrottled is returned instead of starting, or continuing, a recording
// once the recording time allowance has run out.
var ErrThrottled = errors.New("recording throttled")

type ThrottledEventListener interface {
	WhenThrottled()
}

type nullListener struct{}

func (nullListener) WhenThrottled() {}

func NewThrottledRecorder(
	base recorder.Recorder,
	conf *ThrottlerConfig,
	minSecs int,
	fps int,
	listener ThrottledEventListener,
) *ThrottledRecorder {
	return NewThrottledRecorderWithClock(base, conf, minSecs, fps, listener, realClock{})
}

// NewThrottledRecorderWithClock is NewThrottledRecorder with the bucket
// refilled by clock.
func NewThrottledRecorderWithClock(
	base recorder.Recorder,
	conf *ThrottlerConfig,
	minSecs int,
	fps int,
	listener ThrottledEventListener,
	clock ratelimit.Clock,
) *ThrottledRecorder {
	capacity := int64(conf.BucketSize.Seconds()) * int64(fps)
	minFrames := int64(minSecs * fps)
	if minFrames > capacity {
		log.Print("min-secs is longer than the throttle bucket, nothing will be recorded")
	}
	if listener == nil {
		listener = nullListener{}
	}
	// A full refill of one minimum recording takes MinRefill.
	rate := float64(minFrames) / conf.MinRefill.Seconds()
	return &ThrottledRecorder{
		base:      base,
		listener:  listener,
		bucket:    ratelimit.NewBucketWithRateAndClock(rate, capacity, clock),
		minFrames: minFrames,
	}
}

// ThrottledRecorder limits how many frames are recorded over time. Each
// written frame takes a token from a bucket that slowly refills. A
// recording only starts when the bucket holds at least a minimum length
// recording, and ends with ErrThrottled when the bucket runs dry, so the
// controller leaves the Recording state while no file is being written.
// A camera facing a busy road or windy vegetation would otherwise record
// near identical footage back to back.
type ThrottledRecorder struct {
	base      recorder.Recorder
	listener  ThrottledEventListener
	bucket    *ratelimit.Bucket
	minFrames int64

	recording bool
	throttled bool
}

func (tr *ThrottledRecorder) CheckCanRecord() error {
	if err := tr.base.CheckCanRecord(); err != nil {
		return err
	}
	if tr.bucket.Available() < tr.minFrames {
		tr.throttle("recording refused: throttled")
		return ErrThrottled
	}
	return nil
}

func (tr *ThrottledRecorder) StartRecording() error {
	if tr.bucket.Available() < tr.minFrames {
		tr.throttle("recording refused: throttled")
		return ErrThrottled
	}
	if err := tr.base.StartRecording(); err != nil {
		return err
	}
	tr.recording = true
	tr.throttled = false
	return nil
}

func (tr *ThrottledRecorder) WriteFrame(frame []byte) error {
	if !tr.recording {
		return tr.base.WriteFrame(frame)
	}
	if tr.bucket.TakeAvailable(1) == 0 {
		tr.throttle("recording throttled")
		tr.recording = false
		if err := tr.base.StopRecording(); err != nil {
			return err
		}
		return ErrThrottled
	}
	return tr.base.WriteFrame(frame)
}

func (tr *ThrottledRecorder) StopRecording() error {
	if !tr.recording {
		return nil
	}
	tr.recording = false
	return tr.base.StopRecording()
}

// Throttled reports whether a new recording would be refused.
func (tr *ThrottledRecorder) Throttled() bool {
	return !tr.recording && tr.bucket.Available() < tr.minFrames
}

// throttle notifies the listener once per throttled period.
func (tr *ThrottledRecorder) throttle(msg string) {
	if tr.throttled {
		return
	}
	tr.throttled = true
	log.Print(msg)
	tr.listener.WhenThrottled()
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Sleep(d time.Duration) {
	time.Sleep(d)
}
