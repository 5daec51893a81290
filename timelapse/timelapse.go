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


// Package timelapse keeps a second AVI file going that samples one frame
// every few seconds, independently of motion recordings.
package timelapse

import (
	"errors"
	"log"
	"time"

	"github.com/TheCacophonyProject/avi-recorder/avi"
	"github.com/TheCacophonyProject/avi-recorder/naming"
	"github.com/TheCacophonyProject/avi-recorder/storage"
	"github.com/TheCacophonyProject/avi-recorder/writeback"
)

const bufferOwner = "timelapse"

// minValidYear is the year before which the wall clock is assumed to be
// unset.
const minValidYear = 2020

type FrameSizer interface {
	FrameSizeLabel() string
}

func New(
	conf *Config,
	fsys storage.FS,
	buf *writeback.Buffer,
	header *avi.HeaderScratch,
	camera FrameSizer,
) *Timelapse {
	return &Timelapse{
		conf:   conf,
		fsys:   fsys,
		buf:    buf,
		header: header,
		camera: camera,
		now:    time.Now,
	}
}

// Timelapse appends one frame every SecsBetweenFrames seconds and starts a
// new file once DurationMins worth of frames have been written. Process
// and ForceClose must be called from the capture goroutine.
type Timelapse struct {
	conf   *Config
	fsys   storage.FS
	buf    *writeback.Buffer
	header *avi.HeaderScratch
	camera FrameSizer
	now    func() time.Time

	session      *avi.Session
	required     int
	intervalCnt  int
	intervalMark int
	closing      bool
	last         *avi.Result
}

func (tl *Timelapse) clockSet() bool {
	return tl.now().Year() >= minValidYear
}

// Process is handed every paced frame along with the current capture rate.
func (tl *Timelapse) Process(frame []byte, fps int) {
	if !tl.conf.Enabled || !tl.clockSet() {
		return
	}
	if tl.closing {
		tl.close(false)
		return
	}
	if tl.session == nil {
		if err := tl.open(fps); err != nil {
			log.Printf("failed to start timelapse: %v", err)
			return
		}
	}

	if tl.intervalCnt > tl.intervalMark {
		if err := tl.session.AppendFrame(frame); err != nil {
			log.Printf("timelapse aborted: %v", err)
			tl.session = nil
			return
		}
		tl.intervalCnt = 0
		tl.intervalMark = tl.conf.SecsBetweenFrames * fps
	}
	tl.intervalCnt++

	if tl.session.Frames() >= tl.required {
		tl.close(false)
	}
}

func (tl *Timelapse) open(fps int) error {
	session, err := avi.Open(avi.SessionConfig{
		FS:        tl.fsys,
		TempName:  naming.TimelapseTemp,
		Owner:     bufferOwner,
		FrameSize: tl.camera.FrameSizeLabel(),
		Buffer:    tl.buf,
		Header:    tl.header,
		Direct:    true,
		Now:       tl.now,
	})
	if err != nil {
		return err
	}
	tl.session = session
	tl.required = tl.conf.RequiredFrames()
	tl.intervalCnt = 0
	tl.intervalMark = tl.conf.SecsBetweenFrames * fps
	log.Printf("started timelapse, duration %d mins, for %d frames", tl.conf.DurationMins, tl.required)
	return nil
}

// ForceClose saves the frames written so far.
func (tl *Timelapse) ForceClose() {
	if tl.session == nil {
		return
	}
	if tl.session.Frames() == 0 {
		tl.session.Abort()
		tl.session = nil
		return
	}
	tl.close(true)
}

func (tl *Timelapse) close(force bool) {
	started := tl.session.Started()
	label := tl.camera.FrameSizeLabel()
	res, err := tl.session.Close(avi.CloseParams{
		RequiredFPS: tl.conf.PlaybackFPS,
		FixedFPS:    tl.conf.PlaybackFPS,
		Name: func(fps, secs int) string {
			return naming.TimelapseName(started, label, fps, tl.conf.DurationMins)
		},
	})
	if errors.Is(err, writeback.ErrBusy) {
		if !force {
			// A recording holds the buffer. Try again next frame.
			tl.closing = true
			return
		}
		tl.session.Abort()
	}
	tl.closing = false
	tl.session = nil
	if err != nil {
		log.Printf("failed to finish timelapse: %v", err)
		return
	}
	tl.last = res
	log.Printf("finished timelapse: %s (%d frames)", res.Name, res.Frames)
}

// Active reports whether a timelapse file is open.
func (tl *Timelapse) Active() bool {
	return tl.session != nil
}

// Last returns the most recently finished timelapse.
func (tl *Timelapse) Last() (avi.Result, bool) {
	if tl.last == nil {
		return avi.Result{}, false
	}
	return *tl.last, true
}
