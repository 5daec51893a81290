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


package playback

import (
	"log"
	"time"
)

// Report summarises a finished playback.
type Report struct {
	ID           string
	Name         string
	RecordedFPS  int
	RecordedSecs int
	Frames       int
	Bytes        int64
	Duration     time.Duration
	PlaybackFPS  float64
	AvgReadTime  time.Duration
	AvgCopyTime  time.Duration
	AvgWaitTime  time.Duration
	AvgSendTime  time.Duration
	ReadKBps     float64
	BusyPercent  float64
	Completed    bool
	Forced       bool
}

func (s *session) buildReport(forced bool) Report {
	r := Report{
		ID:           s.id,
		Name:         s.name,
		RecordedFPS:  s.meta.FPS,
		RecordedSecs: s.meta.DurationSecs(),
		Frames:       int(s.frames.Load()),
		Bytes:        s.bytes.Load(),
		Duration:     time.Since(s.started),
		Completed:    s.completed.Load(),
		Forced:       forced,
	}
	if secs := r.Duration.Seconds(); secs > 0 {
		r.PlaybackFPS = float64(r.Frames) / secs
	}
	read := time.Duration(s.readTime.Load())
	cpy := time.Duration(s.copyTime.Load())
	wait := time.Duration(s.waitTime.Load())
	send := time.Duration(s.sendTime.Load())
	if r.Frames > 0 {
		n := time.Duration(r.Frames)
		r.AvgReadTime = read / n
		r.AvgCopyTime = cpy / n
		r.AvgWaitTime = wait / n
		r.AvgSendTime = send / n
	}
	if secs := read.Seconds(); secs > 0 {
		r.ReadKBps = float64(r.Bytes) / 1024 / secs
	}
	busy := read + cpy + send
	if total := busy + wait; total > 0 {
		r.BusyPercent = 100 * float64(busy) / float64(total)
	}
	return r
}

func (r *Report) Log() {
	if r.Forced {
		log.Printf("playback %s of %s force closed", r.ID, r.Name)
	} else {
		log.Printf("playback %s of %s finished", r.ID, r.Name)
	}
	log.Printf("\trecorded: %d fps, %d secs", r.RecordedFPS, r.RecordedSecs)
	log.Printf("\tplayback: %.1f fps, %.1f secs, %d frames", r.PlaybackFPS, r.Duration.Seconds(), r.Frames)
	if r.Frames == 0 {
		return
	}
	log.Printf("\taverage read: %v (%.1f kB/s), copy: %v", r.AvgReadTime, r.ReadKBps, r.AvgCopyTime)
	log.Printf("\taverage frame wait: %v, send: %v", r.AvgWaitTime, r.AvgSendTime)
	log.Printf("\tbusy: %.1f%%", r.BusyPercent)
}
