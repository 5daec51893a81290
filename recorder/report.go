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
	"log"
	"time"

	"github.com/TheCacophonyProject/avi-recorder/avi"
)

// Report summarises a closed recording session.
type Report struct {
	ID            string
	Name          string
	Rejected      bool
	Reason        string
	Started       time.Time
	Duration      time.Duration
	Frames        int
	RequiredFPS   int
	ActualFPS     float64
	Bytes         int64
	AvgFrameBytes int64
	MaxFrameBytes int
	AvgBufferTime time.Duration
	AvgWriteTime  time.Duration
	WriteKBps     float64
	OpenTime      time.Duration
	CloseTime     time.Duration
	BusyPercent   float64
}

func newReport(id string, started time.Time, res *avi.Result) Report {
	r := Report{
		ID:            id,
		Name:          res.Name,
		Rejected:      !res.Kept,
		Reason:        res.Reason,
		Started:       started,
		Duration:      res.Duration,
		Frames:        res.Frames,
		RequiredFPS:   res.RequiredFPS,
		ActualFPS:     res.ActualFPS,
		Bytes:         res.Bytes,
		MaxFrameBytes: res.MaxFrameBytes,
		OpenTime:      res.OpenTime,
		CloseTime:     res.CloseTime,
	}
	if res.Frames > 0 {
		r.AvgFrameBytes = res.Bytes / int64(res.Frames)
		r.AvgBufferTime = res.BufferTime / time.Duration(res.Frames)
		r.AvgWriteTime = res.WriteTime / time.Duration(res.Frames)
	}
	if secs := res.WriteTime.Seconds(); secs > 0 {
		r.WriteKBps = float64(res.Bytes) / 1024 / secs
	}
	if res.Duration > 0 {
		busy := res.BufferTime + res.WriteTime
		r.BusyPercent = 100 * float64(busy) / float64(res.Duration)
	}
	return r
}

func (r *Report) Log() {
	if r.Rejected {
		log.Printf("recording %s discarded: %s", r.ID, r.Reason)
		return
	}
	log.Printf("recording %s saved as %s", r.ID, r.Name)
	log.Printf("\tduration: %.1fs, frames: %d", r.Duration.Seconds(), r.Frames)
	log.Printf("\tfps: required %d, actual %.1f", r.RequiredFPS, r.ActualFPS)
	log.Printf("\tsize: %d kB, average frame %d bytes, largest %d bytes", r.Bytes/1024, r.AvgFrameBytes, r.MaxFrameBytes)
	log.Printf("\taverage buffer time: %v, average write time: %v", r.AvgBufferTime, r.AvgWriteTime)
	log.Printf("\twrite speed: %.1f kB/s, busy: %.1f%%", r.WriteKBps, r.BusyPercent)
	log.Printf("\topen: %v, close: %v", r.OpenTime, r.CloseTime)
}
