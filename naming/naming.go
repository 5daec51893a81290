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

// Package naming formats and parses recording file names. The name is the
// only record of a recording's parameters:
//
//	{YYYYMMDD}/{YYYYMMDD}_{HHMMSS}_{frameSize}_{fps}_{duration}[_S][_M][_T].avi
//
// Duration is in seconds for motion recordings and in minutes for
// timelapse recordings (those tagged _T), whose fps is the playback rate.
package naming

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

const (
	DayLayout  = "20060102"
	PartLayout = "20060102_150405"
	Ext        = ".avi"

	RecordingTemp = "current.avi.temp"
	TimelapseTemp = "timelapse.avi.temp"

	delimiter    = "_"
	audioTag     = "S"
	telemetryTag = "M"
	timelapseTag = "T"

	fpsField      = 3
	durationField = 4
)

// Meta is everything a file name records about a recording.
type Meta struct {
	Started   time.Time
	FrameSize string
	FPS       int
	// Duration is seconds, or minutes when Timelapse is set.
	Duration  int
	Audio     bool
	Telemetry bool
	Timelapse bool
}

// FormatError reports a file name that does not follow the naming scheme.
type FormatError struct {
	Name   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed recording name %q: %s", e.Name, e.Reason)
}

func DayFolder(t time.Time) string {
	return t.Format(DayLayout)
}

// Name returns the storage name of the recording.
func (m Meta) Name() string {
	var b strings.Builder
	b.WriteString(DayFolder(m.Started))
	b.WriteString("/")
	b.WriteString(m.Started.Format(PartLayout))
	fmt.Fprintf(&b, "_%s_%d_%d", m.FrameSize, m.FPS, m.Duration)
	if m.Audio {
		b.WriteString(delimiter + audioTag)
	}
	if m.Telemetry {
		b.WriteString(delimiter + telemetryTag)
	}
	if m.Timelapse {
		b.WriteString(delimiter + timelapseTag)
	}
	b.WriteString(Ext)
	return b.String()
}

// DurationSecs is the recorded duration in seconds.
func (m Meta) DurationSecs() int {
	if m.Timelapse {
		return m.Duration * 60
	}
	return m.Duration
}

func RecordingName(started time.Time, frameSize string, fps, secs int, audio, telemetry bool) string {
	return Meta{
		Started:   started,
		FrameSize: frameSize,
		FPS:       fps,
		Duration:  secs,
		Audio:     audio,
		Telemetry: telemetry,
	}.Name()
}

func TimelapseName(started time.Time, frameSize string, playbackFPS, mins int) string {
	return Meta{
		Started:   started,
		FrameSize: frameSize,
		FPS:       playbackFPS,
		Duration:  mins,
		Timelapse: true,
	}.Name()
}

// Parse recovers the metadata from a recording name. When the name is
// malformed a *FormatError is returned together with whatever could be
// recovered; FPS is always at least 1.
func Parse(name string) (Meta, error) {
	meta := Meta{FPS: 1}
	base := strings.TrimSuffix(path.Base(name), Ext)
	fields := strings.Split(base, delimiter)
	if len(fields) <= durationField {
		return meta, &FormatError{Name: name, Reason: fmt.Sprintf("%d fields", len(fields))}
	}

	if started, err := time.ParseInLocation(PartLayout, fields[0]+delimiter+fields[1], time.Local); err == nil {
		meta.Started = started
	}
	meta.FrameSize = fields[2]
	for _, tag := range fields[durationField+1:] {
		switch tag {
		case audioTag:
			meta.Audio = true
		case telemetryTag:
			meta.Telemetry = true
		case timelapseTag:
			meta.Timelapse = true
		}
	}

	fps, err := strconv.Atoi(fields[fpsField])
	if err != nil {
		return meta, &FormatError{Name: name, Reason: "bad fps " + fields[fpsField]}
	}
	if fps > 1 {
		meta.FPS = fps
	}
	duration, err := strconv.Atoi(fields[durationField])
	if err != nil {
		return meta, &FormatError{Name: name, Reason: "bad duration " + fields[durationField]}
	}
	meta.Duration = duration
	return meta, nil
}

func IsTemp(name string) bool {
	return strings.HasSuffix(name, ".temp")
}

// SidecarName is name with its extension replaced by ext.
func SidecarName(name, ext string) string {
	return strings.TrimSuffix(name, path.Ext(name)) + ext
}
