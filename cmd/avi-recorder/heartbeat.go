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
	"log"

	"github.com/coreos/go-systemd/daemon"
)

const (
	frameLogSecsFirstMin = 15
	frameLogSecs         = 60 * 5
	notifySecs           = 5
	firstMinFrames       = 60
)

type frameCounter interface {
	Frames() uint64
	Dropped() uint64
}

func sdNotify(state string) {
	daemon.SdNotify(false, state)
}

func newHeartbeat(fps func() int, camera frameCounter) *heartbeat {
	return &heartbeat{
		fps:    fps,
		camera: camera,
		notify: sdNotify,
	}
}

// heartbeat is called after every paced frame. It keeps the systemd
// watchdog fed and logs the frame counts, often for the first minute and
// then every few minutes.
type heartbeat struct {
	fps    func() int
	camera frameCounter
	notify func(string)

	ticks       int
	notifyCount int
	logCount    int
}

func (h *heartbeat) beat() {
	fps := h.fps()
	if fps < 1 {
		fps = 1
	}
	h.ticks++

	if h.notifyCount++; h.notifyCount >= notifySecs*fps {
		h.notify("WATCHDOG=1")
		h.notifyCount = 0
	}

	logInterval := frameLogSecs * fps
	if h.ticks <= firstMinFrames*fps {
		logInterval = frameLogSecsFirstMin * fps
	}
	if h.logCount++; h.logCount >= logInterval {
		log.Printf("%d frames paced, %d received from camera, %d dropped",
			h.ticks, h.camera.Frames(), h.camera.Dropped())
		h.logCount = 0
	}
}
