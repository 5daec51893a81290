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
	"encoding/json"
	"log"
	"time"

	"github.com/godbus/dbus"
)

const (
	eventsService = "org.cacophony.Events"
	eventsPath    = "/org/cacophony/Events"
	eventsQueue   = eventsService + ".Queue"
)

// QueueFunc hands an event to the event reporter.
type QueueFunc func(details []byte, nanos int64) error

// DBusQueue sends events to the event reporter over the system bus.
func DBusQueue(details []byte, nanos int64) error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return err
	}
	obj := conn.Object(eventsService, dbus.ObjectPath(eventsPath))
	return obj.Call(eventsQueue, 0, details, nanos).Err
}

func NewThrottledEventRecorder(queue QueueFunc) *ThrottledEventRecorder {
	if queue == nil {
		queue = DBusQueue
	}
	return &ThrottledEventRecorder{
		queue: queue,
		now:   time.Now,
	}
}

// ThrottledEventRecorder uses the event api to record when recordings were
// throttled, started or ended.
type ThrottledEventRecorder struct {
	queue QueueFunc
	now   func() time.Time
}

func (er *ThrottledEventRecorder) WhenThrottled() {
	er.record("throttle")
}

func (er *ThrottledEventRecorder) MotionDetected() {}

func (er *ThrottledEventRecorder) RecordingStarted() {
	er.record("recordingStarted")
}

func (er *ThrottledEventRecorder) RecordingEnded() {
	er.record("recordingEnded")
}

func (er *ThrottledEventRecorder) record(eventType string) {
	ts := er.now()
	eventDetails := map[string]interface{}{
		"description": map[string]interface{}{
			"type": eventType,
		},
	}
	detailsJSON, err := json.Marshal(&eventDetails)
	if err != nil {
		log.Printf("Could not record %s event: %s", eventType, err)
		return
	}
	if err := er.queue(detailsJSON, ts.UnixNano()); err != nil {
		log.Printf("Could not record %s event: %s", eventType, err)
	}
}
