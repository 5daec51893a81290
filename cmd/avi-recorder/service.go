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
	"errors"
	"fmt"
	"log"

	"github.com/godbus/dbus"
	"github.com/godbus/dbus/introspect"

	"github.com/TheCacophonyProject/avi-recorder/naming"
	"github.com/TheCacophonyProject/avi-recorder/playback"
	"github.com/TheCacophonyProject/avi-recorder/recorder"
	"github.com/TheCacophonyProject/avi-recorder/storage"
)

const (
	dbusName = "org.cacophony.avirecorder"
	dbusPath = "/org/cacophony/avirecorder"
)

type recordingControl interface {
	StartRecording()
	StopRecording()
	State() recorder.State
}

type playbackControl interface {
	Stop() playback.StopResult
	State() playback.State
}

type fileRecorder interface {
	Recheck() error
	LastReport() (recorder.Report, bool)
}

type service struct {
	fsys     storage.FS
	control  recordingControl
	player   playbackControl
	recorder fileRecorder
}

func startService(s *service) error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return err
	}
	reply, err := conn.RequestName(dbusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return errors.New("name already taken")
	}

	conn.Export(s, dbusPath, dbusName)
	conn.Export(genIntrospectable(s), dbusPath, "org.freedesktop.DBus.Introspectable")
	return nil
}

func genIntrospectable(v interface{}) introspect.Introspectable {
	node := &introspect.Node{
		Interfaces: []introspect.Interface{{
			Name:    dbusName,
			Methods: introspect.Methods(v),
		}},
	}
	return introspect.NewIntrospectable(node)
}

// StartRecording starts a manual recording. It runs until StopRecording
// or until it reaches the maximum length.
func (s *service) StartRecording() *dbus.Error {
	s.control.StartRecording()
	return nil
}

func (s *service) StopRecording() *dbus.Error {
	s.control.StopRecording()
	return nil
}

// StopPlayback ends the playback being streamed over the websocket, which
// opens its own file. It returns true if the playback had to be forced
// closed.
func (s *service) StopPlayback() (bool, *dbus.Error) {
	res := s.player.Stop()
	return res.Forced, nil
}

// ListDays returns the day folders, newest first.
func (s *service) ListDays() ([]string, *dbus.Error) {
	days, err := storage.ListDays(s.fsys)
	if err != nil {
		return nil, makeDbusError("ListDays", err)
	}
	return days, nil
}

func (s *service) ListRecordings(day string) ([]string, *dbus.Error) {
	names, err := storage.ListRecordings(s.fsys, day)
	if err != nil {
		return nil, makeDbusError("ListRecordings", err)
	}
	return names, nil
}

// DeleteRecording removes a recording and its sidecars, or a whole day
// folder. Recording is re-enabled if it was stopped for lack of space.
func (s *service) DeleteRecording(name string) *dbus.Error {
	if naming.IsTemp(name) {
		return makeDbusError("DeleteRecording", fmt.Errorf("%s is still being written", name))
	}
	if err := storage.Delete(s.fsys, name); err != nil {
		return makeDbusError("DeleteRecording", err)
	}
	if err := s.recorder.Recheck(); err != nil {
		log.Printf("recording still disabled after deleting %s: %v", name, err)
	}
	return nil
}

// Status returns the recorder state, the playback state and the name of the
// last recording kept.
func (s *service) Status() (string, string, string, *dbus.Error) {
	last := ""
	if report, ok := s.recorder.LastReport(); ok && !report.Rejected {
		last = report.Name
	}
	return s.control.State().String(), s.player.State().String(), last, nil
}

func makeDbusError(name string, err error) *dbus.Error {
	return &dbus.Error{
		Name: dbusName + "." + name,
		Body: []interface{}{err.Error()},
	}
}
