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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/avi-recorder/playback"
	"github.com/TheCacophonyProject/avi-recorder/recorder"
	"github.com/TheCacophonyProject/avi-recorder/storage"
)

type testControl struct {
	starts, stops int
	state         recorder.State
}

func (c *testControl) StartRecording()       { c.starts++ }
func (c *testControl) StopRecording()        { c.stops++ }
func (c *testControl) State() recorder.State { return c.state }

type testPlayer struct {
	forced bool
	state  playback.State
}

func (p *testPlayer) Stop() playback.StopResult {
	return playback.StopResult{Stopped: true, Forced: p.forced}
}

func (p *testPlayer) State() playback.State { return p.state }

type testFileRecorder struct {
	rechecks   int
	recheckErr error
	report     *recorder.Report
}

func (r *testFileRecorder) Recheck() error {
	r.rechecks++
	return r.recheckErr
}

func (r *testFileRecorder) LastReport() (recorder.Report, bool) {
	if r.report == nil {
		return recorder.Report{}, false
	}
	return *r.report, true
}

func newTestService(t *testing.T) (*service, *testControl, *testPlayer, *testFileRecorder) {
	control := &testControl{}
	player := &testPlayer{}
	rec := &testFileRecorder{}
	return &service{
		fsys:     storage.NewDir(t.TempDir()),
		control:  control,
		player:   player,
		recorder: rec,
	}, control, player, rec
}

func writeFile(t *testing.T, fsys storage.FS, name string) {
	f, err := fsys.Create(name)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestManualRecording(t *testing.T) {
	s, control, _, _ := newTestService(t)
	assert.Nil(t, s.StartRecording())
	assert.Nil(t, s.StopRecording())
	assert.Equal(t, 1, control.starts)
	assert.Equal(t, 1, control.stops)
}

func TestStopPlaybackReportsForced(t *testing.T) {
	s, _, player, _ := newTestService(t)
	forced, dbusErr := s.StopPlayback()
	assert.Nil(t, dbusErr)
	assert.False(t, forced)

	player.forced = true
	forced, _ = s.StopPlayback()
	assert.True(t, forced)
}

func TestListAndDelete(t *testing.T) {
	s, _, _, rec := newTestService(t)
	require.NoError(t, s.fsys.MkdirAll("20240308"))
	require.NoError(t, s.fsys.MkdirAll("20240309"))
	writeFile(t, s.fsys, "20240309/20240309_101112_SVGA_10_30.avi")
	writeFile(t, s.fsys, "20240309/20240309_101112_SVGA_10_30.csv")
	writeFile(t, s.fsys, "20240309/20240309_111112_SVGA_10_30.avi")

	days, dbusErr := s.ListDays()
	assert.Nil(t, dbusErr)
	assert.Equal(t, []string{"20240309", "20240308"}, days)

	names, dbusErr := s.ListRecordings("20240309")
	assert.Nil(t, dbusErr)
	assert.Equal(t, []string{
		"20240309/20240309_111112_SVGA_10_30.avi",
		"20240309/20240309_101112_SVGA_10_30.avi",
	}, names)

	assert.Nil(t, s.DeleteRecording("20240309/20240309_101112_SVGA_10_30.avi"))
	assert.False(t, s.fsys.Exists("20240309/20240309_101112_SVGA_10_30.csv"))
	assert.Equal(t, 1, rec.rechecks)

	assert.Nil(t, s.DeleteRecording("20240308"))
	assert.False(t, s.fsys.Exists("20240308"))
	assert.Equal(t, 2, rec.rechecks)
}

func TestFailedRecheckIsLogged(t *testing.T) {
	buf := captureLog(t)
	s, _, _, rec := newTestService(t)
	rec.recheckErr = storage.ErrInsufficientSpace
	writeFile(t, s.fsys, "20240309_101112_SVGA_10_30.avi")

	assert.Nil(t, s.DeleteRecording("20240309_101112_SVGA_10_30.avi"))
	assert.Equal(t, 1, rec.rechecks)
	assert.Contains(t, buf.String(), "recording still disabled after deleting 20240309_101112_SVGA_10_30.avi")
}

func TestDeleteErrors(t *testing.T) {
	s, _, _, rec := newTestService(t)
	writeFile(t, s.fsys, "current.avi.temp")

	assert.NotNil(t, s.DeleteRecording("current.avi.temp"))
	assert.True(t, s.fsys.Exists("current.avi.temp"))
	assert.NotNil(t, s.DeleteRecording("/"))
	assert.NotNil(t, s.DeleteRecording("20240309/missing.avi"))

	_, dbusErr := s.ListRecordings("20240101")
	require.NotNil(t, dbusErr)
	assert.Equal(t, dbusName+".ListRecordings", dbusErr.Name)
	assert.Equal(t, 0, rec.rechecks)
}

func TestStatus(t *testing.T) {
	s, control, player, rec := newTestService(t)
	state, playing, last, dbusErr := s.Status()
	assert.Nil(t, dbusErr)
	assert.Equal(t, "idle", state)
	assert.Equal(t, "stopped", playing)
	assert.Equal(t, "", last)

	control.state = recorder.Recording
	player.state = playback.Streaming
	rec.report = &recorder.Report{Name: "20240309/a.avi"}
	state, playing, last, _ = s.Status()
	assert.Equal(t, "recording", state)
	assert.Equal(t, "streaming", playing)
	assert.Equal(t, "20240309/a.avi", last)

	rec.report = &recorder.Report{Rejected: true, Reason: "too short"}
	_, _, last, _ = s.Status()
	assert.Equal(t, "", last)
}
