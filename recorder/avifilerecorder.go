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
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/TheCacophonyProject/avi-recorder/avi"
	"github.com/TheCacophonyProject/avi-recorder/naming"
	"github.com/TheCacophonyProject/avi-recorder/storage"
	"github.com/TheCacophonyProject/avi-recorder/writeback"
)

const bufferOwner = "recording"

var (
	audioExts     = []string{".wav"}
	telemetryExts = []string{".csv", ".srt"}

	errNotRecording = errors.New("no recording in progress")
)

// FrameSizer reports the label of the frames being captured.
type FrameSizer interface {
	FrameSizeLabel() string
}

func NewAVIFileRecorder(
	conf *RecorderConfig,
	storageConf storage.StorageConfig,
	fsys storage.FS,
	buf *writeback.Buffer,
	header *avi.HeaderScratch,
	camera FrameSizer,
) *AVIFileRecorder {
	return &AVIFileRecorder{
		conf:        conf,
		storageConf: storageConf,
		fsys:        fsys,
		buf:         buf,
		header:      header,
		camera:      camera,
		now:         time.Now,
	}
}

// AVIFileRecorder writes each recording session to an AVI file named after
// its parameters.
type AVIFileRecorder struct {
	conf        *RecorderConfig
	storageConf storage.StorageConfig
	fsys        storage.FS
	buf         *writeback.Buffer
	header      *avi.HeaderScratch
	camera      FrameSizer
	now         func() time.Time

	session  *avi.Session
	id       string
	disabled atomic.Bool

	mu         sync.Mutex
	lastReport *Report
}

func (fr *AVIFileRecorder) CheckCanRecord() error {
	if fr.disabled.Load() {
		return fmt.Errorf("recording disabled: %w", storage.ErrInsufficientSpace)
	}
	return nil
}

func (fr *AVIFileRecorder) StartRecording() error {
	if fr.session != nil {
		return errors.New("recording already in progress")
	}
	session, err := avi.Open(avi.SessionConfig{
		FS:        fr.fsys,
		TempName:  naming.RecordingTemp,
		Owner:     bufferOwner,
		FrameSize: fr.camera.FrameSizeLabel(),
		Buffer:    fr.buf,
		Header:    fr.header,
		Now:       fr.now,
	})
	if err != nil {
		return err
	}
	fr.session = session
	fr.id = uuid.NewString()
	log.Printf("recording started: %s", fr.id)
	return nil
}

func (fr *AVIFileRecorder) WriteFrame(frame []byte) error {
	if fr.session == nil {
		return errNotRecording
	}
	if err := fr.session.AppendFrame(frame); err != nil {
		// The session has aborted itself.
		fr.session = nil
		return err
	}
	return nil
}

func (fr *AVIFileRecorder) StopRecording() error {
	session := fr.session
	if session == nil {
		return nil
	}
	fr.session = nil

	started := session.Started()
	frameSize := fr.camera.FrameSizeLabel()
	audio := fr.sidecarExists(audioExts)
	telemetry := fr.sidecarExists(telemetryExts)
	res, err := session.Close(avi.CloseParams{
		RequiredFPS: fr.conf.FPS,
		MinSecs:     fr.conf.MinSecs,
		Name: func(fps, secs int) string {
			return naming.RecordingName(started, frameSize, fps, secs, audio, telemetry)
		},
	})
	if err != nil {
		return err
	}

	report := newReport(fr.id, started, res)
	report.Log()
	fr.mu.Lock()
	fr.lastReport = &report
	fr.mu.Unlock()
	if !res.Kept {
		fr.removeSidecars()
		return nil
	}

	fr.moveSidecars(res.Name)
	fr.checkFreeSpace(naming.DayFolder(started))
	return nil
}

// Stop abandons any recording in progress.
func (fr *AVIFileRecorder) Stop() {
	if fr.session != nil {
		fr.session.Abort()
		fr.session = nil
	}
}

func (fr *AVIFileRecorder) Recording() bool {
	return fr.session != nil
}

// LastReport returns the report of the most recently closed session.
func (fr *AVIFileRecorder) LastReport() (Report, bool) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	if fr.lastReport == nil {
		return Report{}, false
	}
	return *fr.lastReport, true
}

// Recheck re-enables recording if enough storage has been freed since it
// was disabled.
func (fr *AVIFileRecorder) Recheck() error {
	if !fr.disabled.Load() {
		return nil
	}
	conf := fr.storageConf
	conf.AutoDelete = false
	if err := storage.CheckFreeSpace(fr.fsys, conf, ""); err != nil {
		return err
	}
	log.Print("recording re-enabled")
	fr.disabled.Store(false)
	return nil
}

func (fr *AVIFileRecorder) checkFreeSpace(keepDay string) {
	err := storage.CheckFreeSpace(fr.fsys, fr.storageConf, keepDay)
	if errors.Is(err, storage.ErrInsufficientSpace) {
		log.Print("recording disabled: not enough free storage space")
		fr.disabled.Store(true)
	} else if err != nil {
		log.Printf("problem with checking free space: %v", err)
	}
}

func tempSidecarBase() string {
	return strings.TrimSuffix(naming.RecordingTemp, naming.Ext+".temp")
}

func (fr *AVIFileRecorder) sidecarExists(exts []string) bool {
	for _, ext := range exts {
		if fr.fsys.Exists(tempSidecarBase() + ext) {
			return true
		}
	}
	return false
}

func (fr *AVIFileRecorder) moveSidecars(name string) {
	for _, ext := range append(audioExts, telemetryExts...) {
		temp := tempSidecarBase() + ext
		if !fr.fsys.Exists(temp) {
			continue
		}
		if err := fr.fsys.Rename(temp, naming.SidecarName(name, ext)); err != nil {
			log.Printf("failed to rename %s: %v", temp, err)
		}
	}
}

func (fr *AVIFileRecorder) removeSidecars() {
	for _, ext := range append(audioExts, telemetryExts...) {
		temp := tempSidecarBase() + ext
		if fr.fsys.Exists(temp) {
			fr.fsys.Remove(temp)
		}
	}
}
