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


// Package playback streams a recorded AVI file back frame by frame at the
// rate it was recorded.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/TheCacophonyProject/avi-recorder/avi"
	"github.com/TheCacophonyProject/avi-recorder/naming"
	"github.com/TheCacophonyProject/avi-recorder/storage"
)

var ErrRecording = errors.New("playback refused: recording in progress")

// Pacer releases one token per frame interval while playing.
type Pacer interface {
	SetFPS(fps int) error
	SetPlaying(playing bool)
	Tokens() <-chan struct{}
}

type Config struct {
	// MaxFrameWait is how long Stop waits for the consumer before forcing
	// the playback closed.
	MaxFrameWait time.Duration `yaml:"max-frame-wait"`
}

func DefaultConfig() Config {
	return Config{
		MaxFrameWait: 1200 * time.Millisecond,
	}
}

func (conf *Config) Validate() error {
	if conf.MaxFrameWait <= 0 {
		return errors.New("max-frame-wait must be positive")
	}
	return nil
}

type State int32

const (
	Stopped State = iota
	Priming
	Streaming
	Draining
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Priming:
		return "priming"
	case Streaming:
		return "streaming"
	case Draining:
		return "draining"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Cluster is the part of a frame that is available in memory.
type Cluster struct {
	// Data is only valid until the next call to NextCluster.
	Data []byte
	// Start is set on the first cluster of each frame, along with the
	// padded size of the whole frame.
	Start     bool
	FrameSize int
}

type StopResult struct {
	Stopped bool
	Forced  bool
}

func New(fsys storage.FS, pacer Pacer, conf Config, clusterSize, liveFPS int, recording func() bool) *Engine {
	if recording == nil {
		recording = func() bool { return false }
	}
	return &Engine{
		fsys:        fsys,
		pacer:       pacer,
		conf:        conf,
		clusterSize: clusterSize,
		liveFPS:     liveFPS,
		recording:   recording,
	}
}

// Engine plays at most one file at a time. NextCluster is called by a
// single consumer; Open and Stop may be called from anywhere.
type Engine struct {
	fsys        storage.FS
	pacer       Pacer
	conf        Config
	clusterSize int
	liveFPS     int
	recording   func() bool

	opMu sync.Mutex

	mu   sync.Mutex
	cur  *session
	last *Report
}

// Open starts playing name, stopping any current playback.
func (e *Engine) Open(name string) error {
	if e.recording() {
		return ErrRecording
	}
	e.opMu.Lock()
	defer e.opMu.Unlock()
	e.stopLocked()

	meta, err := naming.Parse(name)
	if err != nil {
		log.Printf("%v, playing at %d fps", err, meta.FPS)
	}
	f, err := e.fsys.Open(name)
	if err != nil {
		return fmt.Errorf("opening %s: %w", name, err)
	}
	if _, err := f.Seek(avi.HeaderLen, io.SeekStart); err != nil {
		f.Close()
		return fmt.Errorf("seeking past header: %w", err)
	}
	if err := e.pacer.SetFPS(meta.FPS); err != nil {
		f.Close()
		return err
	}

	s := newSession(name, meta, f, e.clusterSize, e.pacer.Tokens())
	s.onFinish = e.finished
	e.mu.Lock()
	e.cur = s
	e.mu.Unlock()

	e.pacer.SetPlaying(true)
	go s.readLoop()
	s.kick <- struct{}{}
	log.Printf("playing %s at %d fps", name, meta.FPS)
	return nil
}

// NextCluster returns the next piece of the current frame, waiting for
// the pacer at the start of each frame. io.EOF marks the end of the
// playback.
func (e *Engine) NextCluster(ctx context.Context) (Cluster, error) {
	e.mu.Lock()
	s := e.cur
	e.mu.Unlock()
	if s == nil {
		return Cluster{}, io.EOF
	}
	return s.next(ctx)
}

// NextFrame appends the whole of the next frame to dst.
func (e *Engine) NextFrame(ctx context.Context, dst []byte) ([]byte, error) {
	c, err := e.NextCluster(ctx)
	if err != nil {
		return dst, err
	}
	dst = append(dst, c.Data...)
	for remaining := c.FrameSize - len(c.Data); remaining > 0; remaining -= len(c.Data) {
		if c, err = e.NextCluster(ctx); err != nil {
			return dst, err
		}
		dst = append(dst, c.Data...)
	}
	return dst, nil
}

// Stop ends the current playback, forcing it closed if the consumer does
// not finish within MaxFrameWait.
func (e *Engine) Stop() StopResult {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	return e.stopLocked()
}

// Halt stops any playback so a recording can start.
func (e *Engine) Halt() {
	if res := e.Stop(); res.Forced {
		log.Print("playback forced closed for recording")
	}
}

func (e *Engine) stopLocked() StopResult {
	e.mu.Lock()
	s := e.cur
	e.mu.Unlock()
	if s == nil {
		return StopResult{}
	}

	s.requestStop()
	timer := time.NewTimer(e.conf.MaxFrameWait)
	defer timer.Stop()
	select {
	case <-s.done:
	case <-timer.C:
		log.Print("force closing playback")
		s.finish(true)
	}
	return StopResult{Stopped: true, Forced: s.report.Forced}
}

func (e *Engine) finished(s *session) {
	if err := e.pacer.SetFPS(e.liveFPS); err != nil {
		log.Printf("failed to restore fps: %v", err)
	}
	e.pacer.SetPlaying(false)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cur == s {
		e.cur = nil
	}
	report := s.report
	e.last = &report
}

func (e *Engine) Playing() bool {
	return e.State() != Stopped
}

func (e *Engine) State() State {
	e.mu.Lock()
	s := e.cur
	e.mu.Unlock()
	if s == nil {
		return Stopped
	}
	return State(s.state.Load())
}

// LastReport describes the most recently finished playback.
func (e *Engine) LastReport() (Report, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return Report{}, false
	}
	return *e.last, true
}
