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

package avi

import (
	"errors"
	"fmt"
	"math"
	"path"
	"time"

	"github.com/TheCacophonyProject/avi-recorder/storage"
	"github.com/TheCacophonyProject/avi-recorder/writeback"
)

// IOError is a failed storage operation. A session that returns one has
// been aborted and its temp file removed.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("avi %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

var ErrClosed = errors.New("avi session is closed")

type SessionConfig struct {
	FS       storage.FS
	TempName string
	// Owner names the session when it holds the write-back buffer.
	Owner     string
	FrameSize string
	Buffer    *writeback.Buffer
	Header    *HeaderScratch
	// Direct sessions write frames straight to the file and only borrow
	// the buffer while closing.
	Direct bool
	Now    func() time.Time
}

type CloseParams struct {
	// RequiredFPS is the configured capture rate, reported alongside the
	// measured rate.
	RequiredFPS int
	// FixedFPS, when set, is written to the header in place of the
	// measured rate.
	FixedFPS int
	// MinSecs is the shortest session that is kept.
	MinSecs int
	// Name returns the final storage name.
	Name func(fps, durationSecs int) string
}

// Result describes a closed session.
type Result struct {
	Name          string
	Kept          bool
	Reason        string
	Frames        int
	Duration      time.Duration
	DurationSecs  int
	RequiredFPS   int
	ActualFPS     float64
	Bytes         int64
	MaxFrameBytes int
	OpenTime      time.Duration
	CloseTime     time.Duration
	BufferTime    time.Duration
	WriteTime     time.Duration
}

// Session is one open-to-close lifecycle of an AVI file.
type Session struct {
	conf      SessionConfig
	file      storage.File
	index     *Index
	started   time.Time
	frames    int
	moviBytes int64
	maxFrame  int
	openTime  time.Duration
	bufTime   time.Duration
	writeTime time.Duration
	closed    bool
}

// Open creates the temp file and reserves space for the header.
func Open(conf SessionConfig) (*Session, error) {
	if conf.Now == nil {
		conf.Now = time.Now
	}
	if conf.Owner == "" {
		conf.Owner = conf.TempName
	}
	start := conf.Now()

	if !conf.Direct {
		if err := conf.Buffer.Acquire(conf.Owner); err != nil {
			return nil, err
		}
	}
	if conf.FS.Exists(conf.TempName) {
		conf.FS.Remove(conf.TempName)
	}
	file, err := conf.FS.Create(conf.TempName)
	if err != nil {
		if !conf.Direct {
			conf.Buffer.Release(conf.Owner)
		}
		return nil, &IOError{Op: "create", Err: err}
	}

	s := &Session{
		conf:  conf,
		file:  file,
		index: NewIndex(),
	}
	if conf.Direct {
		if _, err := file.Write(make([]byte, HeaderLen)); err != nil {
			s.abort()
			return nil, &IOError{Op: "write", Err: err}
		}
	} else {
		conf.Buffer.Reset(file, HeaderLen)
	}
	s.started = conf.Now()
	s.openTime = s.started.Sub(start)
	return s, nil
}

func (s *Session) Frames() int {
	return s.frames
}

func (s *Session) Started() time.Time {
	return s.started
}

// AppendFrame adds one JPEG frame as a padded 00dc chunk.
func (s *Session) AppendFrame(frame []byte) error {
	if s.closed {
		return ErrClosed
	}
	start := s.conf.Now()
	padded := PaddedLen(len(frame))
	var hdr [ChunkHeaderLen]byte
	PutChunkHeader(hdr[:], padded)

	var err error
	if s.conf.Direct {
		err = s.writeDirect(hdr[:], frame, Padding(len(frame)))
	} else {
		before := s.conf.Buffer.Stats().WriteTime
		err = s.push(hdr[:], frame, Padding(len(frame)))
		s.writeTime += s.conf.Buffer.Stats().WriteTime - before
	}
	if err != nil {
		s.abort()
		return &IOError{Op: "write", Err: err}
	}

	s.index.Add(padded)
	s.frames++
	s.moviBytes += int64(ChunkHeaderLen + padded)
	if padded > s.maxFrame {
		s.maxFrame = padded
	}
	s.bufTime += s.conf.Now().Sub(start)
	return nil
}

func (s *Session) push(parts ...[]byte) error {
	for _, p := range parts {
		if err := s.conf.Buffer.Push(p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) writeDirect(parts ...[]byte) error {
	start := time.Now()
	defer func() { s.writeTime += time.Since(start) }()
	for _, p := range parts {
		if _, err := s.file.Write(p); err != nil {
			return err
		}
	}
	return nil
}

// Close finishes the file: remaining buffered bytes, the index and then
// the final header. Sessions shorter than MinSecs are discarded. A direct
// session whose buffer is held elsewhere returns writeback.ErrBusy and
// stays open.
func (s *Session) Close(p CloseParams) (*Result, error) {
	if s.closed {
		return nil, ErrClosed
	}
	closeStart := s.conf.Now()
	elapsed := closeStart.Sub(s.started)
	res := &Result{
		Frames:        s.frames,
		Duration:      elapsed,
		DurationSecs:  int(math.Round(elapsed.Seconds())),
		RequiredFPS:   p.RequiredFPS,
		Bytes:         s.moviBytes,
		MaxFrameBytes: s.maxFrame,
		OpenTime:      s.openTime,
		BufferTime:    s.bufTime - s.writeTime,
	}
	if ms := elapsed.Milliseconds(); ms > 0 {
		res.ActualFPS = 1000 * float64(s.frames) / float64(ms)
	}

	if res.DurationSecs < p.MinSecs {
		s.abort()
		res.Reason = fmt.Sprintf("insufficient capture duration: %d secs", res.DurationSecs)
		res.CloseTime = s.conf.Now().Sub(closeStart)
		res.WriteTime = s.writeTime
		return res, nil
	}

	if s.conf.Direct {
		if err := s.conf.Buffer.Acquire(s.conf.Owner); err != nil {
			return nil, err
		}
	}
	defer s.conf.Buffer.Release(s.conf.Owner)

	if !s.conf.Direct {
		before := s.conf.Buffer.Stats().WriteTime
		err := s.conf.Buffer.Flush()
		s.writeTime += s.conf.Buffer.Stats().WriteTime - before
		if err != nil {
			s.abort()
			return nil, &IOError{Op: "flush", Err: err}
		}
	}

	page, err := s.conf.Buffer.Scratch()
	if err != nil {
		s.abort()
		return nil, err
	}
	s.index.Finalize()
	if _, err := s.index.WritePages(s.file, page); err != nil {
		s.abort()
		return nil, &IOError{Op: "write index", Err: err}
	}

	fps := p.FixedFPS
	if fps == 0 {
		fps = int(math.Round(res.ActualFPS))
		if fps == 0 {
			fps = p.RequiredFPS
		}
	}
	err = s.conf.Header.WriteFinal(s.file, HeaderParams{
		FPS:           fps,
		FrameSize:     s.conf.FrameSize,
		Frames:        s.frames,
		MoviBytes:     s.moviBytes,
		MaxFrameBytes: s.maxFrame,
	})
	if err != nil {
		s.abort()
		return nil, &IOError{Op: "write header", Err: err}
	}
	s.closed = true
	if err := s.file.Close(); err != nil {
		s.conf.FS.Remove(s.conf.TempName)
		return nil, &IOError{Op: "close", Err: err}
	}

	name := p.Name(fps, res.DurationSecs)
	if err := s.conf.FS.MkdirAll(path.Dir(name)); err != nil {
		return nil, &IOError{Op: "mkdir", Err: err}
	}
	if err := s.conf.FS.Rename(s.conf.TempName, name); err != nil {
		return nil, &IOError{Op: "rename", Err: err}
	}
	res.Name = name
	res.Kept = true
	res.WriteTime = s.writeTime
	res.CloseTime = s.conf.Now().Sub(closeStart)
	return res, nil
}

// Abort discards the session and its temp file.
func (s *Session) Abort() {
	if !s.closed {
		s.abort()
	}
}

func (s *Session) abort() {
	s.closed = true
	s.file.Close()
	s.conf.FS.Remove(s.conf.TempName)
	if !s.conf.Direct {
		s.conf.Buffer.Reset(nil, 0)
		s.conf.Buffer.Release(s.conf.Owner)
	}
}
