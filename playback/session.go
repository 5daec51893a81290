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
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/TheCacophonyProject/avi-recorder/avi"
	"github.com/TheCacophonyProject/avi-recorder/naming"
	"github.com/TheCacophonyProject/avi-recorder/storage"
)

type readResult struct {
	n   int
	err error
}

// session is one open file. The reader goroutine fills readBuf while the
// consumer works through the previous cluster, copied into work with the
// unparsed tail of the cluster before it.
type session struct {
	id     string
	name   string
	meta   naming.Meta
	file   storage.File
	tokens <-chan struct{}

	kick    chan struct{}
	results chan readResult
	stop    chan struct{}
	abort   chan struct{}
	done    chan struct{}

	stopOnce   sync.Once
	finishOnce sync.Once
	onFinish   func(*session)
	state      atomic.Int32
	report     Report

	// Consumer state.
	readBuf   []byte
	work      []byte
	buf       []byte
	off       int
	remaining int
	eof       bool
	last      time.Time

	started   time.Time
	frames    atomic.Int64
	bytes     atomic.Int64
	readTime  atomic.Int64
	copyTime  atomic.Int64
	waitTime  atomic.Int64
	sendTime  atomic.Int64
	completed atomic.Bool
}

func newSession(name string, meta naming.Meta, f storage.File, clusterSize int, tokens <-chan struct{}) *session {
	s := &session{
		id:      uuid.NewString(),
		name:    name,
		meta:    meta,
		file:    f,
		tokens:  tokens,
		kick:    make(chan struct{}, 1),
		results: make(chan readResult, 1),
		stop:    make(chan struct{}),
		abort:   make(chan struct{}),
		done:    make(chan struct{}),
		readBuf: make([]byte, clusterSize),
		work:    make([]byte, clusterSize+avi.ChunkHeaderLen),
		started: time.Now(),
	}
	s.state.Store(int32(Priming))
	return s
}

func (s *session) readLoop() {
	for {
		select {
		case <-s.kick:
		case <-s.abort:
			return
		}
		n, err := io.ReadFull(s.file, s.readBuf)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			err = nil
		}
		select {
		case s.results <- readResult{n: n, err: err}:
		case <-s.abort:
			return
		}
		if err != nil || n < len(s.readBuf) {
			return
		}
	}
}

func (s *session) requestStop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *session) next(ctx context.Context) (Cluster, error) {
	now := time.Now()
	if !s.last.IsZero() {
		s.sendTime.Add(int64(now.Sub(s.last)))
	}
	defer func() { s.last = time.Now() }()

	select {
	case <-s.done:
		return Cluster{}, io.EOF
	case <-s.stop:
		s.finish(false)
		return Cluster{}, io.EOF
	default:
	}

	start := false
	size := 0
	for {
		if s.remaining == 0 && !start {
			if len(s.buf)-s.off < avi.ChunkHeaderLen && !s.eof {
				if err := s.load(ctx); err != nil {
					return Cluster{}, err
				}
				continue
			}
			var ok bool
			if size, ok = avi.ParseChunkHeader(s.buf[s.off:]); !ok {
				// idx1 or the end of the file.
				s.completed.Store(true)
				s.finish(false)
				return Cluster{}, io.EOF
			}
			s.off += avi.ChunkHeaderLen
			s.remaining = size
			start = true
			if err := s.waitToken(ctx); err != nil {
				s.off -= avi.ChunkHeaderLen
				s.remaining = 0
				return Cluster{}, err
			}
			s.frames.Add(1)
			s.bytes.Add(int64(size))
			s.state.Store(int32(Streaming))
			if size == 0 {
				return Cluster{Start: true}, nil
			}
		}

		if s.off >= len(s.buf) {
			if s.eof {
				log.Printf("playback of %s ended mid frame", s.name)
				s.finish(false)
				return Cluster{}, io.EOF
			}
			if err := s.load(ctx); err != nil {
				return Cluster{}, err
			}
			continue
		}

		n := s.remaining
		if avail := len(s.buf) - s.off; n > avail {
			n = avail
		}
		data := s.buf[s.off : s.off+n]
		s.off += n
		s.remaining -= n
		return Cluster{Data: data, Start: start, FrameSize: size}, nil
	}
}

// load waits for the read in flight, moves it into the working buffer
// behind any unparsed bytes and starts the next read.
func (s *session) load(ctx context.Context) error {
	start := time.Now()
	var res readResult
	select {
	case res = <-s.results:
	case <-s.stop:
		s.finish(false)
		return io.EOF
	case <-s.abort:
		return io.EOF
	case <-ctx.Done():
		return ctx.Err()
	}
	s.readTime.Add(int64(time.Since(start)))
	if res.err != nil {
		s.finish(false)
		return fmt.Errorf("reading %s: %w", s.name, res.err)
	}

	start = time.Now()
	tail := copy(s.work, s.buf[s.off:])
	n := copy(s.work[tail:], s.readBuf[:res.n])
	s.buf = s.work[:tail+n]
	s.off = 0
	if res.n < len(s.readBuf) {
		s.eof = true
	} else {
		s.kick <- struct{}{}
	}
	s.copyTime.Add(int64(time.Since(start)))
	return nil
}

func (s *session) waitToken(ctx context.Context) error {
	start := time.Now()
	defer func() { s.waitTime.Add(int64(time.Since(start))) }()
	select {
	case <-s.tokens:
		return nil
	case <-s.stop:
		s.finish(false)
		return io.EOF
	case <-s.abort:
		return io.EOF
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finish closes the session exactly once. forced is set when the consumer
// did not respond to a stop request.
func (s *session) finish(forced bool) {
	s.finishOnce.Do(func() {
		s.state.Store(int32(Draining))
		close(s.abort)
		s.file.Close()
		s.report = s.buildReport(forced)
		s.report.Log()
		if s.onFinish != nil {
			s.onFinish(s)
		}
		s.state.Store(int32(Stopped))
		close(s.done)
	})
}
