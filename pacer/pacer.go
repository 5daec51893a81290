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

// Package pacer is the single frame clock. Each tick schedules one unit of
// capture work and, while a playback is active, releases one pacing token.
package pacer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MaxBacklog bounds the capture work that can pile up behind a stalled
// consumer. It matches the number of camera frame buffers.
const MaxBacklog = 4

// Ticker is the timing source behind a Pacer.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.Ticker.C
}

// NewTimeTicker returns a Ticker backed by time.Ticker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

// Pacer drives capture and playback at a configured frame rate.
type Pacer struct {
	mu        sync.Mutex
	newTicker func(time.Duration) Ticker
	fps       int
	ticker    Ticker
	done      chan struct{}
	wg        sync.WaitGroup

	playing  atomic.Bool
	ticks    atomic.Uint64
	captures chan struct{}
	tokens   chan struct{}
}

// New returns a stopped Pacer. newTicker may be nil, in which case
// NewTimeTicker is used.
func New(newTicker func(time.Duration) Ticker) *Pacer {
	if newTicker == nil {
		newTicker = NewTimeTicker
	}
	return &Pacer{
		newTicker: newTicker,
		captures:  make(chan struct{}, MaxBacklog),
		tokens:    make(chan struct{}, 1),
	}
}

// SetFPS (re)programs the frame rate. Setting the rate the pacer is already
// running at does nothing; any other rate replaces the timing source.
func (p *Pacer) SetFPS(fps int) error {
	if fps <= 0 {
		return fmt.Errorf("invalid frame rate %d", fps)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ticker != nil && fps == p.fps {
		return nil
	}
	p.stopLocked()
	p.fps = fps
	p.ticker = p.newTicker(time.Second / time.Duration(fps))
	p.done = make(chan struct{})
	p.wg.Add(1)
	go p.run(p.ticker, p.done)
	return nil
}

// FPS is the current frame rate, or 0 before the first SetFPS.
func (p *Pacer) FPS() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fps
}

// SetPlaying turns token release on or off. Clearing it drops any token
// that has not been taken.
func (p *Pacer) SetPlaying(playing bool) {
	p.playing.Store(playing)
	if !playing {
		select {
		case <-p.tokens:
		default:
		}
	}
}

// Captures receives one value per tick, coalesced to at most MaxBacklog.
func (p *Pacer) Captures() <-chan struct{} {
	return p.captures
}

// Tokens receives one pacing token per tick while playing.
func (p *Pacer) Tokens() <-chan struct{} {
	return p.tokens
}

// Ticks is the number of ticks since the pacer was created.
func (p *Pacer) Ticks() uint64 {
	return p.ticks.Load()
}

// Stop halts the timing source. The pacer can be restarted with SetFPS.
func (p *Pacer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Pacer) stopLocked() {
	if p.ticker == nil {
		return
	}
	close(p.done)
	p.wg.Wait()
	p.ticker.Stop()
	p.ticker = nil
}

func (p *Pacer) run(ticker Ticker, done chan struct{}) {
	defer p.wg.Done()
	for {
		select {
		case <-done:
			return
		case <-ticker.C():
			p.tick()
		}
	}
}

// tick never blocks.
func (p *Pacer) tick() {
	if p.playing.Load() {
		select {
		case p.tokens <- struct{}{}:
		default:
		}
	}
	select {
	case p.captures <- struct{}{}:
	default:
	}
	p.ticks.Add(1)
}
