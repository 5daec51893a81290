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

package loglimiter

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// maxTracked bounds the number of distinct messages remembered.
const maxTracked = 64

// New returns a new LogLimiter with the configured minimum log interval.
func New(interval time.Duration) *LogLimiter {
	return &LogLimiter{
		interval: interval,
		nowFunc:  time.Now,
		entries:  make(map[string]*entry),
	}
}

// LogLimiter logs each distinct message at most once per interval. When a
// message is let through again, the number of copies suppressed in the
// meantime is appended.
type LogLimiter struct {
	interval time.Duration
	nowFunc  func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	last       time.Time
	suppressed int
}

func (limiter *LogLimiter) Printf(format string, v ...interface{}) {
	limiter.Print(fmt.Sprintf(format, v...))
}

func (limiter *LogLimiter) Print(s string) {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	now := limiter.nowFunc()
	e, ok := limiter.entries[s]
	if ok && now.Sub(e.last) < limiter.interval {
		e.suppressed++
		return
	}
	if !ok {
		limiter.prune(now)
		e = new(entry)
		limiter.entries[s] = e
	}

	if e.suppressed > 0 {
		log.Printf("%s (suppressed %d)", s, e.suppressed)
	} else {
		log.Print(s)
	}
	e.last = now
	e.suppressed = 0
}

// Suppressed is the number of copies of s held back since it was last
// logged.
func (limiter *LogLimiter) Suppressed(s string) int {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if e, ok := limiter.entries[s]; ok {
		return e.suppressed
	}
	return 0
}

func (limiter *LogLimiter) prune(now time.Time) {
	if len(limiter.entries) < maxTracked {
		return
	}
	for s, e := range limiter.entries {
		if now.Sub(e.last) >= limiter.interval {
			delete(limiter.entries, s)
		}
	}
}
