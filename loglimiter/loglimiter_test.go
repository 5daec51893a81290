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
	"bytes"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(interval time.Duration) (*LogLimiter, *time.Time) {
	now := time.Now()
	limiter := New(interval)
	limiter.nowFunc = func() time.Time { return now }
	return limiter, &now
}

func TestDistinctMessagesPass(t *testing.T) {
	logs, reset := captureLogs()
	defer reset()

	limiter := New(time.Minute)
	limiter.Print("frame too large")
	limiter.Printf("write failed: %v", "card removed")

	assert.Equal(t, "frame too large\nwrite failed: card removed\n", logs.String())
}

func TestRepeatSuppressedWithinInterval(t *testing.T) {
	logs, reset := captureLogs()
	defer reset()

	limiter, now := newTestLimiter(2 * time.Second)
	limiter.Print("recording refused")
	*now = now.Add(time.Second)
	limiter.Print("recording refused")
	limiter.Print("recording refused")

	assert.Equal(t, "recording refused\n", logs.String())
	assert.Equal(t, 2, limiter.Suppressed("recording refused"))

	*now = now.Add(time.Second)
	limiter.Print("recording refused")
	assert.Equal(t, "recording refused\nrecording refused (suppressed 2)\n", logs.String())
	assert.Equal(t, 0, limiter.Suppressed("recording refused"))
}

func TestInterleavedMessagesLimitedIndependently(t *testing.T) {
	logs, reset := captureLogs()
	defer reset()

	limiter, now := newTestLimiter(2 * time.Second)
	limiter.Print("a")
	limiter.Print("b")
	limiter.Print("a")
	limiter.Print("b")
	assert.Equal(t, "a\nb\n", logs.String())

	*now = now.Add(2 * time.Second)
	limiter.Print("b")
	assert.Equal(t, "a\nb\nb (suppressed 1)\n", logs.String())
}

func TestMixed(t *testing.T) {
	logs, reset := captureLogs()
	defer reset()

	// Mixing Print and Printf doesn't matter if the resulting string is the same.
	limiter := New(time.Minute)
	limiter.Print("hello")
	limiter.Printf("hello")
	assert.Equal(t, "hello\n", logs.String())
}

func TestOldEntriesPruned(t *testing.T) {
	_, reset := captureLogs()
	defer reset()

	limiter, now := newTestLimiter(time.Second)
	for i := 0; i < maxTracked; i++ {
		limiter.Print(fmt.Sprint(i))
	}
	*now = now.Add(time.Second)
	limiter.Print("new")
	assert.Len(t, limiter.entries, 1)
}

func captureLogs() (*bytes.Buffer, func()) {
	flags := log.Flags()
	log.SetFlags(0)

	logs := new(bytes.Buffer)
	log.SetOutput(logs)

	return logs, func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(flags)
	}
}
