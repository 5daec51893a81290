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

// Package writeback batches many small writes into block sized writes.
//
// A Buffer is a flat arena used as a ring: bytes are pushed at the
// high-water mark, every complete block at the start of the arena is
// written out, and whatever spilled past the last block boundary is
// relocated back to the start of the arena.
package writeback

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// ErrBusy is returned by Acquire when another session owns the buffer.
var ErrBusy = errors.New("write-back buffer is owned by another session")

// Stats describe the writes made since the last Reset.
type Stats struct {
	Flushes       int
	BytesWritten  int64
	WriteTime     time.Duration
	LastRelocated int
}

// Buffer is safe for one producer at a time. Ownership is tracked with
// Acquire and Release; the push path itself takes no locks.
type Buffer struct {
	mu    sync.Mutex
	owner string

	arena     []byte
	blockSize int
	mark      int
	w         io.Writer
	stats     Stats
}

// New allocates an arena holding two blocks plus slack bytes per block.
func New(blockSize, slack int) *Buffer {
	if blockSize <= 0 {
		panic(fmt.Sprintf("writeback: invalid block size %d", blockSize))
	}
	return &Buffer{
		arena:     make([]byte, (blockSize+slack)*2),
		blockSize: blockSize,
	}
}

func (b *Buffer) BlockSize() int {
	return b.blockSize
}

// Acquire makes owner the only session allowed to push. Acquiring a
// buffer that is already held by the same owner is a no-op.
func (b *Buffer) Acquire(owner string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.owner != "" && b.owner != owner {
		return fmt.Errorf("%w (%s)", ErrBusy, b.owner)
	}
	b.owner = owner
	return nil
}

func (b *Buffer) Release(owner string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.owner == owner {
		b.owner = ""
	}
}

func (b *Buffer) Owner() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.owner
}

// Reset directs future writes to w and reserves the first reserved bytes
// of the output as zeros.
func (b *Buffer) Reset(w io.Writer, reserved int) {
	if reserved > b.blockSize {
		panic(fmt.Sprintf("writeback: reserved %d exceeds block size %d", reserved, b.blockSize))
	}
	for i := range b.arena[:reserved] {
		b.arena[i] = 0
	}
	b.mark = reserved
	b.w = w
	b.stats = Stats{}
}

// Mark is the number of buffered bytes not yet written.
func (b *Buffer) Mark() int {
	return b.mark
}

func (b *Buffer) Stats() Stats {
	return b.stats
}

// Push appends p, writing out every block that becomes full. The bytes
// that overflow a block boundary are kept for the next write.
func (b *Buffer) Push(p []byte) error {
	for len(p) > 0 {
		n := copy(b.arena[b.mark:], p)
		b.mark += n
		p = p[n:]

		drained, err := b.drainFullBlocks()
		if err != nil {
			return err
		}
		b.relocateTail(drained)
	}
	return nil
}

// Flush writes the partially filled block left in the arena.
func (b *Buffer) Flush() error {
	if b.mark == 0 {
		return nil
	}
	if err := b.write(b.arena[:b.mark]); err != nil {
		return err
	}
	b.mark = 0
	return nil
}

// Scratch lends the caller a block sized region of the arena. It is only
// valid while nothing is buffered.
func (b *Buffer) Scratch() ([]byte, error) {
	if b.mark != 0 {
		return nil, fmt.Errorf("writeback: %d bytes still buffered", b.mark)
	}
	return b.arena[:b.blockSize], nil
}

func (b *Buffer) drainFullBlocks() (int, error) {
	drained := 0
	for b.mark-drained >= b.blockSize {
		if err := b.write(b.arena[drained : drained+b.blockSize]); err != nil {
			return drained, err
		}
		drained += b.blockSize
	}
	return drained, nil
}

func (b *Buffer) relocateTail(drained int) {
	if drained == 0 {
		return
	}
	tail := copy(b.arena, b.arena[drained:b.mark])
	b.mark = tail
	b.stats.LastRelocated = tail
}

func (b *Buffer) write(p []byte) error {
	if b.w == nil {
		return errors.New("writeback: no writer set")
	}
	start := time.Now()
	n, err := b.w.Write(p)
	b.stats.WriteTime += time.Since(start)
	b.stats.BytesWritten += int64(n)
	if err != nil {
		return err
	}
	if n < len(p) {
		return io.ErrShortWrite
	}
	b.stats.Flushes++
	return nil
}
