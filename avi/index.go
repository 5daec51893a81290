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
	"encoding/binary"
	"errors"
	"io"
)

// IndexEntry locates one frame chunk. Offset is measured from the movi
// fourcc, as idx1 requires.
type IndexEntry struct {
	Offset   uint32
	Length   uint32
	KeyFrame bool
}

// Index accumulates idx1 entries in their serialized form. Once finalized
// it is read out in pages no larger than the caller's buffer.
//
// The entries stay in memory for the whole session: IndexEntryLen bytes a
// frame, so about 320 KB at the default max-frames of 20000. max-frames is
// the bound. The buffer is kept across Reset so later sessions of the same
// length don't allocate.
type Index struct {
	buf       []byte
	offset    uint32
	count     int
	read      int
	finalized bool
}

func NewIndex() *Index {
	ix := new(Index)
	ix.Reset()
	return ix
}

// Reset empties the index for a new session.
func (ix *Index) Reset() {
	ix.buf = append(ix.buf[:0], make([]byte, ChunkHeaderLen)...)
	ix.offset = 4
	ix.count = 0
	ix.read = 0
	ix.finalized = false
}

// Add records a keyframe chunk of paddedLen payload bytes.
func (ix *Index) Add(paddedLen int) {
	var entry [IndexEntryLen]byte
	copy(entry[:4], frameMarker)
	binary.LittleEndian.PutUint32(entry[4:], FlagKeyFrame)
	binary.LittleEndian.PutUint32(entry[8:], ix.offset)
	binary.LittleEndian.PutUint32(entry[12:], uint32(paddedLen))
	ix.buf = append(ix.buf, entry[:]...)
	ix.offset += uint32(ChunkHeaderLen + paddedLen)
	ix.count++
}

func (ix *Index) Len() int {
	return ix.count
}

// Finalize writes the idx1 chunk header.
func (ix *Index) Finalize() {
	copy(ix.buf[:4], "idx1")
	binary.LittleEndian.PutUint32(ix.buf[4:], uint32(ix.count*IndexEntryLen))
	ix.read = 0
	ix.finalized = true
}

// NextPage copies the next part of the finalized idx1 chunk into page. It
// returns 0 once everything has been read.
func (ix *Index) NextPage(page []byte) int {
	if !ix.finalized {
		return 0
	}
	n := copy(page, ix.buf[ix.read:])
	ix.read += n
	return n
}

// WritePages writes the finalized idx1 chunk to w one page at a time.
func (ix *Index) WritePages(w io.Writer, page []byte) (int64, error) {
	var total int64
	for {
		n := ix.NextPage(page)
		if n == 0 {
			return total, nil
		}
		written, err := w.Write(page[:n])
		total += int64(written)
		if err != nil {
			return total, err
		}
	}
}

var errBadIndex = errors.New("malformed idx1 chunk")

// ParseIndex decodes an idx1 chunk.
func ParseIndex(b []byte) ([]IndexEntry, error) {
	if len(b) < ChunkHeaderLen || string(b[:4]) != "idx1" {
		return nil, errBadIndex
	}
	size := int(binary.LittleEndian.Uint32(b[4:]))
	if size%IndexEntryLen != 0 || len(b) < ChunkHeaderLen+size {
		return nil, errBadIndex
	}
	entries := make([]IndexEntry, 0, size/IndexEntryLen)
	for pos := ChunkHeaderLen; pos < ChunkHeaderLen+size; pos += IndexEntryLen {
		e := b[pos : pos+IndexEntryLen]
		if string(e[:4]) != "00dc" {
			return nil, errBadIndex
		}
		entries = append(entries, IndexEntry{
			KeyFrame: binary.LittleEndian.Uint32(e[4:])&FlagKeyFrame != 0,
			Offset:   binary.LittleEndian.Uint32(e[8:]),
			Length:   binary.LittleEndian.Uint32(e[12:]),
		})
	}
	return entries, nil
}
