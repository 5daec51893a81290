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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexIsWrittenInPages(t *testing.T) {
	const frames = 20000
	ix := NewIndex()
	for i := 0; i < frames; i++ {
		ix.Add(PaddedLen(i % 100))
	}
	ix.Finalize()

	var out bytes.Buffer
	page := make([]byte, 8192)
	total, err := ix.WritePages(&out, page)
	require.NoError(t, err)
	assert.Equal(t, int64(ChunkHeaderLen+frames*IndexEntryLen), total)

	entries, err := ParseIndex(out.Bytes())
	require.NoError(t, err)
	require.Len(t, entries, frames)
	assert.Equal(t, uint32(4), entries[0].Offset)
	assert.Equal(t, uint32(4+ChunkHeaderLen), entries[1].Offset)
	assert.Equal(t, 0, ix.NextPage(page))
}

func TestIndexBufferIsReused(t *testing.T) {
	ix := NewIndex()
	for i := 0; i < 1000; i++ {
		ix.Add(4)
	}
	grown := cap(ix.buf)

	ix.Reset()
	assert.Equal(t, 0, ix.Len())
	for i := 0; i < 1000; i++ {
		ix.Add(4)
	}
	assert.Equal(t, grown, cap(ix.buf))
	assert.Equal(t, ChunkHeaderLen+1000*IndexEntryLen, len(ix.buf))
}
