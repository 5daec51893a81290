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

import "encoding/binary"

// PaddedLen rounds a frame length up to a 4 byte boundary.
func PaddedLen(n int) int {
	return n + (4-n%4)%4
}

// PutChunkHeader writes the 8 byte frame chunk header into dst.
func PutChunkHeader(dst []byte, paddedLen int) {
	copy(dst[:4], frameMarker)
	binary.LittleEndian.PutUint32(dst[4:ChunkHeaderLen], uint32(paddedLen))
}

// ParseChunkHeader returns the chunk length if b starts with a frame
// chunk header. Anything else, including the idx1 chunk, reports false.
func ParseChunkHeader(b []byte) (int, bool) {
	if len(b) < ChunkHeaderLen {
		return 0, false
	}
	if binary.LittleEndian.Uint32(b) != FrameMarkerValue {
		return 0, false
	}
	return int(binary.LittleEndian.Uint32(b[4:])), true
}

var padding [4]byte

// Padding returns the zero bytes that follow a frame of length n.
func Padding(n int) []byte {
	return padding[:PaddedLen(n)-n]
}
