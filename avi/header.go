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

// Package avi writes and reads MJPEG AVI containers one chunk at a time.
//
// File layout:
//
//	RIFF AVI
//	  LIST hdrl (avih, LIST strl (strh, strf))
//	  JUNK      pads the header to HeaderLen
//	  LIST movi (00dc chunks)
//	  idx1
//
// The first HeaderLen bytes are written twice: zeros when the file is
// opened and the final header once the frame count is known.
package avi

import (
	"encoding/binary"
	"errors"
	"io"
	"sync"
)

const (
	// HeaderLen is the fixed size of everything before the first frame chunk.
	HeaderLen = 256

	// ChunkHeaderLen is the size of the {marker, length} frame prefix.
	ChunkHeaderLen = 8

	// IndexEntryLen is the size of one idx1 entry.
	IndexEntryLen = 16

	// FrameMarkerValue is "00dc" read as a little endian uint32.
	FrameMarkerValue uint32 = 0x63643030

	FlagKeyFrame = 0x10
	flagHasIndex = 0x10

	avihLen = 56
	strhLen = 56
	strfLen = 40

	// offset of the "movi" fourcc, which idx1 offsets are relative to
	moviOffset = HeaderLen - 4
	junkLen    = HeaderLen - 212 - 12 - 8
)

var frameMarker = []byte("00dc")

// Frame dimensions for the camera frame size labels.
var FrameSizes = map[string][2]int{
	"96X96":   {96, 96},
	"QQVGA":   {160, 120},
	"QCIF":    {176, 144},
	"HQVGA":   {240, 176},
	"240X240": {240, 240},
	"QVGA":    {320, 240},
	"CIF":     {400, 296},
	"HVGA":    {480, 320},
	"VGA":     {640, 480},
	"SVGA":    {800, 600},
	"XGA":     {1024, 768},
	"HD":      {1280, 720},
	"SXGA":    {1280, 1024},
	"UXGA":    {1600, 1200},
	"FHD":     {1920, 1080},
	"QXGA":    {2048, 1536},
}

// HeaderParams are the values the final header is built from.
type HeaderParams struct {
	FPS       int
	FrameSize string
	Frames    int
	// MoviBytes is the total size of the frame chunks, headers included.
	MoviBytes int64
	// MaxFrameBytes is the largest padded frame, used as the suggested buffer size.
	MaxFrameBytes int
}

// HeaderInfo is what ReadHeader recovers from a finished file.
type HeaderInfo struct {
	FPS       int
	Frames    int
	Width     int
	Height    int
	MoviBytes int64
	RIFFSize  uint32
}

type headerWriter struct {
	buf []byte
	pos int
}

func (hw *headerWriter) fourCC(s string) {
	copy(hw.buf[hw.pos:], s)
	hw.pos += 4
}

func (hw *headerWriter) u32(v uint32) {
	binary.LittleEndian.PutUint32(hw.buf[hw.pos:], v)
	hw.pos += 4
}

func (hw *headerWriter) u16(v uint16) {
	binary.LittleEndian.PutUint16(hw.buf[hw.pos:], v)
	hw.pos += 2
}

func (hw *headerWriter) zeros(n int) {
	for i := 0; i < n; i++ {
		hw.buf[hw.pos+i] = 0
	}
	hw.pos += n
}

// BuildHeader fills dst[:HeaderLen] with the header for p.
func BuildHeader(dst []byte, p HeaderParams) {
	if len(dst) < HeaderLen {
		panic("avi: header buffer too small")
	}
	fps := p.FPS
	if fps < 1 {
		fps = 1
	}
	dims := FrameSizes[p.FrameSize]
	width, height := uint32(dims[0]), uint32(dims[1])
	frames := uint32(p.Frames)
	idxSize := uint32(ChunkHeaderLen + IndexEntryLen*p.Frames)
	riffSize := uint32(HeaderLen-8) + uint32(p.MoviBytes) + idxSize

	hw := &headerWriter{buf: dst}

	hw.fourCC("RIFF")
	hw.u32(riffSize)
	hw.fourCC("AVI ")

	hw.fourCC("LIST")
	hw.u32(4 + (8 + avihLen) + (12 + 8 + strhLen + 8 + strfLen))
	hw.fourCC("hdrl")

	hw.fourCC("avih")
	hw.u32(avihLen)
	hw.u32(uint32(1000000 / fps))
	hw.u32(uint32(p.MaxFrameBytes * fps))
	hw.u32(0)
	hw.u32(flagHasIndex)
	hw.u32(frames)
	hw.u32(0)
	hw.u32(1)
	hw.u32(uint32(p.MaxFrameBytes))
	hw.u32(width)
	hw.u32(height)
	hw.zeros(16)

	hw.fourCC("LIST")
	hw.u32(4 + 8 + strhLen + 8 + strfLen)
	hw.fourCC("strl")

	hw.fourCC("strh")
	hw.u32(strhLen)
	hw.fourCC("vids")
	hw.fourCC("MJPG")
	hw.u32(0)
	hw.u16(0)
	hw.u16(0)
	hw.u32(0)
	hw.u32(1)
	hw.u32(uint32(fps))
	hw.u32(0)
	hw.u32(frames)
	hw.u32(uint32(p.MaxFrameBytes))
	hw.u32(0xFFFFFFFF)
	hw.u32(0)
	hw.u16(0)
	hw.u16(0)
	hw.u16(uint16(width))
	hw.u16(uint16(height))

	hw.fourCC("strf")
	hw.u32(strfLen)
	hw.u32(strfLen)
	hw.u32(width)
	hw.u32(height)
	hw.u16(1)
	hw.u16(24)
	hw.fourCC("MJPG")
	hw.u32(width * height * 3)
	hw.zeros(16)

	hw.fourCC("JUNK")
	hw.u32(junkLen)
	hw.zeros(junkLen)

	hw.fourCC("LIST")
	hw.u32(4 + uint32(p.MoviBytes))
	hw.fourCC("movi")
}

// HeaderScratch is the one buffer final headers are built in. Recording
// and timelapse sessions share it.
type HeaderScratch struct {
	mu  sync.Mutex
	buf [HeaderLen]byte
}

// WriteFinal builds the header for p and writes it at the start of w.
func (h *HeaderScratch) WriteFinal(w io.WriteSeeker, p HeaderParams) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	BuildHeader(h.buf[:], p)
	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := w.Write(h.buf[:])
	return err
}

var errNotAVI = errors.New("not an MJPEG AVI header")

// ReadHeader decodes a header produced by BuildHeader.
func ReadHeader(b []byte) (*HeaderInfo, error) {
	if len(b) < HeaderLen {
		return nil, io.ErrUnexpectedEOF
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "AVI " ||
		string(b[24:28]) != "avih" || string(b[moviOffset:HeaderLen]) != "movi" {
		return nil, errNotAVI
	}
	le := binary.LittleEndian
	info := &HeaderInfo{
		RIFFSize:  le.Uint32(b[4:]),
		Frames:    int(le.Uint32(b[48:])),
		Width:     int(le.Uint32(b[64:])),
		Height:    int(le.Uint32(b[68:])),
		FPS:       int(le.Uint32(b[132:])),
		MoviBytes: int64(le.Uint32(b[moviOffset-4:])) - 4,
	}
	return info, nil
}
