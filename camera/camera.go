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

package camera

import (
	"errors"
	"fmt"
	"time"

	"github.com/TheCacophonyProject/avi-recorder/avi"
)

// FrameBuffers is the number of frames the camera can hold at once.
const FrameBuffers = 4

// Frame is a JPEG image borrowed from a Camera. It must be handed back
// with ReleaseFrame exactly once.
type Frame struct {
	Data      []byte
	Timestamp time.Time

	slot     []byte
	released bool
}

// Camera is the source of frames.
type Camera interface {
	// GetFrame returns the most recent unclaimed frame, or nil. It never
	// blocks.
	GetFrame() *Frame
	ReleaseFrame(*Frame)
	FrameSizeLabel() string
}

type CameraConfig struct {
	FrameInput  string `yaml:"frame-input"`
	FrameSize   string `yaml:"frame-size"`
	BufferBytes int    `yaml:"buffer-bytes"`
}

func DefaultCameraConfig() CameraConfig {
	return CameraConfig{
		FrameInput:  "/var/run/camera-frames",
		FrameSize:   "SVGA",
		BufferBytes: 1024 * 1024,
	}
}

func (conf *CameraConfig) Validate() error {
	if _, ok := avi.FrameSizes[conf.FrameSize]; !ok {
		return fmt.Errorf("unknown frame-size %q", conf.FrameSize)
	}
	if conf.BufferBytes <= 0 {
		return errors.New("buffer-bytes must be positive")
	}
	return nil
}
