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
	"bytes"
	"fmt"

	yaml "gopkg.in/yaml.v2"

	"github.com/TheCacophonyProject/avi-recorder/avi"
)

var headerEnd = []byte("\n\n")

// HeaderInfo contains the camera description a camera process may send as
// the first packet of a connection: YAML fields ending in a blank line.
type HeaderInfo struct {
	FrameSize string `yaml:"frame-size"`
	ResX      int    `yaml:"res-x"`
	ResY      int    `yaml:"res-y"`
	FPS       int    `yaml:"fps"`
	Brand     string `yaml:"brand"`
	Model     string `yaml:"model"`
}

// ReadHeaderInfo parses a header packet. ok is false if the packet is not a
// header, in which case it should be treated as a frame.
func ReadHeaderInfo(packet []byte) (h *HeaderInfo, ok bool, err error) {
	if !bytes.HasSuffix(packet, headerEnd) {
		return nil, false, nil
	}
	h = new(HeaderInfo)
	if err := yaml.Unmarshal(packet, h); err != nil {
		return nil, true, err
	}
	if h.FrameSize == "" {
		h.FrameSize = labelFor(h.ResX, h.ResY)
	}
	if _, known := avi.FrameSizes[h.FrameSize]; !known {
		return nil, true, fmt.Errorf("unknown frame size %q (%dx%d)", h.FrameSize, h.ResX, h.ResY)
	}
	return h, true, nil
}

func labelFor(x, y int) string {
	for label, dims := range avi.FrameSizes {
		if dims[0] == x && dims[1] == y {
			return label
		}
	}
	return ""
}
