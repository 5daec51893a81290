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

package recorder

import (
	"errors"
	"time"

	"github.com/TheCacophonyProject/window"
)

const maxFPS = 30

type RecorderConfig struct {
	FPS             int              `yaml:"fps"`
	MinSecs         int              `yaml:"min-secs"`
	MaxSecs         int              `yaml:"max-secs"`
	MaxFrames       int              `yaml:"max-frames"`
	MotionCheckSecs int              `yaml:"motion-check-secs"`
	CooldownSecs    int              `yaml:"cooldown-secs"`
	MaxFrameBytes   int              `yaml:"max-frame-bytes"`
	WindowStart     window.TimeOfDay `yaml:"window-start"`
	WindowEnd       window.TimeOfDay `yaml:"window-end"`
}

func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		FPS:             10,
		MinSecs:         30,
		MaxSecs:         300,
		MaxFrames:       20000,
		MotionCheckSecs: 5,
		CooldownSecs:    5,
		MaxFrameBytes:   512 * 1024,
	}
}

func (conf *RecorderConfig) Validate() error {
	if conf.WindowStart.IsZero() && !conf.WindowEnd.IsZero() {
		return errors.New("window-end is set but window-start isn't")
	}
	if !conf.WindowStart.IsZero() && conf.WindowEnd.IsZero() {
		return errors.New("window-start is set but window-end isn't")
	}
	if conf.MaxSecs < conf.MinSecs {
		return errors.New("max-secs should be larger than min-secs")
	}
	if conf.FPS < 1 || conf.FPS > maxFPS {
		return errors.New("fps must be between 1 and 30")
	}
	if conf.MaxFrames < 1 {
		return errors.New("max-frames must be positive")
	}
	if conf.MaxFrameBytes < 1 {
		return errors.New("max-frame-bytes must be positive")
	}
	if conf.MotionCheckSecs < 0 || conf.CooldownSecs < 0 {
		return errors.New("motion-check-secs and cooldown-secs can't be negative")
	}
	return nil
}

// Window is the daily period in which motion may start a recording. It is
// always active when no window is configured.
func (conf *RecorderConfig) Window() *window.Window {
	return window.New(conf.WindowStart.Time, conf.WindowEnd.Time)
}

func (conf *RecorderConfig) minDuration() time.Duration {
	return time.Duration(conf.MinSecs) * time.Second
}

func (conf *RecorderConfig) maxDuration() time.Duration {
	return time.Duration(conf.MaxSecs) * time.Second
}

func (conf *RecorderConfig) motionCheck() time.Duration {
	return time.Duration(conf.MotionCheckSecs) * time.Second
}

func (conf *RecorderConfig) cooldown() time.Duration {
	return time.Duration(conf.CooldownSecs) * time.Second
}
