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

package motion

import "errors"

type MotionConfig struct {
	Enabled bool `yaml:"enabled"`
	// ChangePercent is how far a frame's size must move from the running
	// average to count as motion.
	ChangePercent int `yaml:"change-percent"`
	TriggerFrames int `yaml:"trigger-frames"`
	WarmupFrames  int `yaml:"warmup-frames"`
	// Frames with a light level at or below NightLevel are night frames.
	NightLevel int  `yaml:"night-level"`
	SampleStep int  `yaml:"sample-step"`
	Verbose    bool `yaml:"verbose"`
}

func DefaultMotionConfig() MotionConfig {
	return MotionConfig{
		Enabled:       true,
		ChangePercent: 15,
		TriggerFrames: 2,
		WarmupFrames:  10,
		NightLevel:    10,
		SampleStep:    8,
	}
}

func (conf *MotionConfig) Validate() error {
	if conf.ChangePercent <= 0 || conf.ChangePercent >= 100 {
		return errors.New("change-percent must be between 1 and 99")
	}
	if conf.TriggerFrames < 1 {
		return errors.New("trigger-frames must be at least 1")
	}
	if conf.SampleStep < 1 {
		return errors.New("sample-step must be at least 1")
	}
	if conf.NightLevel < 0 || conf.NightLevel > 255 {
		return errors.New("night-level must be between 0 and 255")
	}
	return nil
}
