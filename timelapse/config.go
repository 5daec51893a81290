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


package timelapse

import "errors"

const maxPlaybackFPS = 30

type Config struct {
	Enabled           bool `yaml:"enabled"`
	SecsBetweenFrames int  `yaml:"secs-between-frames"`
	DurationMins      int  `yaml:"duration-mins"`
	PlaybackFPS       int  `yaml:"playback-fps"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:           false,
		SecsBetweenFrames: 10,
		DurationMins:      60,
		PlaybackFPS:       1,
	}
}

func (conf *Config) Validate() error {
	if conf.SecsBetweenFrames < 1 {
		return errors.New("secs-between-frames must be at least 1")
	}
	if conf.DurationMins < 1 {
		return errors.New("duration-mins must be at least 1")
	}
	if conf.DurationMins*60 < conf.SecsBetweenFrames {
		return errors.New("duration-mins is shorter than secs-between-frames")
	}
	if conf.PlaybackFPS < 1 || conf.PlaybackFPS > maxPlaybackFPS {
		return errors.New("playback-fps must be between 1 and 30")
	}
	return nil
}

// RequiredFrames is the number of frames in a complete timelapse file.
func (conf *Config) RequiredFrames() int {
	return conf.DurationMins * 60 / conf.SecsBetweenFrames
}
