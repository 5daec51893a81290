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

package main

import (
	"errors"
	"io/ioutil"
	"os"

	yaml "gopkg.in/yaml.v2"

	"github.com/TheCacophonyProject/avi-recorder/camera"
	"github.com/TheCacophonyProject/avi-recorder/motion"
	"github.com/TheCacophonyProject/avi-recorder/playback"
	"github.com/TheCacophonyProject/avi-recorder/recorder"
	"github.com/TheCacophonyProject/avi-recorder/sensor"
	"github.com/TheCacophonyProject/avi-recorder/storage"
	"github.com/TheCacophonyProject/avi-recorder/throttle"
	"github.com/TheCacophonyProject/avi-recorder/timelapse"
)

const sectorSize = 512

type Config struct {
	OutputDir   string `yaml:"output-dir"`
	ClusterSize int    `yaml:"cluster-size"`
	HTTPAddress string `yaml:"http-address"`
	QueueEvents bool   `yaml:"queue-events"`
	Camera      camera.CameraConfig
	Recorder    recorder.RecorderConfig
	Motion      motion.MotionConfig
	Storage     storage.StorageConfig
	Timelapse   timelapse.Config
	Throttler   throttle.ThrottlerConfig
	PIR         sensor.PIRConfig
	Playback    playback.Config
}

func DefaultConfig() Config {
	return Config{
		OutputDir:   "/var/spool/avi",
		ClusterSize: 8192,
		HTTPAddress: ":8090",
		QueueEvents: true,
		Camera:      camera.DefaultCameraConfig(),
		Recorder:    recorder.DefaultRecorderConfig(),
		Motion:      motion.DefaultMotionConfig(),
		Storage:     storage.DefaultStorageConfig(),
		Timelapse:   timelapse.DefaultConfig(),
		Throttler:   throttle.DefaultThrottlerConfig(),
		PIR:         sensor.DefaultPIRConfig(),
		Playback:    playback.DefaultConfig(),
	}
}

func (conf *Config) Validate() error {
	if conf.OutputDir == "" {
		return errors.New("output-dir must be set")
	}
	if conf.ClusterSize < sectorSize || conf.ClusterSize%sectorSize != 0 {
		return errors.New("cluster-size must be a multiple of 512")
	}
	if err := conf.Camera.Validate(); err != nil {
		return err
	}
	if err := conf.Recorder.Validate(); err != nil {
		return err
	}
	if conf.Recorder.MaxFrameBytes > conf.Camera.BufferBytes {
		return errors.New("max-frame-bytes is larger than the camera buffer-bytes")
	}
	if err := conf.Motion.Validate(); err != nil {
		return err
	}
	if conf.Timelapse.Enabled {
		if err := conf.Timelapse.Validate(); err != nil {
			return err
		}
	}
	if err := conf.Throttler.Validate(); err != nil {
		return err
	}
	if err := conf.PIR.Validate(); err != nil {
		return err
	}
	if err := conf.Playback.Validate(); err != nil {
		return err
	}
	return nil
}

// ParseConfigFile reads the configuration at filename. A missing file
// leaves every setting at its default.
func ParseConfigFile(filename string) (*Config, error) {
	buf, err := ioutil.ReadFile(filename)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return ParseConfig(buf)
}

func ParseConfig(buf []byte) (*Config, error) {
	conf := DefaultConfig()
	if err := yaml.Unmarshal(buf, &conf); err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}
