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

package sensor

import (
	"errors"
	"fmt"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
)

// Trigger is an external signal that can start a recording.
type Trigger interface {
	Triggered() bool
}

type PIRConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Pin       string `yaml:"pin"`
	ActiveLow bool   `yaml:"active-low"`
}

func DefaultPIRConfig() PIRConfig {
	return PIRConfig{
		Pin: "GPIO17",
	}
}

func (conf *PIRConfig) Validate() error {
	if conf.Enabled && conf.Pin == "" {
		return errors.New("pir pin must be set")
	}
	return nil
}

// PIR reads a passive infrared sensor on a GPIO pin. host.Init must have
// been called first.
type PIR struct {
	pin    gpio.PinIn
	active gpio.Level
}

func NewPIR(conf PIRConfig) (*PIR, error) {
	pin := gpioreg.ByName(conf.Pin)
	if pin == nil {
		return nil, fmt.Errorf("unable to load pir pin %s", conf.Pin)
	}
	return newPIR(pin, conf)
}

func newPIR(pin gpio.PinIn, conf PIRConfig) (*PIR, error) {
	pull := gpio.PullDown
	active := gpio.High
	if conf.ActiveLow {
		pull = gpio.PullUp
		active = gpio.Low
	}
	if err := pin.In(pull, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("failed to set pir pin as input: %v", err)
	}
	return &PIR{pin: pin, active: active}, nil
}

func (p *PIR) Triggered() bool {
	return p.pin.Read() == p.active
}
