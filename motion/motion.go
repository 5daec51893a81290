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

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"log"
	"math"
)

const (
	NoLightLevel = -1

	// averageFrames is the smoothing window of the running frame size.
	averageFrames = 8
	// lightEvery is how many evaluations pass between light readings.
	lightEvery = 10
)

// Evaluator decides whether a frame shows motion.
type Evaluator interface {
	Evaluate(frame []byte, recording bool) bool
	LightLevel(frame []byte) int
}

func NewSizeDetector(conf MotionConfig) *SizeDetector {
	return &SizeDetector{
		conf:  conf,
		light: NoLightLevel,
	}
}

// SizeDetector treats a sudden change in JPEG frame size as motion: the
// encoded size of a static scene is stable, while movement changes the
// amount of detail. Once recording the threshold is halved so a session
// is not cut short by slower movement.
type SizeDetector struct {
	conf        MotionConfig
	average     float64
	evaluations int
	triggered   int
	light       int
}

func (d *SizeDetector) Evaluate(frame []byte, recording bool) bool {
	d.evaluations++
	if d.evaluations%lightEvery == 1 {
		d.LightLevel(frame)
	}

	size := float64(len(frame))
	if d.average <= 0 {
		d.average = size
		return false
	}
	change := 100 * math.Abs(size-d.average) / d.average
	d.average += (size - d.average) / averageFrames
	if d.evaluations <= d.conf.WarmupFrames {
		return false
	}

	thresh := float64(d.conf.ChangePercent)
	if recording {
		thresh /= 2
	}
	if change < thresh {
		d.triggered = 0
		return false
	}
	d.triggered++
	if d.conf.Verbose {
		log.Printf("frame size changed %.1f%% (%d)", change, d.triggered)
	}
	return recording || d.triggered >= d.conf.TriggerFrames
}

// LightLevel is the mean luma of the frame in the range 0-255. Frames that
// cannot be decoded leave the previous reading in place.
func (d *SizeDetector) LightLevel(frame []byte) int {
	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return d.light
	}
	d.light = meanLuma(img, d.conf.SampleStep)
	return d.light
}

// Night reports whether the last light reading was at or below the
// night level.
func (d *SizeDetector) Night() bool {
	return d.light != NoLightLevel && d.light <= d.conf.NightLevel
}

// Light is the last light reading.
func (d *SizeDetector) Light() int {
	return d.light
}

func meanLuma(img image.Image, step int) int {
	if step < 1 {
		step = 1
	}
	b := img.Bounds()
	var total, count int
	switch m := img.(type) {
	case *image.YCbCr:
		for y := b.Min.Y; y < b.Max.Y; y += step {
			for x := b.Min.X; x < b.Max.X; x += step {
				total += int(m.Y[m.YOffset(x, y)])
				count++
			}
		}
	case *image.Gray:
		for y := b.Min.Y; y < b.Max.Y; y += step {
			for x := b.Min.X; x < b.Max.X; x += step {
				total += int(m.GrayAt(x, y).Y)
				count++
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y += step {
			for x := b.Min.X; x < b.Max.X; x += step {
				total += int(color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y)
				count++
			}
		}
	}
	if count == 0 {
		return 0
	}
	return total / count
}
