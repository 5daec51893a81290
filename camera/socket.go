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
	"context"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TheCacophonyProject/avi-recorder/loglimiter"
)

const (
	frameLogIntervalFirstMin = 15 * 10
	frameLogInterval         = 60 * 5 * 10
)

// SocketCamera receives one JPEG frame per packet from a camera process
// connected to a unix packet socket. Only the newest frame is kept ready;
// older unclaimed frames are recycled.
type SocketCamera struct {
	conf CameraConfig
	now  func() time.Time

	free    chan []byte
	mu      sync.Mutex
	ready   *Frame
	header  *HeaderInfo
	frames  atomic.Uint64
	dropped atomic.Uint64
	limiter *loglimiter.LogLimiter
}

func NewSocketCamera(conf CameraConfig) *SocketCamera {
	c := &SocketCamera{
		conf:    conf,
		now:     time.Now,
		free:    make(chan []byte, FrameBuffers),
		limiter: loglimiter.New(time.Minute),
	}
	for i := 0; i < FrameBuffers; i++ {
		c.free <- make([]byte, conf.BufferBytes)
	}
	return c
}

// FrameSizeLabel is the frame size sent by the connected camera, or the
// configured one if it didn't send a header.
func (c *SocketCamera) FrameSizeLabel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.header != nil {
		return c.header.FrameSize
	}
	return c.conf.FrameSize
}

// Header returns the header of the current connection, if one was sent.
func (c *SocketCamera) Header() (HeaderInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.header == nil {
		return HeaderInfo{}, false
	}
	return *c.header, true
}

func (c *SocketCamera) setHeader(h *HeaderInfo) {
	c.mu.Lock()
	c.header = h
	c.mu.Unlock()
}

func (c *SocketCamera) GetFrame() *Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.ready
	c.ready = nil
	return f
}

func (c *SocketCamera) ReleaseFrame(f *Frame) {
	if f == nil || f.released {
		return
	}
	f.released = true
	c.free <- f.slot
}

// Frames is the number of frames received since start.
func (c *SocketCamera) Frames() uint64 {
	return c.frames.Load()
}

// Dropped is the number of frames discarded because no buffer was free or
// the frame did not fit.
func (c *SocketCamera) Dropped() uint64 {
	return c.dropped.Load()
}

// Run accepts camera connections one at a time until ctx is done.
func (c *SocketCamera) Run(ctx context.Context) error {
	for {
		os.Remove(c.conf.FrameInput)
		listener, err := net.Listen("unixpacket", c.conf.FrameInput)
		if err != nil {
			return err
		}
		log.Print("waiting for camera connection")

		stop := context.AfterFunc(ctx, func() { listener.Close() })
		conn, err := listener.Accept()
		stop()
		// Prevent concurrent connections.
		listener.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			log.Printf("socket accept failed: %v", err)
			continue
		}

		err = c.handleConn(ctx, conn)
		log.Printf("camera connection ended with: %v", err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *SocketCamera) handleConn(ctx context.Context, conn net.Conn) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	log.Print("new camera connection, reading frames")
	c.setHeader(nil)
	scratch := make([]byte, c.conf.BufferBytes)
	connFrames := 0
	first := true
	for {
		var slot []byte
		select {
		case slot = <-c.free:
		default:
		}
		buf := slot
		if buf == nil {
			buf = scratch
		}

		n, err := conn.Read(buf)
		if err != nil {
			if slot != nil {
				c.free <- slot
			}
			return err
		}
		if first {
			first = false
			if c.handleHeader(buf[:n]) {
				if slot != nil {
					c.free <- slot
				}
				continue
			}
		}
		connFrames++
		if connFrames%frameLogIntervalFirstMin == 0 &&
			connFrames <= 60*10 || connFrames%frameLogInterval == 0 {
			log.Printf("%d frames for this connection", connFrames)
		}

		switch {
		case slot == nil:
			c.dropped.Add(1)
			c.limiter.Print("no free frame buffer, frame dropped")
		case n >= len(buf):
			// unixpacket truncates messages larger than the read buffer.
			c.dropped.Add(1)
			c.limiter.Printf("frame larger than %d bytes dropped", len(buf))
			c.free <- slot
		default:
			c.publish(&Frame{Data: slot[:n], Timestamp: c.now(), slot: slot})
		}
	}
}

// handleHeader returns true if packet was a header rather than a frame.
func (c *SocketCamera) handleHeader(packet []byte) bool {
	h, ok, err := ReadHeaderInfo(packet)
	if !ok {
		return false
	}
	if err != nil {
		log.Printf("ignoring camera header: %v", err)
		return true
	}
	log.Printf("camera: %s %s, %s %dx%d at %d fps", h.Brand, h.Model, h.FrameSize, h.ResX, h.ResY, h.FPS)
	c.setHeader(h)
	return true
}

func (c *SocketCamera) publish(f *Frame) {
	c.mu.Lock()
	old := c.ready
	c.ready = f
	c.mu.Unlock()
	if old != nil {
		c.ReleaseFrame(old)
	}
	c.frames.Add(1)
}
