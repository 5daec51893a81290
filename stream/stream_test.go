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


package stream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/avi-recorder/playback"
)

type fakePlayer struct {
	openErr error
	opened  string
	frames  [][]byte
	block   bool
	gap     time.Duration
	stops   atomic.Int32
}

func (p *fakePlayer) Open(name string) error {
	p.opened = name
	return p.openErr
}

func (p *fakePlayer) NextFrame(ctx context.Context, dst []byte) ([]byte, error) {
	if p.block {
		<-ctx.Done()
		return dst, ctx.Err()
	}
	if len(p.frames) == 0 {
		return dst, io.EOF
	}
	if p.gap > 0 {
		select {
		case <-ctx.Done():
			return dst, ctx.Err()
		case <-time.After(p.gap):
		}
	}
	dst = append(dst, p.frames[0]...)
	p.frames = p.frames[1:]
	return dst, nil
}

func (p *fakePlayer) Stop() playback.StopResult {
	p.stops.Add(1)
	return playback.StopResult{Stopped: true}
}

func dial(t *testing.T, srv *httptest.Server, file string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?file=" + file
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestFramesAreSentAsMessages(t *testing.T) {
	player := &fakePlayer{frames: [][]byte{
		{0xff, 0xd8, 1, 0xff, 0xd9, 0, 0, 0},
		{0xff, 0xd8, 2, 3, 0xff, 0xd9},
	}}
	srv := httptest.NewServer(Handler(player))
	defer srv.Close()

	conn := dial(t, srv, "20240309/20240309_101112_VGA_5_12.avi")
	defer conn.Close()

	kind, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)
	assert.Equal(t, []byte{0xff, 0xd8, 1, 0xff, 0xd9}, msg)

	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 2, 3, 0xff, 0xd9}, msg)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
	assert.Equal(t, "20240309/20240309_101112_VGA_5_12.avi", player.opened)
	assert.Equal(t, int32(0), player.stops.Load())
}

func TestRefusedWhileRecording(t *testing.T) {
	srv := httptest.NewServer(Handler(&fakePlayer{openErr: playback.ErrRecording}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/?file=a.avi")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestFileRequired(t *testing.T) {
	srv := httptest.NewServer(Handler(new(fakePlayer)))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClientDisconnectStopsPlayback(t *testing.T) {
	player := &fakePlayer{block: true}
	srv := httptest.NewServer(Handler(player))
	defer srv.Close()

	conn := dial(t, srv, "a.avi")
	conn.Close()

	assert.Eventually(t, func() bool { return player.stops.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSilentClientIsKeptAlive(t *testing.T) {
	// Frames arrive slower than the pong deadline, so only pings keep the
	// connection open.
	player := &fakePlayer{gap: 1200 * time.Millisecond}
	for i := 0; i < 3; i++ {
		player.frames = append(player.frames, []byte{0xff, 0xd8, byte(i), 0xff, 0xd9})
	}
	srv := httptest.NewServer(handler(player, time.Second))
	defer srv.Close()

	conn := dial(t, srv, "a.avi")
	defer conn.Close()

	received := 0
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err.Error())
			break
		}
		received++
	}
	assert.Equal(t, 3, received)
	assert.Equal(t, int32(0), player.stops.Load())
}

func TestTrimPadding(t *testing.T) {
	assert.Equal(t, []byte{0xff, 0xd9}, trimPadding([]byte{0xff, 0xd9, 0, 0}))
	assert.Equal(t, []byte{1, 0xff, 0xd9}, trimPadding([]byte{1, 0xff, 0xd9}))
	assert.Equal(t, []byte{1, 2, 0, 0}, trimPadding([]byte{1, 2, 0, 0}))
	assert.Equal(t, []byte{0}, trimPadding([]byte{0}))
}
