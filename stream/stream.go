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


// Package stream sends a playback to a browser over a websocket, one
// binary message per JPEG frame.
package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/TheCacophonyProject/avi-recorder/playback"
)

const (
	writeWait  = 10 * time.Second
	frameLimit = 512
	// pongWait is how long the client may go without answering a ping.
	pongWait = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Player is the part of the playback engine the handler drives.
type Player interface {
	Open(name string) error
	NextFrame(ctx context.Context, dst []byte) ([]byte, error)
	Stop() playback.StopResult
}

// Handler plays the recording named by the "file" query parameter.
func Handler(player Player) http.HandlerFunc {
	return handler(player, pongWait)
}

func handler(player Player, pongWait time.Duration) http.HandlerFunc {
	// Pings must go out before the client's pong deadline passes.
	pingPeriod := (pongWait * 9) / 10
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("file")
		if name == "" {
			http.Error(w, "file must be given", http.StatusBadRequest)
			return
		}
		if err := player.Open(name); err != nil {
			status := http.StatusNotFound
			if errors.Is(err, playback.ErrRecording) {
				status = http.StatusConflict
			}
			http.Error(w, err.Error(), status)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade error: %v", err)
			player.Stop()
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go readUntilClosed(conn, cancel, pongWait)
		go ping(ctx, conn, cancel, pingPeriod)

		if err := send(ctx, conn, player); err != nil {
			log.Printf("playback stream of %s ended: %v", name, err)
			player.Stop()
			return
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "end of recording"))
	}
}

func send(ctx context.Context, conn *websocket.Conn, player Player) error {
	var frame []byte
	for {
		var err error
		frame, err = player.NextFrame(ctx, frame[:0])
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.BinaryMessage, trimPadding(frame)); err != nil {
			return err
		}
	}
}

// ping keeps the read deadline of an otherwise silent client moving.
// WriteControl may be called alongside the frame writes.
func ping(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				cancel()
				return
			}
		}
	}
}

// readUntilClosed discards client messages and cancels the stream once
// the client goes away.
func readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc, pongWait time.Duration) {
	defer cancel()
	conn.SetReadLimit(frameLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

var endOfImage = []byte{0xff, 0xd9}

// trimPadding drops the zero bytes added after the end of image marker to
// align the chunk.
func trimPadding(frame []byte) []byte {
	for pad := 0; pad < 4 && len(frame)-pad >= len(endOfImage); pad++ {
		if bytes.HasSuffix(frame[:len(frame)-pad], endOfImage) {
			return frame[:len(frame)-pad]
		}
		if frame[len(frame)-pad-1] != 0 {
			break
		}
	}
	return frame
}
