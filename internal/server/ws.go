// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256

	// closeSessionGone is the close code for a session pruned mid-join.
	closeSessionGone = 4404
)

// client is one WebSocket connection attached to a room.
type client struct {
	conn    *websocket.Conn
	room    *room
	send    chan ServerMessage
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
}

// enqueue queues msg without blocking. A client that cannot keep up is
// disconnected.
func (c *client) enqueue(msg ServerMessage) {
	select {
	case <-c.ctx.Done():
	case c.send <- msg:
	default:
		c.cancel()
	}
}

// handleWebSocket upgrades the request and attaches it to ?session=ID,
// or to a new session when the parameter is empty. Unknown IDs are
// rejected with 404. The first frame sent is the session with its
// transcript.
func (s *Server) handleWebSocket(c echo.Context) error {
	id := c.QueryParam("session")
	if id != "" {
		if _, ok := s.lookup(id); !ok {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Printf("websocket upgrade failed: %v", err)
		return nil
	}
	ws.SetReadLimit(maxMessageSize)

	ctx, cancel := context.WithCancel(context.Background())
	cl := &client{
		conn:    ws,
		send:    make(chan ServerMessage, sendBuffer),
		limiter: rate.NewLimiter(s.opts.MessageRate, s.opts.MessageBurst),
		ctx:     ctx,
		cancel:  cancel,
	}

	rm, ok := s.join(id, cl)
	if !ok {
		// Pruned after the check above.
		cancel()
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeSessionGone, "session not found"),
			time.Now().Add(writeWait))
		ws.Close()
		return nil
	}
	s.logger.Printf("websocket attached: session=%s clients=%d", rm.id, rm.attached())

	go s.writePump(cl)
	s.readPump(cl)
	return nil
}

// readPump reads frames until the connection drops. Turns run on their
// own goroutine so pings and rejections keep flowing.
func (s *Server) readPump(c *client) {
	defer func() {
		c.room.detach(c)
		c.cancel()
		s.logger.Printf("websocket detached: session=%s", c.room.id)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Printf("websocket error: session=%s: %v", c.room.id, err)
			}
			return
		}

		if !c.limiter.Allow() {
			c.enqueue(ServerMessage{Type: TypeBusy, Content: "too many messages, slow down"})
			continue
		}

		go func(msg ClientMessage) {
			// A closed connection cancels its own turn.
			if err := c.room.handle(c.ctx, c, msg); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Printf("websocket message rejected: session=%s type=%q: %v", c.room.id, msg.Type, err)
			}
		}(msg)
	}
}

// writePump serializes writes and keeps the connection alive. It owns
// closing the socket, which also unblocks readPump.
func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.cancel()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				s.logger.Printf("websocket write failed: session=%s: %v", c.room.id, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
