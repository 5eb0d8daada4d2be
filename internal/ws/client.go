package ws

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// InboundFunc handles a frame read from the client. The frame is dropped
// when it returns an error; the error is sent back to that client only.
type InboundFunc func(ctx context.Context, userID uuid.UUID, frame []byte) error

// Client is one websocket connection joined to a single room.
type Client struct {
	conn    *websocket.Conn
	hub     *Hub
	room    string
	userID  uuid.UUID
	send    chan []byte
	inbound InboundFunc
}

// NewClient creates a client for room. inbound may be nil for receive-only rooms.
func NewClient(conn *websocket.Conn, hub *Hub, room string, userID uuid.UUID, inbound InboundFunc) *Client {
	return &Client{
		conn:    conn,
		hub:     hub,
		room:    room,
		userID:  userID,
		send:    make(chan []byte, 16),
		inbound: inbound,
	}
}

// Run registers the client and blocks until the connection closes.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	go c.writePumpSafe()
	c.readPump(ctx)
}

func (c *Client) writePumpSafe() {
	defer func() {
		if r := recover(); r != nil {
			logger.L().WithField("panic", r).WithField("stack", string(debug.Stack())).Error("ws: write pump panic recovered")
			c.Close()
		}
	}()
	c.writePump()
}

// Close leaves the room and closes the connection.
func (c *Client) Close() {
	c.hub.Unregister(c)
	_ = c.conn.Close()
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.L().WithField("panic", r).WithField("stack", string(debug.Stack())).Error("ws: read pump panic recovered")
		}
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.L().WithError(err).WithField("room", c.room).Debug("ws: unexpected close")
			}
			return
		}
		if c.inbound == nil {
			continue
		}
		if err := c.inbound(ctx, c.userID, frame); err != nil {
			c.reject(err)
		}
	}
}

func (c *Client) reject(err error) {
	raw, mErr := json.Marshal(map[string]any{"type": "error", "data": map[string]string{"message": err.Error()}})
	if mErr != nil {
		return
	}
	select {
	case c.send <- raw:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
