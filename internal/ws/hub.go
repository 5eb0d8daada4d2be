package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/logger"
)

// UserRoom is the personal notification room of a user.
func UserRoom(userID uuid.UUID) string {
	return "user:" + userID.String()
}

// ConversationRoom is the broadcast group of one conversation.
func ConversationRoom(conversationID uuid.UUID) string {
	return "conversation:" + conversationID.String()
}

// Hub tracks connected clients by room and fans messages out to them.
// Delivery is best effort to clients connected at send time.
type Hub struct {
	rooms      map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	query      chan roomQuery
}

type message struct {
	room    string
	payload []byte
}

type roomQuery struct {
	room  string
	reply chan int
}

// NewHub creates a hub; call Run to start it.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 64),
		query:      make(chan roomQuery),
	}
}

// Run is the hub loop. It owns the room map and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.rooms {
				for c := range clients {
					close(c.send)
				}
			}
			h.rooms = map[string]map[*Client]struct{}{}
			return
		case c := <-h.register:
			if _, ok := h.rooms[c.room]; !ok {
				h.rooms[c.room] = make(map[*Client]struct{})
			}
			h.rooms[c.room][c] = struct{}{}
		case c := <-h.unregister:
			h.remove(c)
		case msg := <-h.broadcast:
			for c := range h.rooms[msg.room] {
				select {
				case c.send <- msg.payload:
				default:
					logger.L().WithField("room", msg.room).Warn("ws: slow client dropped")
					h.remove(c)
				}
			}
		case q := <-h.query:
			q.reply <- len(h.rooms[q.room])
		}
	}
}

func (h *Hub) remove(c *Client) {
	clients, ok := h.rooms[c.room]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.rooms, c.room)
	}
}

// Register adds a client to its room.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister removes a client; it is safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

// Publish sends {"type": event, "data": data} to every client in room.
func (h *Hub) Publish(room, event string, data any) error {
	raw, err := json.Marshal(map[string]any{"type": event, "data": data})
	if err != nil {
		return fmt.Errorf("ws: marshal message: %w", err)
	}
	h.broadcast <- message{room: room, payload: raw}
	return nil
}

// PublishToUser sends to the personal room of userID.
func (h *Hub) PublishToUser(userID uuid.UUID, event string, data any) error {
	return h.Publish(UserRoom(userID), event, data)
}

// Connected returns how many clients are in room.
func (h *Hub) Connected(room string) int {
	reply := make(chan int, 1)
	h.query <- roomQuery{room: room, reply: reply}
	return <-reply
}
