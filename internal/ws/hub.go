package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"go-freshflow/internal/events"
)

var ErrHubBusy = errors.New("websocket hub broadcast queue is full")

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one connected websocket session. A client with SeesAll set
// receives events for every party.
type Client struct {
	Conn    Conn
	PartyID string
	SeesAll bool
}

func (c *Client) wants(partyIDs []string) bool {
	if c.SeesAll || len(partyIDs) == 0 {
		return true
	}
	for _, id := range partyIDs {
		if id == c.PartyID {
			return true
		}
	}
	return false
}

type message struct {
	partyIDs []string
	payload  []byte
}

type Hub struct {
	clients    map[*Client]struct{}
	Register   chan *Client
	Unregister chan *Client
	broadcast  chan message
	done       chan struct{}
	mutex      sync.RWMutex
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcast:  make(chan message, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Publish queues the event for connected clients of the listed parties.
func (h *Hub) Publish(_ context.Context, e events.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- message{partyIDs: e.PartyIDs, payload: payload}:
		return nil
	default:
		return ErrHubBusy
	}
}

// Join registers c. It returns false once the hub has stopped.
func (h *Hub) Join(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Leave unregisters c. It never blocks after the hub has stopped.
func (h *Hub) Leave(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Run serves register, unregister and broadcast until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case c := <-h.Register:
			h.mutex.Lock()
			h.clients[c] = struct{}{}
			h.mutex.Unlock()
			h.log.Debug("websocket client connected", zap.String("party_id", c.PartyID))

		case c := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.Conn.Close()
			}
			h.mutex.Unlock()

		case msg := <-h.broadcast:
			h.mutex.Lock()
			for c := range h.clients {
				if !c.wants(msg.partyIDs) {
					continue
				}
				if err := c.Conn.WriteMessage(websocket.TextMessage, msg.payload); err != nil {
					h.log.Debug("dropping websocket client", zap.String("party_id", c.PartyID), zap.Error(err))
					c.Conn.Close()
					delete(h.clients, c)
				}
			}
			h.mutex.Unlock()
		}
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for c := range h.clients {
		c.Conn.Close()
		delete(h.clients, c)
	}
}
