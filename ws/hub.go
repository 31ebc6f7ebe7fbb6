package ws

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/psicanalise-online/platform/services"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	pingInterval = 25 * time.Second
)

// Event is the frame pushed to connected clients.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type Client struct {
	UserID uint
	Conn   *websocket.Conn
	Send   chan Event

	ctx    context.Context
	cancel context.CancelFunc
}

// Hub tracks live connections per user. A user may hold several tabs open.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint]map[*Client]struct{}
	log     *zap.Logger
}

var _ services.Pusher = (*Hub)(nil)

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients: map[uint]map[*Client]struct{}{},
		log:     log,
	}
}

func (h *Hub) AddClient(userID uint, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan Event, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}

	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = map[*Client]struct{}{}
	}
	h.clients[userID][c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop()
	go c.keepAliveLoop()
	return c
}

// RemoveClient unregisters c before stopping its loops so no push can race a
// stopped writer.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	h.mu.Unlock()

	c.cancel()
	if c.Conn != nil {
		_ = c.Conn.Close(websocket.StatusNormalClosure, "bye")
	}
}

// Connected reports how many connections userID currently has.
func (h *Hub) Connected(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) BroadcastToUsers(userIDs []uint, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, uid := range userIDs {
		for c := range h.clients[uid] {
			select {
			case c.Send <- ev:
			default:
				h.log.Warn("dropping realtime event, client buffer full",
					zap.Uint("user_id", uid), zap.String("type", ev.Type))
			}
		}
	}
}

func (h *Hub) Push(userIDs []uint, eventType string, data interface{}) {
	h.BroadcastToUsers(userIDs, Event{Type: eventType, Data: data})
}

// Close drops every connection. Used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	all := []*Client{}
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.clients = map[uint]map[*Client]struct{}{}
	h.mu.Unlock()

	for _, c := range all {
		c.cancel()
		if c.Conn != nil {
			_ = c.Conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.Send:
			writeCtx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			_ = wsjson.Write(writeCtx, c.Conn, ev)
			cancel()
		}
	}
}

func (c *Client) keepAliveLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
			_ = c.Conn.Ping(pingCtx)
			cancel()
		}
	}
}
