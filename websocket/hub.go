// Package websocket fans course completion progress out to connected admin
// clients.
package websocket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Mustafaygtbs/CertificateManagement/logging"
	"github.com/Mustafaygtbs/CertificateManagement/services"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	broadcastBuffer = 256
	// clientBuffer bounds the events queued for one subscriber. A client
	// that falls further behind is disconnected.
	clientBuffer = 64
)

// Conn is the part of a websocket connection the hub needs.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

type Client struct {
	UserID uuid.UUID
	Conn   Conn

	send chan services.CompletionEvent
}

type authMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// Hub implements services.ProgressPublisher. Publish never blocks; events are
// dropped when the broadcast buffer is full. Each client is written by its
// own pump so a slow connection never stalls the hub.
type Hub struct {
	tokens *services.TokenIssuer
	log    *slog.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan services.CompletionEvent
	done       chan struct{}
}

func NewHub(tokens *services.TokenIssuer, log *slog.Logger) *Hub {
	return &Hub{
		tokens:     tokens,
		log:        log,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan services.CompletionEvent, broadcastBuffer),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
				_ = c.Conn.Close()
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			c.send = make(chan services.CompletionEvent, clientBuffer)
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			go h.writePump(c)
			h.log.Debug("ws_client_registered", slog.String("user_id", c.UserID.String()))
		case c := <-h.unregister:
			h.remove(c)
		case ev := <-h.broadcast:
			h.send(ev)
		}
	}
}

func (h *Hub) Publish(ev services.CompletionEvent) {
	select {
	case h.broadcast <- ev:
	default:
		h.log.Warn("ws_event_dropped", slog.String("course_id", ev.CourseID), slog.String("stage", ev.Stage))
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// send queues ev for every client without blocking. Sends happen under the
// read lock and channels are closed under the write lock.
func (h *Hub) send(ev services.CompletionEvent) {
	h.mu.RLock()
	var slow []*Client
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("ws_client_too_slow", slog.String("user_id", c.UserID.String()))
		h.remove(c)
	}
}

func (h *Hub) writePump(c *Client) {
	for ev := range c.send {
		if err := c.Conn.WriteJSON(ev); err != nil {
			h.log.Warn("ws_write_failed", slog.String("user_id", c.UserID.String()), logging.Err(err))
			h.remove(c)
			return
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		_ = c.Conn.Close()
		h.log.Debug("ws_client_unregistered", slog.String("user_id", c.UserID.String()))
	}
}

// Authenticate reads the first message, which must be
// {"type":"auth","token":"<bearer token>"} carrying an admin session.
func (h *Hub) Authenticate(conn Conn) (*Client, error) {
	var msg authMessage
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "auth" {
		return nil, services.ErrInvalidToken
	}
	claims, err := h.tokens.Parse(msg.Token)
	if err != nil {
		return nil, err
	}
	if !claims.IsAdmin() {
		return nil, services.ErrUnauthorized
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, services.ErrInvalidToken
	}
	return &Client{UserID: userID, Conn: conn}, nil
}

// Serve authenticates the connection, subscribes it and blocks until the
// client goes away. Inbound messages after authentication are ignored.
func (h *Hub) Serve(conn Conn) {
	client, err := h.Authenticate(conn)
	if err != nil {
		h.log.Info("ws_auth_failed", logging.Err(err))
		_ = conn.WriteJSON(fiber.Map{"status": "error", "message": "unauthorized"})
		_ = conn.Close()
		return
	}
	_ = conn.WriteJSON(fiber.Map{"status": "ok", "type": "subscribed"})

	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
	}()

	for {
		var ignored map[string]any
		if err := conn.ReadJSON(&ignored); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug("ws_read_failed", slog.String("user_id", client.UserID.String()), logging.Err(err))
			}
			return
		}
	}
}

// Handler adapts Serve for fiber routes. Mount it behind UpgradeRequired.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		h.Serve(c)
	})
}

func UpgradeRequired(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}
