package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// ViewSource re-derives a game's view. GameService satisfies it.
type ViewSource interface {
	GetView(ctx context.Context, gameID string) (*GameView, error)
}

// Hub fans game views out to every websocket and SSE subscriber of a game.
// It implements Notifier.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
	source     ViewSource
	logger     *slog.Logger
}

// Client is one subscriber. socket is nil for SSE subscribers, which read
// Messages directly.
type Client struct {
	hub    *Hub
	id     string
	socket *websocket.Conn
	send   chan []byte
	gameID string
	teamID string
	closed bool
}

type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

const (
	MessageGameUpdate = "game_update"
	MessagePong       = "pong"
	MessageError      = "error"
)

func NewHub(source ViewSource, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		source:     source,
		logger:     logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Debug("client registered", "client_id", client.id, "game_id", client.gameID, "team_id", client.teamID, "total", total)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id, "game_id", client.gameID, "total", total)
		}
	}
}

// drop removes a client and closes its queue. The caller holds the write lock.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	client.closed = true
	close(client.send)
}

// GameChanged pushes a freshly derived view to the game's subscribers.
func (h *Hub) GameChanged(ctx context.Context, gameID string) {
	if !h.hasSubscribers(gameID) {
		return
	}
	data, err := h.viewMessage(ctx, gameID)
	if err != nil {
		h.logger.Warn("failed to build game update", "game_id", gameID, "error", err)
		return
	}
	h.BroadcastToGame(gameID, data)
}

func (h *Hub) viewMessage(ctx context.Context, gameID string) ([]byte, error) {
	view, err := h.source.GetView(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: MessageGameUpdate, Payload: view})
}

func (h *Hub) BroadcastToGame(gameID string, data []byte) {
	var slow []*Client

	h.mutex.RLock()
	sent := 0
	for client := range h.clients {
		if client.gameID != gameID {
			continue
		}
		select {
		case client.send <- data:
			sent++
		default:
			slow = append(slow, client)
		}
	}
	h.mutex.RUnlock()

	if len(slow) > 0 {
		h.mutex.Lock()
		for _, client := range slow {
			if _, ok := h.clients[client]; ok {
				h.logger.Warn("client send buffer full, dropping", "client_id", client.id, "game_id", gameID)
				h.drop(client)
			}
		}
		h.mutex.Unlock()
	}

	h.logger.Debug("broadcast game update", "game_id", gameID, "clients", sent)
}

func (h *Hub) hasSubscribers(gameID string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	for client := range h.clients {
		if client.gameID == gameID {
			return true
		}
	}
	return false
}

// ConnectedTeams lists the team ids with an open subscription to the game.
func (h *Hub) ConnectedTeams(gameID string) []string {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	var ids []string
	for client := range h.clients {
		if client.gameID == gameID && client.teamID != "" {
			ids = append(ids, client.teamID)
		}
	}
	return ids
}

func (h *Hub) newClient(conn *websocket.Conn, gameID, teamID string) *Client {
	return &Client{
		hub:    h,
		id:     uuid.NewString(),
		socket: conn,
		send:   make(chan []byte, sendBuffer),
		gameID: gameID,
		teamID: teamID,
	}
}

// Subscribe registers a socketless client and queues the current view as its
// first message. It returns false once the hub has stopped.
func (h *Hub) Subscribe(ctx context.Context, gameID, teamID string) (*Client, bool) {
	client := h.newClient(nil, gameID, teamID)
	if !h.add(client) {
		return nil, false
	}
	h.sendCurrentView(ctx, client)
	return client, true
}

func (h *Hub) Unsubscribe(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// RegisterClient attaches a websocket and starts its pumps.
func (h *Hub) RegisterClient(ctx context.Context, conn *websocket.Conn, gameID, teamID string) *Client {
	client := h.newClient(conn, gameID, teamID)
	if !h.add(client) {
		_ = conn.Close()
		return nil
	}
	h.sendCurrentView(ctx, client)

	go client.writePump()
	go client.readPump()

	return client
}

func (h *Hub) add(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) sendCurrentView(ctx context.Context, client *Client) {
	data, err := h.viewMessage(ctx, client.gameID)
	if err != nil {
		h.logger.Warn("failed to build game state sync", "client_id", client.id, "game_id", client.gameID, "error", err)
		data, _ = json.Marshal(Message{Type: MessageError, Payload: err.Error()})
	}
	client.trySend(data)
}

// Messages yields encoded Message values until the client is dropped.
func (c *Client) Messages() <-chan []byte {
	return c.send
}

// trySend queues data without blocking; it reports false when the buffer is
// full or the client is already closed.
func (c *Client) trySend(data []byte) (ok bool) {
	c.hub.mutex.RLock()
	defer c.hub.mutex.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unsubscribe(c)
		c.socket.Close()
	}()

	c.socket.SetReadLimit(4096)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read error", "client_id", c.id, "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.hub.logger.Debug("ignoring malformed client message", "client_id", c.id, "error", err)
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg Message) {
	switch msg.Type {
	case "ping":
		data, _ := json.Marshal(Message{Type: MessagePong, Payload: "pong"})
		c.trySend(data)

	case "request_game_state":
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		c.hub.sendCurrentView(ctx, c)

	default:
		c.hub.logger.Debug("unknown message type", "type", msg.Type, "client_id", c.id, "game_id", c.gameID)
	}
}
