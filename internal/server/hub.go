// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	solidrepl "github.com/buke/solid-repl-go"
	"github.com/gorilla/websocket"
)

// Live preview events pushed to websocket clients.
const (
	EventReload  = "reload"
	EventError   = "error"
	EventInspect = "inspect"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 16
)

// Message is one live preview event.
type Message struct {
	Event   string `json:"event"`
	Message string `json:"message,omitempty"`
	Tab     string `json:"tab,omitempty"`
	Code    string `json:"code,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans live preview events out to websocket clients. It consumes the
// output of a session: project compilations become reload events, file
// compilations inspect events and failures error events.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub returns a hub without clients.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
	}
}

// UpdatePreview implements solidrepl.PreviewConsumer.
func (h *Hub) UpdatePreview(solidrepl.PreviewUpdate) {
	h.Broadcast(Message{Event: EventReload})
}

// UpdateInspection implements solidrepl.InspectionConsumer.
func (h *Hub) UpdateInspection(tab, code string) {
	h.Broadcast(Message{Event: EventInspect, Tab: tab, Code: code})
}

// ShowError implements solidrepl.ErrorConsumer.
func (h *Hub) ShowError(message string) {
	h.Broadcast(Message{Event: EventError, Message: message})
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends msg to every client. Clients that cannot keep up are
// dropped.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode live preview message", "event", msg.Event, "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("Dropping slow live preview client", "remote", c.conn.RemoteAddr().String())
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ServeHTTP upgrades the request and keeps the client registered until the
// connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied.
		h.logger.Debug("Websocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
