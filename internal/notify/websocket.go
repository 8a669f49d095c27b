// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package notify

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteWait = 100 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // observers are usually a phone or laptop on the LAN
	},
}

// WebSocketHub is a Sink that fans step updates out to every connected
// WebSocket client. With no client connected Notify returns ErrNoSubscriber.
type WebSocketHub struct {
	log *slog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	last    []byte
}

// NewWebSocketHub returns an empty hub.
func NewWebSocketHub(logger *slog.Logger) *WebSocketHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHub{log: logger, clients: make(map[*websocket.Conn]struct{})}
}

// ServeHTTP upgrades the request and keeps the client subscribed until it
// goes away. The latest payload, if any, is sent immediately so a new
// observer does not wait for the next tick.
func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	h.mu.Lock()
	if h.last != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, h.last); err != nil {
			h.mu.Unlock()
			conn.Close()
			return
		}
	}
	h.clients[conn] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("websocket observer connected", slog.String("remote", r.RemoteAddr), slog.Int("observers", n))

	// Drain reads so control frames are processed and a close is noticed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.drop(conn)
	h.log.Info("websocket observer disconnected", slog.String("remote", r.RemoteAddr))
}

// Notify writes payload to every client. Clients that fail to keep up are
// disconnected rather than buffered for.
func (h *WebSocketHub) Notify(payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = append(h.last[:0], payload...)
	if len(h.clients) == 0 {
		return ErrNoSubscriber
	}

	var errs []error
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			errs = append(errs, err)
			delete(h.clients, conn)
			conn.Close()
		}
	}
	if len(h.clients) == 0 && len(errs) > 0 {
		// every observer vanished mid-write
		return ErrNoSubscriber
	}
	return nil
}

// Subscribers reports the number of connected clients.
func (h *WebSocketHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *WebSocketHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	for conn := range h.clients {
		errs = append(errs, conn.Close())
		delete(h.clients, conn)
	}
	return errors.Join(errs...)
}

func (h *WebSocketHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}
