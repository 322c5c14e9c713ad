// SPDX-License-Identifier: MIT
package transport

import (
	"net/http"
	"sync"
	"time"

	"dronewatch/internal/detect"
	"dronewatch/internal/log"

	"github.com/gorilla/websocket"
)

const (
	broadcastBuffer = 256
	writeWait       = time.Second
)

// WebSocketHub broadcasts every status as JSON to connected WebSocket
// clients. It is an http.Handler and does not own a listener; mount it on
// the status server.
type WebSocketHub struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan detect.Status
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	dropped   uint64
}

// NewWebSocketHub starts the broadcast goroutine.
func NewWebSocketHub() *WebSocketHub {
	h := &WebSocketHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Dashboards are served from anywhere on the LAN
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan detect.Status, broadcastBuffer),
		done:      make(chan struct{}),
	}
	h.wg.Add(1)
	go h.handleBroadcasts()
	return h
}

// ServeHTTP upgrades the connection and registers the client.
func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocket: Upgrade error: %v", err)
		return
	}

	h.clientsMu.Lock()
	select {
	case <-h.done:
		h.clientsMu.Unlock()
		conn.Close()
		return
	default:
	}
	h.clients[conn] = true
	total := len(h.clients)
	h.clientsMu.Unlock()
	log.Infof("WebSocket: Client connected from %s, total: %d", r.RemoteAddr, total)

	// Clients only listen; a read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.remove(conn)
				return
			}
		}
	}()
}

func (h *WebSocketHub) remove(conn *websocket.Conn) {
	h.clientsMu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	total := len(h.clients)
	h.clientsMu.Unlock()
	if ok {
		conn.Close()
		log.Infof("WebSocket: Client disconnected, total: %d", total)
	}
}

// Clients returns the number of connected clients.
func (h *WebSocketHub) Clients() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}

func (h *WebSocketHub) handleBroadcasts() {
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			return
		case status := <-h.broadcast:
			h.clientsMu.Lock()
			for client := range h.clients {
				client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteJSON(status); err != nil {
					log.Warnf("WebSocket: Error sending to client: %v", err)
					client.Close()
					delete(h.clients, client)
				}
			}
			h.clientsMu.Unlock()
		}
	}
}

// Report queues status for broadcast. A slow consumer never stalls the
// detection loop: when the queue is full the status is dropped for
// WebSocket clients only.
func (h *WebSocketHub) Report(status detect.Status) error {
	select {
	case <-h.done:
		return nil
	default:
	}
	select {
	case h.broadcast <- status:
	default:
		h.clientsMu.Lock()
		h.dropped++
		h.clientsMu.Unlock()
		log.Debugf("WebSocket: Broadcast queue full, dropped status %d", status.Sequence)
	}
	return nil
}

// Dropped returns the number of statuses dropped on a full queue.
func (h *WebSocketHub) Dropped() uint64 {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return h.dropped
}

// Close disconnects all clients and stops broadcasting.
func (h *WebSocketHub) Close() error {
	h.closeOnce.Do(func() {
		h.clientsMu.Lock()
		close(h.done)
		for client := range h.clients {
			client.Close()
		}
		h.clients = make(map[*websocket.Conn]bool)
		h.clientsMu.Unlock()
		h.wg.Wait()
		log.Infof("WebSocket: Hub closed")
	})
	return nil
}

var _ Transport = (*WebSocketHub)(nil)
