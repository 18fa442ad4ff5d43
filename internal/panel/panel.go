// Package panel is the bot's side of the desktop control panel boundary.
// The panel itself is an external program; this package only exposes what
// it displays: a JSON status snapshot over HTTP and a live activity feed
// over a local websocket.
package panel

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Hub serves /status and /ws on a local listen address and fans broadcast
// messages out to every attached panel.
type Hub struct {
	addr     string
	statusFn func() any

	upgrader websocket.Upgrader
	srv      *http.Server

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

// New builds a hub. statusFn is called per /status request and for the
// initial frame sent to each new websocket attach.
func New(addr string, statusFn func() any) *Hub {
	return &Hub{
		addr:     addr,
		statusFn: statusFn,
		upgrader: websocket.Upgrader{
			// local control surface only; the listener should be loopback
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: map[*websocket.Conn]bool{},
	}
}

// Start begins serving. Non-blocking; listen errors other than shutdown
// are logged.
func (h *Hub) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", h.handleStatus)
	mux.HandleFunc("/ws", h.handleWS)

	h.srv = &http.Server{Addr: h.addr, Handler: mux}
	go func() {
		if err := h.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[panel] listen %s: %v", h.addr, err)
		}
	}()
	log.Printf("[panel] serving on %s", h.addr)
}

// Stop shuts the server down and closes every attached panel.
func (h *Hub) Stop() {
	if h.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = h.srv.Shutdown(ctx)
		cancel()
	}
	h.mu.Lock()
	for c := range h.conns {
		_ = c.Close()
	}
	h.conns = map[*websocket.Conn]bool{}
	h.mu.Unlock()
}

func (h *Hub) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.statusFn())
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[panel] upgrade: %v", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = true
	h.mu.Unlock()

	// first frame: current status, so the panel renders immediately
	h.writeTo(conn, map[string]any{"kind": "status", "data": h.statusFn()})

	// reader drains control frames and detects the close
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends one JSON frame to every attached panel, dropping the
// ones that fail.
func (h *Hub) Broadcast(kind string, data any) {
	payload, err := json.Marshal(map[string]any{"kind": kind, "data": data})
	if err != nil {
		return
	}

	// the mutex doubles as the single-writer guarantee gorilla requires
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		_ = c.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			delete(h.conns, c)
			_ = c.Close()
		}
	}
}

func (h *Hub) writeTo(conn *websocket.Conn, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.conns[conn] {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		delete(h.conns, conn)
		_ = conn.Close()
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if h.conns[conn] {
		delete(h.conns, conn)
		_ = conn.Close()
	}
	h.mu.Unlock()
}
