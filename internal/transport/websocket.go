// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"net/http"
	"sync"

	applog "specmon/internal/log"
	"specmon/internal/pipeline"

	"github.com/gorilla/websocket"
)

// wsMessage is the envelope broadcast to clients. Type is one of "result",
// "cleared", "status".
type wsMessage struct {
	Type   string                   `json:"type"`
	Result *pipeline.PipelineResult `json:"result,omitempty"`
	Text   string                   `json:"text,omitempty"`
}

// WebSocketRenderer implements pipeline.Renderer by broadcasting results to
// connected WebSocket clients on /results.
//
// Thread Safety:
// - Uses a mutex for client map access
// - Delivery cadence is bounded upstream by the orchestrator tick, so no
//   extra rate limiting is applied here
// - Handles concurrent connections and disconnects safely
type WebSocketRenderer struct {
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	upgrader  websocket.Upgrader
	server    *http.Server
}

var _ pipeline.Renderer = (*WebSocketRenderer)(nil)

// NewWebSocketRenderer creates the renderer and starts its HTTP server on
// addr (e.g. ":8080") in a background goroutine.
func NewWebSocketRenderer(addr string) *WebSocketRenderer {
	t := &WebSocketRenderer{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // local visualization clients only
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/results", t.handleWebSocket)
	t.server = &http.Server{Addr: addr, Handler: mux}

	go func() {
		applog.Infof("Transport: WebSocket server listening on %s", addr)
		if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			applog.Errorf("Transport: WebSocket server error: %v", err)
		}
	}()

	return t
}

// OnResult broadcasts one pipeline result to all connected clients.
func (t *WebSocketRenderer) OnResult(result *pipeline.PipelineResult) {
	t.broadcast(wsMessage{Type: "result", Result: result})
}

// OnCleared notifies clients that the buffer was emptied.
func (t *WebSocketRenderer) OnCleared() {
	t.broadcast(wsMessage{Type: "cleared"})
}

// OnStatus forwards a status line to clients.
func (t *WebSocketRenderer) OnStatus(text string) {
	t.broadcast(wsMessage{Type: "status", Text: text})
}

// handleWebSocket upgrades HTTP connections and registers the client. A
// goroutine per client watches for the close handshake and unregisters it.
func (t *WebSocketRenderer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("Transport: WebSocket upgrade error: %v", err)
		return
	}

	t.clientsMu.Lock()
	t.clients[conn] = true
	total := len(t.clients)
	t.clientsMu.Unlock()
	applog.Infof("Transport: client connected, total: %d", total)

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				t.clientsMu.Lock()
				delete(t.clients, conn)
				t.clientsMu.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

func (t *WebSocketRenderer) broadcast(msg wsMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		applog.Errorf("Transport: marshal error: %v", err)
		return
	}

	t.clientsMu.Lock()
	for client := range t.clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			client.Close()
			delete(t.clients, client)
		}
	}
	t.clientsMu.Unlock()
}

// Close shuts down the server and drops all client connections.
// Safe to call more than once.
func (t *WebSocketRenderer) Close() error {
	t.clientsMu.Lock()
	for client := range t.clients {
		client.Close()
		delete(t.clients, client)
	}
	t.clientsMu.Unlock()

	return t.server.Close()
}
