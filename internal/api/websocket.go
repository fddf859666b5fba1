package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/YelovSK/Damebooru-sub002/internal/auth"
	"github.com/YelovSK/Damebooru-sub002/internal/models"
)

// ──────────────────── WebSocket Hub ────────────────────

// Hub fans job events out to connected clients. It implements
// jobs.Notifier, so the registry and its reporters publish straight into
// it. A snapshot of every running execution is kept so a client that
// connects mid-job still sees it.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*client]bool
	activeMu   sync.RWMutex
	activeJobs map[uuid.UUID]json.RawMessage // execution id → last job:update payload
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

type wsMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		activeJobs: make(map[uuid.UUID]json.RawMessage),
	}
}

// Broadcast sends an event to every connected client. Slow clients are
// skipped rather than awaited.
func (h *Hub) Broadcast(event string, data any) {
	msg, err := json.Marshal(wsMessage{Event: event, Data: data})
	if err != nil {
		return
	}

	if exec, ok := data.(models.JobExecution); ok {
		h.trackJob(event, exec, msg)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// trackJob keeps the latest snapshot of each running execution and drops
// it once the execution reaches a terminal state.
func (h *Hub) trackJob(event string, exec models.JobExecution, raw []byte) {
	h.activeMu.Lock()
	defer h.activeMu.Unlock()
	if event == "job:done" || exec.Status.Terminal() {
		delete(h.activeJobs, exec.ID)
	} else {
		h.activeJobs[exec.ID] = json.RawMessage(raw)
	}
}

// sendActiveJobs replays current execution state to a new client.
func (h *Hub) sendActiveJobs(c *client) {
	h.activeMu.RLock()
	defer h.activeMu.RUnlock()
	for _, msg := range h.activeJobs {
		select {
		case c.send <- msg:
		default:
		}
	}
}

func (h *Hub) addClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
}

// Close disconnects every client. Used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ──────────────────── WebSocket Handler ────────────────────

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on WebSocket dials, so the token may
	// arrive as a query parameter instead.
	if s.auth.Enabled() {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = auth.ExtractToken(r)
		}
		if token == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if err := s.auth.Validate(token); err != nil {
			http.Error(w, "invalid session", http.StatusUnauthorized)
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.Warn("websocket accept failed", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}

	s.hub.addClient(c)
	s.hub.sendActiveJobs(c)
	s.log.Debug("websocket client connected", "clients", s.hub.ClientCount())

	ctx := r.Context()

	// Writer goroutine
	go func() {
		defer conn.Close(websocket.StatusNormalClosure, "")
		for msg := range c.send {
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}()

	// Reader loop keeps the connection alive and notices disconnects.
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}

	s.hub.removeClient(c)
	s.log.Debug("websocket client disconnected", "clients", s.hub.ClientCount())
}
