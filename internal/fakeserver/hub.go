package fakeserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

type registerFrame struct {
	Type      string `json:"type"`
	Action    string `json:"action"`
	SessionID string `json:"sessionId"`
}

type hubConn struct {
	ws  *websocket.Conn
	sid string
	mu  sync.Mutex
}

func (c *hubConn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

// hub tracks push connections by the session id they registered with.
type hub struct {
	upgrader websocket.Upgrader
	log      logr.Logger

	mu       sync.RWMutex
	conns    map[*hubConn]struct{}
	bySID    map[string]*hubConn
	notify   chan struct{}
	closed   bool
}

func newHub(log logr.Logger) *hub {
	return &hub{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log:    log,
		conns:  map[*hubConn]struct{}{},
		bySID:  map[string]*hubConn{},
		notify: make(chan struct{}),
	}
}

func (h *hub) serve(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error(err, "websocket upgrade failed")
		return
	}
	c := &hubConn{ws: ws}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = ws.Close()
		return
	}
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	if sid := r.URL.Query().Get("sessionId"); sid != "" {
		h.bind(c, sid)
	}
	defer h.remove(c)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.V(1).Info("push connection dropped", "error", err.Error())
			}
			return
		}
		var f registerFrame
		if err := json.Unmarshal(data, &f); err != nil {
			h.log.V(1).Info("ignoring malformed client frame")
			continue
		}
		if (f.Type == "register" || f.Action == "identify") && f.SessionID != "" {
			h.bind(c, f.SessionID)
		}
	}
}

func (h *hub) bind(c *hubConn, sid string) {
	h.mu.Lock()
	if c.sid != "" && h.bySID[c.sid] == c {
		delete(h.bySID, c.sid)
	}
	c.sid = sid
	h.bySID[sid] = c
	// wake every waiter; they re-check under the lock
	close(h.notify)
	h.notify = make(chan struct{})
	h.mu.Unlock()
}

func (h *hub) remove(c *hubConn) {
	h.mu.Lock()
	delete(h.conns, c)
	if c.sid != "" && h.bySID[c.sid] == c {
		delete(h.bySID, c.sid)
	}
	close(h.notify)
	h.notify = make(chan struct{})
	h.mu.Unlock()
	_ = c.ws.Close()
}

// push sends v to the connection registered as sid. It reports whether
// such a connection exists.
func (h *hub) push(sid string, v any) (bool, error) {
	h.mu.RLock()
	c := h.bySID[sid]
	h.mu.RUnlock()
	if c == nil {
		return false, nil
	}
	return true, c.send(v)
}

// broadcast sends v to every open connection, registered or not.
func (h *hub) broadcast(v any) int {
	h.mu.RLock()
	targets := make([]*hubConn, 0, len(h.conns))
	for c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if err := c.send(v); err != nil {
			h.log.V(1).Info("broadcast write failed", "error", err.Error())
			continue
		}
		sent++
	}
	return sent
}

// drop closes the connection registered as sid, as the server does when a
// session is revoked.
func (h *hub) drop(sid string) bool {
	h.mu.RLock()
	c := h.bySID[sid]
	h.mu.RUnlock()
	if c == nil {
		return false
	}
	c.mu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "session revoked"),
		time.Now().Add(writeWait))
	c.mu.Unlock()
	_ = c.ws.Close()
	return true
}

func (h *hub) registered() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.bySID))
	for sid := range h.bySID {
		out = append(out, sid)
	}
	return out
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// changed returns a channel closed on the next bind or remove.
func (h *hub) changed() <-chan struct{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.notify
}

func (h *hub) close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*hubConn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		_ = c.ws.Close()
	}
}
