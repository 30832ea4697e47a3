// Package preview streams shell frames to browser viewers over WebSocket and
// accepts commands that drive the shell.
package preview

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"

	"github.com/ashureev/storefront/internal/layout"
)

const viewerBuffer = 8

type viewer struct {
	conn   *websocket.Conn
	frames chan layout.Frame
}

// Hub tracks connected viewers and fans frames out to them.
type Hub struct {
	mu      sync.RWMutex
	viewers map[string]*viewer
	logger  *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		viewers: make(map[string]*viewer),
		logger:  logger,
	}
}

// Register adds a viewer and returns the channel its frames are delivered
// on. A viewer registered again under the same id replaces the old one.
func (h *Hub) Register(id string, conn *websocket.Conn) <-chan layout.Frame {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.viewers[id]; ok {
		if existing.conn == conn {
			return existing.frames
		}
		close(existing.frames)
		if existing.conn != nil {
			_ = existing.conn.Close(websocket.StatusNormalClosure, "viewer replaced")
		}
	}

	v := &viewer{conn: conn, frames: make(chan layout.Frame, viewerBuffer)}
	h.viewers[id] = v
	h.logger.Info("Preview viewer registered", "viewer_id", id)
	return v.frames
}

// Unregister removes a viewer if conn is still the registered connection.
func (h *Hub) Unregister(id string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.viewers[id]; ok && current.conn == conn {
		close(current.frames)
		delete(h.viewers, id)
		h.logger.Info("Preview viewer unregistered", "viewer_id", id)
	}
}

// Broadcast delivers frame to every viewer. A viewer that has fallen behind
// loses its oldest pending frame.
func (h *Hub) Broadcast(frame layout.Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, v := range h.viewers {
		select {
		case v.frames <- frame:
			continue
		default:
		}
		select {
		case <-v.frames:
		default:
		}
		select {
		case v.frames <- frame:
		default:
			h.logger.Debug("Dropped frame for slow viewer", "viewer_id", id, "sequence", frame.Sequence)
		}
	}
}

// Count returns the number of connected viewers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// CloseAll disconnects every viewer.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, v := range h.viewers {
		close(v.frames)
		if v.conn != nil {
			_ = v.conn.Close(websocket.StatusGoingAway, "shell shutting down")
		}
		h.logger.Info("Preview viewer closed", "viewer_id", id)
	}
	h.viewers = make(map[string]*viewer)
}
