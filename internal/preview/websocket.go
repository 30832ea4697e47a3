package preview

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/ashureev/storefront/internal/layout"
)

// FrameSource returns the latest shell frame.
type FrameSource interface {
	Frame() layout.Frame
}

// frameMessage wraps a frame on the wire.
type frameMessage struct {
	Type  string       `json:"type"`
	Frame layout.Frame `json:"frame"`
}

// WebSocketHandler serves the preview stream.
type WebSocketHandler struct {
	hub           *Hub
	frames        FrameSource
	actions       *Actions
	allowedOrigin string
	isDev         bool
	logger        *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(hub *Hub, frames FrameSource, actions *Actions, allowedOrigin string, isDev bool, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		hub:           hub,
		frames:        frames,
		actions:       actions,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		logger:        logger,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	viewerID := uuid.NewString()
	h.logger.Info("Preview connection request", "viewer_id", viewerID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "viewer_id", viewerID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "preview ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "viewer_id", viewerID)
		}
	}()

	frames := h.hub.Register(viewerID, ws)
	defer h.hub.Unregister(viewerID, ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := wsjson.Write(ctx, ws, frameMessage{Type: "frame", Frame: h.frames.Frame()}); err != nil {
		h.logger.Debug("Failed to send initial frame", "error", err, "viewer_id", viewerID)
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)

	// Input loop: viewer -> shell.
	go func() {
		defer wg.Done()
		defer cancel()
		h.inputLoop(ctx, ws, viewerID)
	}()

	// Output loop: shell -> viewer.
	go func() {
		defer wg.Done()
		defer cancel()
		h.outputLoop(ctx, ws, frames, viewerID)
	}()

	wg.Wait()
	h.logger.Info("Preview session ended", "viewer_id", viewerID)
}

// checkOrigin admits same-origin pages and the configured origin. Requests
// without an Origin header come from non-browser clients.
func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if h.allowedOrigin != "" && origin == h.allowedOrigin {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) inputLoop(ctx context.Context, ws *websocket.Conn, viewerID string) {
	for {
		var cmd Command
		if err := wsjson.Read(ctx, ws, &cmd); err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				h.logger.Debug("WebSocket closed by viewer", "viewer_id", viewerID)
			} else {
				h.logger.Warn("WebSocket read error", "error", err, "viewer_id", viewerID)
			}
			return
		}

		reply, err := h.actions.Dispatch(ctx, cmd)
		if err != nil {
			h.logger.Debug("Command rejected", "viewer_id", viewerID, "command", cmd.Type)
		}
		if err := wsjson.Write(ctx, ws, reply); err != nil {
			h.logger.Debug("Failed to send reply", "error", err, "viewer_id", viewerID)
			return
		}
	}
}

func (h *WebSocketHandler) outputLoop(ctx context.Context, ws *websocket.Conn, frames <-chan layout.Frame, viewerID string) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, ws, frameMessage{Type: "frame", Frame: frame}); err != nil {
				if ctx.Err() == nil {
					h.logger.Debug("WebSocket write error", "error", err, "viewer_id", viewerID)
				}
				return
			}
		}
	}
}
