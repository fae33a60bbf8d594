package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labring/devbox-console/pkg/common"
	"github.com/labring/devbox-console/pkg/errors"
	"github.com/labring/devbox-console/pkg/host"
)

// WebSocketHandler pushes a target's output stream to subscribers as it grows
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	host     *host.Host
	config   *WebSocketConfig

	mutex   sync.RWMutex
	clients map[*websocket.Conn]*ClientInfo

	ctx    context.Context
	cancel context.CancelFunc
}

// ClientInfo holds client connection information
type ClientInfo struct {
	ID        string
	User      string
	Target    string
	Connected time.Time
}

// NewWebSocketHandler creates a push handler over the host's streams
func NewWebSocketHandler(h *host.Host, config *WebSocketConfig) *WebSocketHandler {
	ctx, cancel := context.WithCancel(context.Background())

	if config == nil {
		config = NewDefaultWebSocketConfig()
	}
	if config.ReadChunk <= 0 {
		config.ReadChunk = host.DefaultReadChunk
	}

	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		host:    h,
		config:  config,
		clients: make(map[*websocket.Conn]*ClientInfo),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// HandleWebSocket streams ?name= from ?offset= until the client goes away.
// Unknown targets and bad offsets are answered before the upgrade.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		errors.WriteErrorResponse(w, errors.NewInvalidRequestError("name is required"))
		return
	}
	var offset uint64
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			errors.WriteErrorResponse(w, errors.NewInvalidRequestError("offset must be a non-negative integer"))
			return
		}
		offset = parsed
	}

	target, err := h.host.Get(name)
	if err != nil {
		errors.WriteErrorResponse(w, errors.AsAPIError(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := &ClientInfo{
		ID:        r.RemoteAddr,
		User:      r.Header.Get(common.HeaderUser),
		Target:    name,
		Connected: time.Now(),
	}

	h.mutex.Lock()
	h.clients[conn] = client
	h.mutex.Unlock()

	slog.Info("stream subscriber connected",
		slog.String("client", client.ID),
		slog.String("user", client.User),
		slog.String("target", name),
		slog.Uint64("offset", offset),
	)

	go h.handleClient(conn, client, target.Stream(), offset)
}

// handleClient owns all writes to conn
func (h *WebSocketHandler) handleClient(conn *websocket.Conn, client *ClientInfo, stream *host.Stream, offset uint64) {
	defer h.cleanupClientConnection(conn)

	closed := make(chan struct{})
	go h.readLoop(conn, closed)

	ticker := time.NewTicker(h.config.PingPeriod)
	defer ticker.Stop()

	// the first frame is sent even when empty so the subscriber learns the
	// stream position
	announced := false
	for {
		// Take the wakeup channel before reading so no append is missed
		changed := stream.Changed()
		slice := stream.ReadFrom(offset, h.config.ReadChunk)

		if !announced || slice.Data != "" || slice.Reset || slice.Truncated {
			announced = true
			frame := common.StreamFrame{
				Name:      client.Target,
				Data:      slice.Data,
				Offset:    slice.Offset,
				Len:       slice.Len,
				Truncated: slice.Truncated,
				Reset:     slice.Reset,
			}
			if err := h.sendJSON(conn, frame); err != nil {
				slog.Debug("stream write failed", slog.String("client", client.ID), slog.String("error", err.Error()))
				return
			}
			offset = slice.Offset
			if offset < slice.Len {
				continue
			}
		}

		select {
		case <-changed:
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(h.config.WriteWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-h.ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "host shutting down"),
				time.Now().Add(h.config.WriteWait))
			return
		}
	}
}

// readLoop consumes control frames and reports when the client goes away
func (h *WebSocketHandler) readLoop(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(h.config.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", slog.String("error", err.Error()))
			}
			return
		}
	}
}

// cleanupClientConnection cleans up a client connection
func (h *WebSocketHandler) cleanupClientConnection(conn *websocket.Conn) {
	h.mutex.Lock()
	client, exists := h.clients[conn]
	delete(h.clients, conn)
	h.mutex.Unlock()

	if exists {
		slog.Info("stream subscriber disconnected", slog.String("client", client.ID), slog.String("target", client.Target))
	}
	conn.Close()
}

// Clients returns the number of connected subscribers
func (h *WebSocketHandler) Clients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber
func (h *WebSocketHandler) Close() {
	h.cancel()
}

// sendJSON sends a JSON message over WebSocket
func (h *WebSocketHandler) sendJSON(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(h.config.WriteWait))
	return conn.WriteJSON(v)
}
