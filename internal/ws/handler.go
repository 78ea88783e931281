package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/sonoswidget/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sonoswidget/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/sonoswidget/internal/logging"
	"github.com/GriffinCanCode/sonoswidget/internal/protocol"
	"github.com/GriffinCanCode/sonoswidget/internal/shared/id"
)

const (
	writeWait     = 5 * time.Second
	renderTimeout = 10 * time.Second

	// Client messages are a single small JSON object.
	maxMessageSize = 4 << 10
)

// Renderer produces the widget fragment for a room. base is scheme://host of
// the request.
type Renderer interface {
	Render(ctx context.Context, name, base string) (string, error)
}

// Handler manages widget WebSocket connections
type Handler struct {
	renderer Renderer
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	upgrader websocket.Upgrader

	mu      sync.Mutex
	conns   map[id.ConnID]*websocket.Conn
	closing bool
}

// NewHandler creates a new WebSocket handler
func NewHandler(renderer Renderer, logger *logging.Logger, metrics *monitoring.Metrics) *Handler {
	return &Handler{
		renderer: renderer,
		logger:   logger.Component("ws"),
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			// Widgets are loaded from whatever address the screen was pointed at.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[id.ConnID]*websocket.Conn),
	}
}

// IsUpgrade reports whether r asks for a WebSocket.
func IsUpgrade(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}

// HandleConnection upgrades the request and serves refreshes until the peer
// goes away or sends a non-text frame.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	connID := id.NewConnID()
	if !h.add(connID, conn) {
		conn.Close()
		return
	}
	defer h.remove(connID)
	conn.SetReadLimit(maxMessageSize)

	log := h.logger.With(
		zap.String("conn", connID.String()),
		zap.String("trace_id", string(tracing.GetTraceID(c.Request.Context()))),
	)
	log.Info("Client connected", zap.String("remote", c.ClientIP()))

	base := baseURL(c.Request)
	ctx := c.Request.Context()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("WebSocket read error", zap.Error(err))
			}
			break
		}
		if msgType != websocket.TextMessage {
			log.Debug("Non-text frame, closing")
			break
		}

		if err := h.handleMessage(ctx, conn, log, base, data); err != nil {
			log.Warn("Write failed", zap.Error(err))
			break
		}
	}

	log.Info("Client disconnected")
}

// handleMessage answers one client message. Only write errors are returned.
func (h *Handler) handleMessage(ctx context.Context, conn *websocket.Conn, log *zap.Logger, base string, data []byte) error {
	req, err := protocol.DecodeRequest(data)
	switch {
	case errors.Is(err, protocol.ErrMissingAction), errors.Is(err, protocol.ErrMissingTarget):
		h.metrics.RecordWSMessage("in", "ignored")
		log.Debug("Ignoring message", zap.Error(err))
		return nil
	case err != nil:
		h.metrics.RecordWSMessage("in", "malformed")
		log.Warn("Malformed message", zap.Error(err))
		return nil
	}

	log.Info("Message from client", zap.String("action", req.Action), zap.String("target", req.Target))

	if req.Action != protocol.ActionRefresh {
		h.metrics.RecordWSMessage("in", "ignored")
		return nil
	}
	h.metrics.RecordWSMessage("in", protocol.ActionRefresh)

	renderCtx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()

	html, err := h.renderer.Render(renderCtx, req.Target, base)
	if err != nil {
		log.Error("Failed to render widget", zap.String("target", req.Target), zap.Error(err))
		return nil
	}

	payload, err := protocol.EncodeUpdate(html)
	if err != nil {
		log.Error("Failed to encode update", zap.Error(err))
		return nil
	}

	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return err
	}
	h.metrics.RecordWSMessage("out", "update")
	log.Debug("Sent update", zap.Int("bytes", len(payload)))
	return nil
}

// Count returns the number of open connections.
func (h *Handler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// CloseAll closes every open connection and refuses new ones.
func (h *Handler) CloseAll() {
	h.mu.Lock()
	h.closing = true
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for _, conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	deadline := time.Now().Add(time.Second)
	for _, conn := range conns {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		conn.Close()
	}
	h.logger.Info("Closed WebSocket connections", zap.Int("count", len(conns)))
}

func (h *Handler) add(connID id.ConnID, conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.conns[connID] = conn
	h.metrics.IncWSConnections()
	return true
}

func (h *Handler) remove(connID id.ConnID) {
	h.mu.Lock()
	conn, ok := h.conns[connID]
	delete(h.conns, connID)
	h.mu.Unlock()

	if ok {
		conn.Close()
		h.metrics.DecWSConnections()
	}
}

// baseURL is the scheme://host the client reached us on.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return scheme + "://" + r.Host
}
