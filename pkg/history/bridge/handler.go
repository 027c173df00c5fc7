package bridge

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Defaults for Handler.
const (
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
)

// Handler upgrades requests to WebSocket connections and runs one Remote
// per connection.
type Handler struct {
	// OnConnect runs once the browser said hello, before events are read.
	OnConnect func(r *Remote)

	// OnDisconnect runs after the connection ended.
	OnDisconnect func(r *Remote)

	// CheckOrigin is passed to the upgrader. Nil allows same-origin only.
	CheckOrigin func(r *http.Request) bool

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	// ReadTimeout closes idle connections. Zero disables it.
	ReadTimeout time.Duration

	Logger *slog.Logger
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default().With("component", "bridge")
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// ServeHTTP blocks for the lifetime of the connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	logger := h.logger()
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.CheckOrigin,
	}
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		logger.Warn("upgrade failed", "error", err)
		return
	}

	conn.SetReadDeadline(time.Now().Add(orDefault(h.HandshakeTimeout, DefaultHandshakeTimeout)))
	_, data, err := conn.ReadMessage()
	if err != nil {
		logger.Warn("handshake read failed", "error", err)
		conn.Close()
		return
	}
	var hello Message
	if err := json.Unmarshal(data, &hello); err != nil || hello.Op != OpHello {
		logger.Warn("handshake rejected", "op", hello.Op, "error", err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseProtocolError, "expected hello"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}
	conn.SetReadDeadline(time.Time{})

	r := newRemote(conn, hello, orDefault(h.WriteTimeout, DefaultWriteTimeout), logger)
	r.logger.Info("browser connected", "url", r.url, "native", r.native, "remote_addr", req.RemoteAddr)

	if h.OnConnect != nil {
		h.OnConnect(r)
	}
	r.readLoop(h.ReadTimeout)
	r.logger.Info("browser disconnected")
	if h.OnDisconnect != nil {
		h.OnDisconnect(r)
	}
}
