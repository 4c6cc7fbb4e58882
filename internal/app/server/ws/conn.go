package ws

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"marketchat/pkg/logging"
)

type Options struct {
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxMessageBytes int64
}

func DefaultOptions() Options {
	return Options{
		PingInterval:    25 * time.Second,
		PongWait:        60 * time.Second,
		WriteWait:       10 * time.Second,
		MaxMessageBytes: 64 * 1024,
	}
}

// WebSocket wraps a gorilla connection with deadlines and keepalive. ReadLoop must be
// called from one goroutine and the write methods from one other goroutine.
type WebSocket struct {
	*websocket.Conn
	opts      Options
	log       *slog.Logger
	closeOnce sync.Once
}

func NewWebSocket(conn *websocket.Conn, opts Options, log *slog.Logger) *WebSocket {
	if log == nil {
		log = slog.Default()
	}
	return &WebSocket{Conn: conn, opts: opts, log: log}
}

func (w *WebSocket) WriteMessage(data []byte) error {
	_ = w.Conn.SetWriteDeadline(time.Now().Add(w.opts.WriteWait))
	return w.Conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WebSocket) WritePing() error {
	return w.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.opts.WriteWait))
}

// ReadLoop delivers text frames to onMsg until the peer goes away or misses the pong deadline.
func (w *WebSocket) ReadLoop(onMsg func([]byte)) {
	defer w.Close()

	w.Conn.SetReadLimit(w.opts.MaxMessageBytes)
	_ = w.Conn.SetReadDeadline(time.Now().Add(w.opts.PongWait))
	w.Conn.SetPongHandler(func(string) error {
		return w.Conn.SetReadDeadline(time.Now().Add(w.opts.PongWait))
	})

	for {
		kind, data, err := w.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				w.log.Warn("ws - read loop - unexpected close", logging.Err(err))
			}
			return
		}
		if kind == websocket.TextMessage && len(data) > 0 {
			onMsg(data)
		}
	}
}

// Close sends a close frame when possible and closes the socket. Safe to call repeatedly.
func (w *WebSocket) Close() {
	w.closeOnce.Do(func() {
		_ = w.Conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = w.Conn.Close()
	})
}
