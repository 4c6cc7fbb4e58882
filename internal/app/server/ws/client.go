package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketchat/internal/core/contracts"
	"marketchat/internal/core/domain"
	"marketchat/pkg/logging"
)

// RuntimeClient is one joined gateway connection. Outbound frames go through a bounded
// queue drained by a single writer goroutine that also sends keepalive pings.
type RuntimeClient struct {
	id     string
	userID string
	ws     *WebSocket
	out    chan []byte
	done   chan struct{}
	once   sync.Once
	log    *slog.Logger
}

var _ contracts.Client = (*RuntimeClient)(nil)

func NewClient(ws *WebSocket, userID string, buffer int, log *slog.Logger) *RuntimeClient {
	if buffer <= 0 {
		buffer = 256
	}
	if log == nil {
		log = slog.Default()
	}
	id := uuid.NewString()
	c := &RuntimeClient{
		id:     id,
		userID: userID,
		ws:     ws,
		out:    make(chan []byte, buffer),
		done:   make(chan struct{}),
		log:    log.With(logging.User(userID), logging.Client(id)),
	}
	go c.writeLoop()
	return c
}

func (c *RuntimeClient) ID() string     { return c.id }
func (c *RuntimeClient) UserID() string { return c.userID }

// Done is closed once the client is closed.
func (c *RuntimeClient) Done() <-chan struct{} { return c.done }

func (c *RuntimeClient) Send(ctx context.Context, data []byte) error {
	select {
	case <-c.done:
		return domain.ErrClientClosed
	default:
	}
	select {
	case c.out <- data:
		return nil
	case <-c.done:
		return domain.ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
		return domain.ErrSlowConsumer
	}
}

func (c *RuntimeClient) Close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// Run reads inbound frames until the connection ends, then closes the client.
func (c *RuntimeClient) Run(onMsg func([]byte)) {
	defer c.Close()
	c.ws.ReadLoop(onMsg)
}

func (c *RuntimeClient) writeLoop() {
	ticker := time.NewTicker(c.ws.opts.PingInterval)
	defer ticker.Stop()
	defer c.Close()
	for {
		select {
		case <-c.done:
			return
		case data := <-c.out:
			if err := c.ws.WriteMessage(data); err != nil {
				c.log.Debug("ws client - write loop - write failed", logging.Err(err))
				return
			}
		case <-ticker.C:
			if err := c.ws.WritePing(); err != nil {
				c.log.Debug("ws client - write loop - ping failed", logging.Err(err))
				return
			}
		}
	}
}
