package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"marketchat/internal/core/domain"
)

var (
	// ErrSessionExpired ends Run when the gateway refuses a freshly fetched token too.
	ErrSessionExpired = errors.New("client: session expired")
	ErrNotConnected   = errors.New("client: not connected")

	errUnauthorized = errors.New("client: gateway refused token")
)

// TokenSource returns a WebSocket token. It is called for the first connect and again after
// the gateway answers 401.
type TokenSource func(ctx context.Context) (string, error)

// Handler receives the data of one server event.
type Handler func(ctx context.Context, data json.RawMessage)

type Status int

const (
	StatusConnecting Status = iota
	StatusConnected
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

type Options struct {
	Dialer *websocket.Dialer
	// Reconnect delays grow from InitialInterval to MaxInterval and retry forever.
	InitialInterval time.Duration
	MaxInterval     time.Duration
	PongWait        time.Duration
	OnStatus        func(Status)
	Log             *slog.Logger
}

func (o *Options) withDefaults() {
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = 500 * time.Millisecond
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = 5 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.Log == nil {
		o.Log = slog.Default()
	}
}

type subscription struct {
	id int
	fn Handler
}

// Session is a reconnecting connection to the chat gateway. Handlers run on the read
// goroutine in frame order and must not block for long.
type Session struct {
	url    string
	tokens TokenSource
	opts   Options

	mu       sync.RWMutex
	handlers map[string][]subscription
	nextID   int
	conn     *websocket.Conn
	token    string

	writeMu sync.Mutex

	done chan struct{}
	err  error
}

func NewSession(url string, tokens TokenSource, opts Options) *Session {
	opts.withDefaults()
	return &Session{
		url:      url,
		tokens:   tokens,
		opts:     opts,
		handlers: make(map[string][]subscription),
		done:     make(chan struct{}),
	}
}

func (s *Session) URL() string { return s.url }

// On registers h for event and returns a function that removes it.
func (s *Session) On(event string, h Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.handlers[event] = append(s.handlers[event], subscription{id: id, fn: h})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.handlers[event]
		for i, sub := range subs {
			if sub.id == id {
				s.handlers[event] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn != nil
}

// Emit sends a client frame on the current connection.
func (s *Session) Emit(event string, data any) error {
	frame, err := domain.NewFrame(event, data)
	if err != nil {
		return err
	}
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// RequestSnapshot asks the gateway for the current online-user set.
func (s *Session) RequestSnapshot() error {
	return s.Emit(domain.EventPresenceSnapshotRequest, struct{}{})
}

// Done is closed when Run returns; Err then reports why.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Run connects and keeps reconnecting until ctx ends or the session expires. A 401 is
// answered once by fetching a new token; a second consecutive 401 returns ErrSessionExpired.
func (s *Session) Run(ctx context.Context) error {
	err := s.run(ctx)
	s.err = err
	close(s.done)
	s.status(StatusDisconnected)
	return err
}

func (s *Session) run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.InitialInterval
	b.MaxInterval = s.opts.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()

	refreshed := false
	for {
		s.status(StatusConnecting)
		conn, err := s.connect(ctx)
		switch {
		case err == nil:
			b.Reset()
			refreshed = false
			s.serve(ctx, conn)
			s.status(StatusDisconnected)
		case errors.Is(err, errUnauthorized):
			if refreshed {
				return ErrSessionExpired
			}
			refreshed = true
			s.setToken("")
			continue
		case errors.Is(err, ErrSessionExpired):
			return err
		default:
			s.opts.Log.Debug("client session - connect - failed", "err", err)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait := b.NextBackOff()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Session) connect(ctx context.Context) (*websocket.Conn, error) {
	token, err := s.currentToken(ctx)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := s.opts.Dialer.DialContext(ctx, s.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, errUnauthorized
		}
		return nil, fmt.Errorf("dial: %w", err)
	}
	return conn, nil
}

func (s *Session) currentToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token != "" {
		return token, nil
	}
	token, err := s.tokens(ctx)
	if err != nil {
		return "", fmt.Errorf("token: %w", err)
	}
	s.setToken(token)
	return token, nil
}

func (s *Session) setToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *Session) serve(ctx context.Context, conn *websocket.Conn) {
	pongWait := s.opts.PongWait
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.status(StatusConnected)

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var frame domain.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			var syntax *json.SyntaxError
			if errors.As(err, &syntax) {
				continue
			}
			s.opts.Log.Debug("client session - read - connection ended", "err", err)
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		s.dispatch(ctx, frame)
	}

	close(stop)
	s.mu.Lock()
	s.conn = nil
	s.mu.Unlock()
	conn.Close()
}

func (s *Session) dispatch(ctx context.Context, frame domain.Frame) {
	s.mu.RLock()
	subs := append([]subscription(nil), s.handlers[frame.Event]...)
	s.mu.RUnlock()
	for _, sub := range subs {
		sub.fn(ctx, frame.Data)
	}
}

func (s *Session) status(st Status) {
	if s.opts.OnStatus != nil {
		s.opts.OnStatus(st)
	}
}
