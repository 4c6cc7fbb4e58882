package client

import (
	"context"
	"sync"
)

// Pool keeps one running session per process. Asking for a different URL replaces the
// session; asking for the same one returns it unchanged.
type Pool struct {
	mu      sync.Mutex
	session *Session
	cancel  context.CancelFunc
}

func NewPool() *Pool {
	return &Pool{}
}

// Get returns the shared session for url, starting it under ctx when it is new or the
// previous one has stopped.
func (p *Pool) Get(ctx context.Context, url string, tokens TokenSource, opts Options) *Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session != nil && p.session.URL() == url && p.session.Err() == nil {
		return p.session
	}
	p.closeLocked()

	s := NewSession(url, tokens, opts)
	runCtx, cancel := context.WithCancel(ctx)
	p.session, p.cancel = s, cancel
	go func() { _ = s.Run(runCtx) }()
	return s
}

// Close stops the current session and waits for it to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}

func (p *Pool) closeLocked() {
	if p.session == nil {
		return
	}
	p.cancel()
	<-p.session.Done()
	p.session, p.cancel = nil, nil
}
