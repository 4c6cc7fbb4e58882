package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"marketchat/internal/core/domain"
)

const DefaultUnreadPollInterval = 20 * time.Second

type UnreadBadgeOptions struct {
	PollInterval time.Duration
	// OnChange receives every applied count.
	OnChange func(count int)
	// OnCue fires for an incoming message from someone else while the messages view is not
	// focused, at most once per conversation until that conversation is read or the view
	// is focused.
	OnCue func(conversationID string)
	Log   *slog.Logger
}

// UnreadBadge tracks the number of conversations with unread messages for one user. The
// count comes from the API; realtime events only trigger refreshes, and a poll covers
// missed events.
type UnreadBadge struct {
	userID string
	fetch  func(ctx context.Context) (int, error)
	opts   UnreadBadgeOptions
	seq    RequestSequencer

	mu       sync.Mutex
	count    int
	focused  bool
	notified map[string]struct{}
}

func NewUnreadBadge(userID string, fetch func(ctx context.Context) (int, error), opts UnreadBadgeOptions) *UnreadBadge {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultUnreadPollInterval
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &UnreadBadge{
		userID:   userID,
		fetch:    fetch,
		opts:     opts,
		notified: make(map[string]struct{}),
	}
}

func (b *UnreadBadge) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Refresh fetches the count. A response overtaken by a later Refresh is dropped, and so
// is a failed one: the previous count stays.
func (b *UnreadBadge) Refresh(ctx context.Context) {
	id := b.seq.Begin()
	n, err := b.fetch(ctx)
	if err != nil {
		b.opts.Log.DebugContext(ctx, "unread badge - refresh - failed", "err", err)
		return
	}
	b.mu.Lock()
	if !b.seq.IsLatest(id) {
		b.mu.Unlock()
		return
	}
	b.count = n
	b.mu.Unlock()
	if b.opts.OnChange != nil {
		b.opts.OnChange(n)
	}
}

// Run refreshes immediately and then on every poll tick until ctx ends.
func (b *UnreadBadge) Run(ctx context.Context) {
	ticker := time.NewTicker(b.opts.PollInterval)
	defer ticker.Stop()
	for {
		b.Refresh(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SetFocused records whether the messages view is visible. Gaining focus clears all cues.
func (b *UnreadBadge) SetFocused(focused bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.focused = focused
	if focused {
		clear(b.notified)
	}
}

func (b *UnreadBadge) HandleMessageCreated(ctx context.Context, p domain.MessageCreatedPayload) {
	go b.Refresh(ctx)
	if p.Message.SenderID == b.userID {
		return
	}
	b.mu.Lock()
	_, already := b.notified[p.ConversationID]
	cue := !b.focused && !already
	if cue {
		b.notified[p.ConversationID] = struct{}{}
	}
	b.mu.Unlock()
	if cue && b.opts.OnCue != nil {
		b.opts.OnCue(p.ConversationID)
	}
}

func (b *UnreadBadge) HandleConversationRead(ctx context.Context, p domain.ConversationReadPayload) {
	go b.Refresh(ctx)
	if p.UserID != b.userID {
		return
	}
	b.mu.Lock()
	delete(b.notified, p.ConversationID)
	b.mu.Unlock()
}

// Attach subscribes the badge to s and returns a function that detaches it.
func (b *UnreadBadge) Attach(s *Session) func() {
	offs := []func(){
		s.On(domain.EventMessageCreated, func(ctx context.Context, data json.RawMessage) {
			var p domain.MessageCreatedPayload
			if json.Unmarshal(data, &p) == nil {
				b.HandleMessageCreated(ctx, p)
			}
		}),
		s.On(domain.EventConversationRead, func(ctx context.Context, data json.RawMessage) {
			var p domain.ConversationReadPayload
			if json.Unmarshal(data, &p) == nil {
				b.HandleConversationRead(ctx, p)
			}
		}),
		s.On(domain.EventConversationUpsert, func(ctx context.Context, _ json.RawMessage) {
			go b.Refresh(ctx)
		}),
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}
