package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketchat/internal/core/contracts"
	"marketchat/internal/core/domain"
)

type cursorKey struct {
	conversationID string
	userID         string
}

// Store keeps conversations, messages, read cursors, users and last-seen in-process.
// It backs local runs and tests; every method is atomic under one lock.
type Store struct {
	mu            sync.RWMutex
	now           func() time.Time
	users         map[string]domain.User
	conversations map[string]*domain.Conversation
	byPair        map[[2]string]string
	messages      map[string][]domain.Message
	cursors       map[cursorKey]*time.Time
	lastSeen      map[string]time.Time
}

var (
	_ domain.ConversationStore = (*Store)(nil)
	_ domain.UserDirectory     = (*Store)(nil)
	_ contracts.LastSeenStore  = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		now:           time.Now,
		users:         make(map[string]domain.User),
		conversations: make(map[string]*domain.Conversation),
		byPair:        make(map[[2]string]string),
		messages:      make(map[string][]domain.Message),
		cursors:       make(map[cursorKey]*time.Time),
		lastSeen:      make(map[string]time.Time),
	}
}

// WithClock replaces the time source used for message and conversation timestamps.
func (m *Store) WithClock(now func() time.Time) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

// PutUser stores or replaces a user record.
func (m *Store) PutUser(u domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// UpsertUser is PutUser with the signature the Postgres user repo shares.
func (m *Store) UpsertUser(_ context.Context, u domain.User) error {
	m.PutUser(u)
	return nil
}

func (m *Store) GetUser(_ context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (m *Store) GetUsers(_ context.Context, ids []string) (map[string]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]domain.User, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (m *Store) UpsertConversation(_ context.Context, userAID, userBID string) (*domain.Conversation, error) {
	one, two := domain.NormalizePair(userAID, userBID)
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byPair[[2]string{one, two}]; ok {
		c := *m.conversations[id]
		return &c, nil
	}
	conv := domain.NewConversation(one, two, m.now().UTC())
	m.conversations[conv.ID] = conv
	m.byPair[[2]string{one, two}] = conv.ID
	for _, uid := range conv.ParticipantIDs() {
		m.cursors[cursorKey{conv.ID, uid}] = nil
	}
	c := *conv
	return &c, nil
}

func (m *Store) GetConversation(_ context.Context, convID string) (*domain.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.conversations[convID]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	c := *conv
	return &c, nil
}

func (m *Store) AppendMessage(_ context.Context, convID, senderID, body string) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[convID]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}

	createdAt := m.now().UTC()
	if createdAt.Before(conv.LastMessageAt) {
		createdAt = conv.LastMessageAt
	}
	msg := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: convID,
		SenderID:       senderID,
		Body:           body,
		CreatedAt:      createdAt,
	}
	m.messages[convID] = append(m.messages[convID], msg)
	conv.LastMessageAt = createdAt
	m.advanceCursor(convID, senderID, createdAt)
	return &msg, nil
}

func (m *Store) ListMessages(_ context.Context, convID string, after *time.Time, limit int) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.conversations[convID]; !ok {
		return nil, domain.ErrConversationNotFound
	}
	all := m.messages[convID]

	if after == nil {
		if limit > 0 && len(all) > limit {
			all = all[len(all)-limit:]
		}
		return append([]domain.Message(nil), all...), nil
	}

	out := make([]domain.Message, 0)
	for _, msg := range all {
		if msg.CreatedAt.After(*after) {
			out = append(out, msg)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Store) MarkRead(_ context.Context, convID, userID string, at time.Time) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conversations[convID]; !ok {
		return time.Time{}, domain.ErrConversationNotFound
	}
	return m.advanceCursor(convID, userID, at.UTC()), nil
}

func (m *Store) ListConversationsForUser(_ context.Context, userID string, limit int) ([]domain.ConversationSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.summariesLocked(userID)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Store) UnreadConversationCount(_ context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, sum := range m.summariesLocked(userID) {
		if sum.HasUnread {
			n++
		}
	}
	return n, nil
}

func (m *Store) Touch(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.lastSeen[userID]; !ok || at.After(prev) {
		m.lastSeen[userID] = at.UTC()
	}
	return nil
}

func (m *Store) LastSeen(_ context.Context, userIDs []string) (map[string]time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]time.Time, len(userIDs))
	for _, id := range userIDs {
		if at, ok := m.lastSeen[id]; ok {
			out[id] = at
		}
	}
	return out, nil
}

// advanceCursor sets the cursor to max(existing, at) and returns the stored value.
func (m *Store) advanceCursor(convID, userID string, at time.Time) time.Time {
	key := cursorKey{convID, userID}
	if cur := m.cursors[key]; cur != nil && !cur.Before(at) {
		return *cur
	}
	m.cursors[key] = &at
	return at
}

func (m *Store) summariesLocked(userID string) []domain.ConversationSummary {
	out := make([]domain.ConversationSummary, 0)
	for _, conv := range m.conversations {
		if !conv.HasParticipant(userID) {
			continue
		}
		sum := domain.ConversationSummary{Conversation: *conv}
		if msgs := m.messages[conv.ID]; len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			sum.LastMessage = &last
		}
		if cur := m.cursors[cursorKey{conv.ID, userID}]; cur != nil {
			at := *cur
			sum.LastReadAt = &at
		}
		sum.HasUnread = domain.HasUnread(userID, sum.LastMessage, sum.LastReadAt)
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Conversation, out[j].Conversation
		if !a.LastMessageAt.Equal(b.LastMessageAt) {
			return a.LastMessageAt.After(b.LastMessageAt)
		}
		return a.ID < b.ID
	})
	return out
}
