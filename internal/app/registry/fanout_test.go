package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"marketchat/internal/core/domain"
	"marketchat/internal/core/events"
)

func TestFanoutMessageCreatedEmitsMessageThenUpsert(t *testing.T) {
	reg := NewRegistry(quietLogger(), nil)
	alice := newFakeClient("a", "u1")
	bob := newFakeClient("b", "u2")
	stranger := newFakeClient("s", "u3")
	reg.Join(alice)
	reg.Join(bob)
	reg.Join(stranger)

	fan := NewFanout(reg, quietLogger())
	err := fan.Publish(context.Background(), events.MessageCreated{
		ConversationID:     "c1",
		ParticipantUserIDs: []string{"u1", "u2"},
		Message:            domain.MessagePayload{ID: "m1", Body: "hi", CreatedAt: "2026-01-01T00:00:00.000Z", SenderID: "u1"},
	})
	require.NoError(t, err)

	for _, c := range []*fakeClient{alice, bob} {
		var names []string
		c.mu.Lock()
		for _, f := range c.frames {
			if f.Event != domain.EventPresenceChanged {
				names = append(names, f.Event)
			}
		}
		c.mu.Unlock()
		require.Equal(t, []string{domain.EventMessageCreated, domain.EventConversationUpsert}, names)

		var payload domain.MessageCreatedPayload
		require.NoError(t, json.Unmarshal(c.events(domain.EventMessageCreated)[0], &payload))
		require.Equal(t, "c1", payload.ConversationID)
		require.Equal(t, "m1", payload.Message.ID)
	}
	require.Empty(t, stranger.events(domain.EventMessageCreated))
}

func TestFanoutReadAndPresence(t *testing.T) {
	reg := NewRegistry(quietLogger(), nil)
	alice := newFakeClient("a", "u1")
	other := newFakeClient("o", "u9")
	reg.Join(alice)
	reg.Join(other)
	fan := NewFanout(reg, quietLogger())

	require.NoError(t, fan.Publish(context.Background(), events.ConversationRead{
		ConversationID: "c1", ParticipantUserIDs: []string{"u1"}, UserID: "u2", ReadAt: "2026-01-01T00:00:00.000Z",
	}))
	reads := alice.events(domain.EventConversationRead)
	require.Len(t, reads, 1)
	require.JSONEq(t, `{"conversationId":"c1","userId":"u2","readAt":"2026-01-01T00:00:00.000Z"}`, string(reads[0]))
	require.Empty(t, other.events(domain.EventConversationRead))

	before := len(other.events(domain.EventPresenceChanged))
	require.NoError(t, fan.Publish(context.Background(), events.PresenceChanged{UserID: "u5", IsOnline: true, LastSeenAt: "x"}))
	require.Len(t, other.events(domain.EventPresenceChanged), before+1)
}
