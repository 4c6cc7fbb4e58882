package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketchat/internal/core/domain"
)

func TestRequestSequencerKeepsOnlyLatest(t *testing.T) {
	var s RequestSequencer
	first := s.Begin()
	second := s.Begin()
	require.False(t, s.IsLatest(first))
	require.True(t, s.IsLatest(second))
}

func TestUnreadBadgeDropsStaleResponse(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(context.Context) (int, error) {
		if calls.Add(1) == 1 {
			<-release // the first request answers last
			return 7, nil
		}
		return 2, nil
	}
	b := NewUnreadBadge("me", fetch, UnreadBadgeOptions{})
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Refresh(ctx)
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	b.Refresh(ctx)
	require.Equal(t, 2, b.Count())

	close(release)
	wg.Wait()
	require.Equal(t, 2, b.Count())
}

func TestUnreadBadgeKeepsCountOnError(t *testing.T) {
	fail := false
	b := NewUnreadBadge("me", func(context.Context) (int, error) {
		if fail {
			return 0, errors.New("offline")
		}
		return 3, nil
	}, UnreadBadgeOptions{})

	b.Refresh(context.Background())
	fail = true
	b.Refresh(context.Background())
	require.Equal(t, 3, b.Count())
}

func TestUnreadBadgeCuesOncePerConversation(t *testing.T) {
	var mu sync.Mutex
	var cues []string
	b := NewUnreadBadge("me", func(context.Context) (int, error) { return 1, nil }, UnreadBadgeOptions{
		OnCue: func(id string) {
			mu.Lock()
			defer mu.Unlock()
			cues = append(cues, id)
		},
	})
	ctx := context.Background()
	incoming := func(conv, sender string) domain.MessageCreatedPayload {
		return domain.MessageCreatedPayload{ConversationID: conv, Message: domain.MessagePayload{ID: "m", SenderID: sender}}
	}
	got := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), cues...)
	}

	b.HandleMessageCreated(ctx, incoming("c1", "them"))
	b.HandleMessageCreated(ctx, incoming("c1", "them"))
	b.HandleMessageCreated(ctx, incoming("c2", "them"))
	b.HandleMessageCreated(ctx, incoming("c3", "me"))
	require.Equal(t, []string{"c1", "c2"}, got())

	// reading c1 re-arms it; someone else's read does not
	b.HandleConversationRead(ctx, domain.ConversationReadPayload{ConversationID: "c2", UserID: "them"})
	b.HandleConversationRead(ctx, domain.ConversationReadPayload{ConversationID: "c1", UserID: "me"})
	b.HandleMessageCreated(ctx, incoming("c1", "them"))
	b.HandleMessageCreated(ctx, incoming("c2", "them"))
	require.Equal(t, []string{"c1", "c2", "c1"}, got())

	// no cues while focused, and focus clears what was cued
	b.SetFocused(true)
	b.HandleMessageCreated(ctx, incoming("c1", "them"))
	b.SetFocused(false)
	b.HandleMessageCreated(ctx, incoming("c2", "them"))
	require.Equal(t, []string{"c1", "c2", "c1", "c2"}, got())

	require.Eventually(t, func() bool { return b.Count() == 1 }, time.Second, time.Millisecond)
}

func TestUnreadBadgeRunPolls(t *testing.T) {
	var calls atomic.Int32
	b := NewUnreadBadge("me", func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}, UnreadBadgeOptions{PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	<-done
}

func TestRunHeartbeatBeatsImmediatelyAndRepeats(t *testing.T) {
	var beats atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunHeartbeat(ctx, 10*time.Millisecond, func(context.Context) error {
			if beats.Add(1) == 2 {
				return errors.New("transient")
			}
			return nil
		}, nil)
		close(done)
	}()
	require.Eventually(t, func() bool { return beats.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	<-done
}
