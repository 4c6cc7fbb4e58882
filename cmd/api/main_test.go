package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"marketchat/internal/config"
	"marketchat/internal/core/domain"
	"marketchat/internal/core/services"
)

func TestInMemoryBackendsStartConversationWithSeededUsers(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		Postgres:  &config.PostgresConfig{},
		Redis:     &config.RedisConfig{},
		RateLimit: &config.RateLimitConfig{MessagesPerMinute: 30},
	}

	infra, err := openBackends(ctx, cfg, log)
	require.NoError(t, err)
	defer infra.Close()

	chat := services.NewChatService(services.ChatDeps{
		Store:    infra.store,
		Users:    infra.users,
		LastSeen: infra.lastSeen,
		Limiter:  infra.limiter,
		Log:      log,
	})
	defer chat.Close()

	_, err = chat.StartConversation(ctx, "alice", "bob")
	require.ErrorIs(t, err, domain.ErrRecipientUnavailable)

	require.NoError(t, seedUsers(ctx, infra.seed, []config.SeedUser{
		{ID: "alice", Name: "Alice"},
		{ID: "bob", Name: "Bob"},
	}, log))

	convID, err := chat.StartConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	require.NotEmpty(t, convID)

	again, err := chat.StartConversation(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Equal(t, convID, again)

	bob, err := infra.users.GetUser(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, "Bob", bob.Name)
	require.True(t, bob.IsActive)
}
