package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"marketchat/internal/config"
	"marketchat/internal/core/domain"
)

// openTestDB connects to CHAT_TEST_DATABASE_URL and migrates it. Tests use fresh
// random user ids so they can share one database.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("CHAT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CHAT_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := New(ctx, &config.PostgresConfig{DSN: dsn, PingTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(ctx, db))
	return db
}

func newUser(t *testing.T, users *UserRepo, name string) string {
	t.Helper()
	id := name + "-" + uuid.NewString()[:8]
	require.NoError(t, users.UpsertUser(context.Background(), domain.User{ID: id, Name: name, IsActive: true}))
	return id
}

func TestConversationRepoUpsertIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	repo := NewConversationRepo(db)
	users := NewUserRepo(db)
	ctx := context.Background()
	a, b := newUser(t, users, "a"), newUser(t, users, "b")

	first, err := repo.UpsertConversation(ctx, a, b)
	require.NoError(t, err)
	second, err := repo.UpsertConversation(ctx, b, a)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	got, err := repo.GetConversation(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, got.HasParticipant(a))
	require.True(t, got.HasParticipant(b))

	_, err = repo.GetConversation(ctx, uuid.NewString())
	require.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestConversationRepoMessagesAndUnread(t *testing.T) {
	db := openTestDB(t)
	repo := NewConversationRepo(db)
	users := NewUserRepo(db)
	ctx := context.Background()
	a, b := newUser(t, users, "a"), newUser(t, users, "b")

	conv, err := repo.UpsertConversation(ctx, a, b)
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 4; i++ {
		m, err := repo.AppendMessage(ctx, conv.ID, a, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	msgs, err := repo.ListMessages(ctx, conv.ID, nil, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	for i, m := range msgs {
		require.Equal(t, ids[i], m.ID)
		if i > 0 {
			require.False(t, m.CreatedAt.Before(msgs[i-1].CreatedAt))
		}
	}

	latest, err := repo.ListMessages(ctx, conv.ID, nil, 2)
	require.NoError(t, err)
	require.Equal(t, []string{ids[2], ids[3]}, []string{latest[0].ID, latest[1].ID})

	after := msgs[1].CreatedAt
	newer, err := repo.ListMessages(ctx, conv.ID, &after, 0)
	require.NoError(t, err)
	for _, m := range newer {
		require.True(t, m.CreatedAt.After(after))
	}

	count, err := repo.UnreadConversationCount(ctx, b)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	count, err = repo.UnreadConversationCount(ctx, a)
	require.NoError(t, err)
	require.Equal(t, 0, count)

	readAt, err := repo.MarkRead(ctx, conv.ID, b, msgs[3].CreatedAt)
	require.NoError(t, err)
	require.True(t, readAt.Equal(msgs[3].CreatedAt))

	// an older read never moves the cursor back
	stale, err := repo.MarkRead(ctx, conv.ID, b, msgs[0].CreatedAt.Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, stale.Equal(readAt))

	count, err = repo.UnreadConversationCount(ctx, b)
	require.NoError(t, err)
	require.Equal(t, 0, count)

	sums, err := repo.ListConversationsForUser(ctx, b, 10)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	require.Equal(t, ids[3], sums[0].LastMessage.ID)
}

func TestConversationRepoMarkReadUnknownConversation(t *testing.T) {
	db := openTestDB(t)
	repo := NewConversationRepo(db)

	_, err := repo.MarkRead(context.Background(), uuid.NewString(), "someone", time.Now())
	require.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestUserRepoLastSeenOnlyMovesForward(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepo(db)
	ctx := context.Background()
	id := newUser(t, users, "seen")

	got, err := users.LastSeen(ctx, []string{id})
	require.NoError(t, err)
	require.Empty(t, got)

	later := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, users.Touch(ctx, id, later))
	require.NoError(t, users.Touch(ctx, id, later.Add(-time.Minute)))

	got, err = users.LastSeen(ctx, []string{id})
	require.NoError(t, err)
	require.True(t, got[id].Equal(later))

	u, err := users.GetUser(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "seen", u.Name)
	_, err = users.GetUser(ctx, "missing-"+uuid.NewString())
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}
