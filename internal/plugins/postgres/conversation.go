package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"marketchat/internal/core/domain"
)

// ConversationRepo is the Postgres conversation store. Every multi-statement operation
// runs in one transaction through TxManager.
type ConversationRepo struct {
	db *sql.DB
	tx *TxManager
}

var _ domain.ConversationStore = (*ConversationRepo)(nil)

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db, tx: NewTxManager(db)}
}

func (r *ConversationRepo) UpsertConversation(ctx context.Context, userAID, userBID string) (*domain.Conversation, error) {
	one, two := domain.NormalizePair(userAID, userBID)
	conv := &domain.Conversation{}

	err := r.tx.WithTx(ctx, func(ctx context.Context) error {
		exec := GetExecutor(ctx, r.db)
		// DO UPDATE (not DO NOTHING) so RETURNING yields the existing row too.
		err := exec.QueryRowContext(ctx,
			`INSERT INTO conversations (id, user_one_id, user_two_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_one_id, user_two_id) DO UPDATE SET user_one_id = EXCLUDED.user_one_id
			RETURNING id, user_one_id, user_two_id, last_message_at, created_at`,
			uuid.NewString(), one, two,
		).Scan(&conv.ID, &conv.UserOneID, &conv.UserTwoID, &conv.LastMessageAt, &conv.CreatedAt)
		if err != nil {
			return err
		}
		_, err = exec.ExecContext(ctx,
			`INSERT INTO conversation_reads (conversation_id, user_id)
			VALUES ($1, $2), ($1, $3)
			ON CONFLICT (conversation_id, user_id) DO NOTHING`,
			conv.ID, one, two,
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (r *ConversationRepo) GetConversation(ctx context.Context, convID string) (*domain.Conversation, error) {
	if uuid.Validate(convID) != nil {
		return nil, domain.ErrConversationNotFound
	}
	conv := &domain.Conversation{}
	exec := GetExecutor(ctx, r.db)
	err := exec.QueryRowContext(ctx,
		`SELECT id, user_one_id, user_two_id, last_message_at, created_at
		FROM conversations WHERE id = $1`,
		convID,
	).Scan(&conv.ID, &conv.UserOneID, &conv.UserTwoID, &conv.LastMessageAt, &conv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (r *ConversationRepo) ListConversationsForUser(ctx context.Context, userID string, limit int) ([]domain.ConversationSummary, error) {
	return r.summaries(ctx, userID, limit)
}

func (r *ConversationRepo) UnreadConversationCount(ctx context.Context, userID string) (int, error) {
	sums, err := r.summaries(ctx, userID, 0)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, sum := range sums {
		if sum.HasUnread {
			n++
		}
	}
	return n, nil
}

// summaries loads each conversation of userID with its latest message and the user's cursor.
// The unread predicate itself is domain.HasUnread so both stores agree on it.
func (r *ConversationRepo) summaries(ctx context.Context, userID string, limit int) ([]domain.ConversationSummary, error) {
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx,
		`SELECT c.id, c.user_one_id, c.user_two_id, c.last_message_at, c.created_at,
			rs.last_read_at,
			m.id, m.sender_id, m.body, m.created_at
		FROM conversations c
		LEFT JOIN conversation_reads rs ON rs.conversation_id = c.id AND rs.user_id = $1
		LEFT JOIN LATERAL (
			SELECT id, sender_id, body, created_at
			FROM conversation_messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC, seq DESC
			LIMIT 1
		) m ON TRUE
		WHERE c.user_one_id = $1 OR c.user_two_id = $1
		ORDER BY c.last_message_at DESC, c.id
		LIMIT NULLIF($2::int, 0)`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ConversationSummary, 0)
	for rows.Next() {
		var (
			sum        domain.ConversationSummary
			lastReadAt sql.NullTime
			msgID      sql.NullString
			senderID   sql.NullString
			body       sql.NullString
			createdAt  sql.NullTime
		)
		c := &sum.Conversation
		if err := rows.Scan(&c.ID, &c.UserOneID, &c.UserTwoID, &c.LastMessageAt, &c.CreatedAt,
			&lastReadAt, &msgID, &senderID, &body, &createdAt); err != nil {
			return nil, err
		}
		if lastReadAt.Valid {
			at := lastReadAt.Time.UTC()
			sum.LastReadAt = &at
		}
		if msgID.Valid {
			sum.LastMessage = &domain.Message{
				ID:             msgID.String,
				ConversationID: c.ID,
				SenderID:       senderID.String,
				Body:           body.String,
				CreatedAt:      createdAt.Time.UTC(),
			}
		}
		c.LastMessageAt = c.LastMessageAt.UTC()
		c.CreatedAt = c.CreatedAt.UTC()
		sum.HasUnread = domain.HasUnread(userID, sum.LastMessage, sum.LastReadAt)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func utc(t time.Time) time.Time { return t.UTC() }
