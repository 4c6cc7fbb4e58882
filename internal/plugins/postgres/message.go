package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"marketchat/internal/core/domain"
)

// AppendMessage locks the conversation row, so appends to one conversation are serialized
// and created_at = GREATEST(clock, last_message_at) never goes backwards.
func (r *ConversationRepo) AppendMessage(ctx context.Context, convID, senderID, body string) (*domain.Message, error) {
	if uuid.Validate(convID) != nil {
		return nil, domain.ErrConversationNotFound
	}
	msg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: convID,
		SenderID:       senderID,
		Body:           body,
	}

	err := r.tx.WithTx(ctx, func(ctx context.Context) error {
		exec := GetExecutor(ctx, r.db)
		err := exec.QueryRowContext(ctx,
			`UPDATE conversations
			SET last_message_at = GREATEST(clock_timestamp(), last_message_at)
			WHERE id = $1
			RETURNING last_message_at`,
			convID,
		).Scan(&msg.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrConversationNotFound
		}
		if err != nil {
			return err
		}
		if _, err := exec.ExecContext(ctx,
			`INSERT INTO conversation_messages (id, conversation_id, sender_id, body, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			msg.ID, convID, senderID, body, msg.CreatedAt,
		); err != nil {
			return err
		}
		_, err = r.advanceCursor(ctx, convID, senderID, msg.CreatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	msg.CreatedAt = utc(msg.CreatedAt)
	return msg, nil
}

func (r *ConversationRepo) ListMessages(ctx context.Context, convID string, after *time.Time, limit int) ([]domain.Message, error) {
	if uuid.Validate(convID) != nil {
		return nil, domain.ErrConversationNotFound
	}
	exec := GetExecutor(ctx, r.db)

	var (
		rows *sql.Rows
		err  error
	)
	if after == nil {
		// latest page, returned oldest first
		rows, err = exec.QueryContext(ctx,
			`SELECT id, conversation_id, sender_id, body, created_at FROM (
				SELECT id, conversation_id, sender_id, body, created_at, seq
				FROM conversation_messages
				WHERE conversation_id = $1
				ORDER BY created_at DESC, seq DESC
				LIMIT NULLIF($2::int, 0)
			) recent
			ORDER BY created_at, seq`,
			convID, limit,
		)
	} else {
		rows, err = exec.QueryContext(ctx,
			`SELECT id, conversation_id, sender_id, body, created_at
			FROM conversation_messages
			WHERE conversation_id = $1 AND created_at > $2
			ORDER BY created_at, seq
			LIMIT NULLIF($3::int, 0)`,
			convID, *after, limit,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Message, 0)
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.CreatedAt = utc(m.CreatedAt)
		out = append(out, m)
	}
	return out, rows.Err()
}
