package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"marketchat/internal/core/domain"
)

func (r *ConversationRepo) MarkRead(ctx context.Context, convID, userID string, at time.Time) (time.Time, error) {
	if uuid.Validate(convID) != nil {
		return time.Time{}, domain.ErrConversationNotFound
	}
	readAt, err := r.advanceCursor(ctx, convID, userID, at)
	if isForeignKeyViolation(err) {
		return time.Time{}, domain.ErrConversationNotFound
	}
	if err != nil {
		return time.Time{}, err
	}
	return utc(readAt), nil
}

// advanceCursor upserts the read cursor to max(existing, at). GREATEST ignores the NULL
// of a never-read cursor.
func (r *ConversationRepo) advanceCursor(ctx context.Context, convID, userID string, at time.Time) (time.Time, error) {
	var readAt time.Time
	exec := GetExecutor(ctx, r.db)
	err := exec.QueryRowContext(ctx,
		`INSERT INTO conversation_reads (conversation_id, user_id, last_read_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (conversation_id, user_id)
		DO UPDATE SET last_read_at = GREATEST(conversation_reads.last_read_at, EXCLUDED.last_read_at)
		RETURNING last_read_at`,
		convID, userID, at,
	).Scan(&readAt)
	return readAt, err
}
