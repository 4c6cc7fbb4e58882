package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"marketchat/internal/core/contracts"
	"marketchat/internal/core/domain"
)

// UserRepo reads identities from the account service's users table and maintains
// users.last_seen_at, the persisted fallback presence signal.
type UserRepo struct {
	db *sql.DB
}

var (
	_ domain.UserDirectory    = (*UserRepo)(nil)
	_ contracts.LastSeenStore = (*UserRepo)(nil)
)

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u := &domain.User{}
	var image sql.NullString
	exec := GetExecutor(ctx, r.db)
	err := exec.QueryRowContext(ctx,
		`SELECT id, name, image, is_active, is_blocked FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &image, &u.IsActive, &u.IsBlocked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if image.Valid {
		u.Image = &image.String
	}
	return u, nil
}

func (r *UserRepo) GetUsers(ctx context.Context, ids []string) (map[string]domain.User, error) {
	out := make(map[string]domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx,
		`SELECT id, name, image, is_active, is_blocked FROM users WHERE id = ANY($1)`, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			u     domain.User
			image sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.Name, &image, &u.IsActive, &u.IsBlocked); err != nil {
			return nil, err
		}
		if image.Valid {
			img := image.String
			u.Image = &img
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}

// UpsertUser writes a user record. The account service normally owns this table; the API
// binary calls it for SEED_USERS.
func (r *UserRepo) UpsertUser(ctx context.Context, u domain.User) error {
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx,
		`INSERT INTO users (id, name, image, is_active, is_blocked)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, image = EXCLUDED.image,
			is_active = EXCLUDED.is_active, is_blocked = EXCLUDED.is_blocked`,
		u.ID, u.Name, u.Image, u.IsActive, u.IsBlocked,
	)
	return err
}

func (r *UserRepo) Touch(ctx context.Context, userID string, at time.Time) error {
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx,
		`UPDATE users SET last_seen_at = GREATEST(last_seen_at, $2) WHERE id = $1`,
		userID, at,
	)
	return err
}

func (r *UserRepo) LastSeen(ctx context.Context, userIDs []string) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx,
		`SELECT id, last_seen_at FROM users WHERE id = ANY($1) AND last_seen_at IS NOT NULL`, userIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id string
			at time.Time
		)
		if err := rows.Scan(&id, &at); err != nil {
			return nil, err
		}
		out[id] = at.UTC()
	}
	return out, rows.Err()
}
