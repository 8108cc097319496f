package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"gitea.jw6.us/james/dashboard/internal/secrets"
)

// SessionRepository persists browser sessions for the postgres backend.
type SessionRepository interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Touch(ctx context.Context, id string, expiresAt time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type sessionRepo struct {
	pool   PgxPool
	sealer *secrets.Sealer
}

func (r *sessionRepo) Create(ctx context.Context, s Session) error {
	defer observeDB(ctx, "sessions.create")()

	sealed, err := r.sealer.Seal([]byte(s.Token))
	if err != nil {
		return err
	}
	const q = `INSERT INTO sessions (id, sealed_token, expires_at) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET sealed_token = EXCLUDED.sealed_token, expires_at = EXCLUDED.expires_at, last_seen_at = NOW()`
	if _, err := r.pool.Exec(ctx, q, s.ID, sealed, s.ExpiresAt); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*Session, error) {
	defer observeDB(ctx, "sessions.get")()

	const q = `SELECT sealed_token, created_at, last_seen_at, expires_at FROM sessions
WHERE id = $1 AND expires_at > NOW()`
	var sealed []byte
	s := &Session{ID: id}
	if err := r.pool.QueryRow(ctx, q, id).Scan(&sealed, &s.CreatedAt, &s.LastSeenAt, &s.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	token, err := r.sealer.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	s.Token = string(token)
	return s, nil
}

// Touch records activity and slides the expiry forward.
func (r *sessionRepo) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	defer observeDB(ctx, "sessions.touch")()

	const q = `UPDATE sessions SET last_seen_at = NOW(), expires_at = $2 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, expiresAt)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sessionRepo) Delete(ctx context.Context, id string) error {
	defer observeDB(ctx, "sessions.delete")()

	if _, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *sessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	defer observeDB(ctx, "sessions.delete_expired")()

	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
