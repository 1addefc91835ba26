package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/orthocare/orthocare/internal/auth"
)

func (d *DB) CreateUser(ctx context.Context, u auth.User) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.PasswordHash, toUnix(u.CreatedAt),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return auth.ErrUserExists
	}
	return err
}

func (d *DB) userBy(ctx context.Context, column, value string) (*auth.User, error) {
	var u auth.User
	var created int64
	err := d.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at FROM users WHERE `+column+` = ?`, value,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = fromUnix(created)
	return &u, nil
}

func (d *DB) UserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return d.userBy(ctx, "email", email)
}

func (d *DB) UserByID(ctx context.Context, id string) (*auth.User, error) {
	return d.userBy(ctx, "id", id)
}

func (d *DB) CreateSession(ctx context.Context, s auth.Session) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO sessions (token_hash, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		s.TokenHash, s.UserID, toUnix(s.CreatedAt), toUnix(s.ExpiresAt),
	)
	return err
}

func (d *DB) SessionByHash(ctx context.Context, hash string) (*auth.Session, error) {
	var s auth.Session
	var created, expires int64
	err := d.db.QueryRowContext(ctx,
		`SELECT token_hash, user_id, created_at, expires_at FROM sessions WHERE token_hash = ?`, hash,
	).Scan(&s.TokenHash, &s.UserID, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	s.CreatedAt, s.ExpiresAt = fromUnix(created), fromUnix(expires)
	return &s, nil
}

func (d *DB) DeleteSession(ctx context.Context, hash string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?`, hash)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}

func (d *DB) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := d.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, toUnix(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
