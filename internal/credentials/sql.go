package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/bharathvani/internal/apperr"
	"github.com/starford/bharathvani/internal/database"
)

// SQL keeps credentials in the users table.
type SQL struct {
	db *database.DB
	h  *hasher
}

// NewSQL returns a store on an already migrated database.
func NewSQL(db *database.DB, opts ...Option) (*SQL, error) {
	h, err := newHasher(opts)
	if err != nil {
		return nil, err
	}
	return &SQL{db: db, h: h}, nil
}

// Register inserts the credential; the primary key enforces uniqueness.
func (s *SQL) Register(ctx context.Context, username, secret string) error {
	username, err := normalize(username, secret)
	if err != nil {
		return err
	}
	hash, err := s.h.hash(secret)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO users (username, password_hash, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (username) DO NOTHING
	`), username, hash, time.Now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("credentials: insert user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("credentials: rows affected: %w", err)
	}
	if n == 0 {
		return apperr.ErrAlreadyExists
	}
	return nil
}

// Authenticate checks secret against the stored hash for username.
func (s *SQL) Authenticate(ctx context.Context, username, secret string) (bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT password_hash FROM users WHERE username = ?`),
		strings.TrimSpace(username)).Scan(&hash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("credentials: select user: %w", err)
	}
	return s.h.verify(hash, secret), nil
}

var (
	_ Store = (*File)(nil)
	_ Store = (*SQL)(nil)
)
