// Package session issues and validates per-user sessions: a short-lived
// HS256 access token paired with an opaque refresh token bound to a
// server-side record.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/starford/bharathvani/internal/apperr"
)

// Session is the identity carried through every service operation.
type Session struct {
	ID           string    `json:"-"`
	Username     string    `json:"username"`
	Admin        bool      `json:"admin"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Config holds the Manager settings.
type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Admins     []string
}

type claims struct {
	jwt.RegisteredClaims
	SID   string `json:"sid"`
	Admin bool   `json:"adm,omitempty"`
}

type record struct {
	username       string
	admin          bool
	refresh        string
	refreshExpires time.Time
}

// Manager owns the live session records. It is safe for concurrent use.
type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	admins     map[string]bool
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*record
	refresh  map[string]string
}

// NewManager returns a Manager. Zero TTLs default to 15 minutes (access)
// and 7 days (refresh).
func NewManager(cfg Config) *Manager {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	admins := make(map[string]bool, len(cfg.Admins))
	for _, a := range cfg.Admins {
		admins[a] = true
	}
	return &Manager{
		secret:     cfg.Secret,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		admins:     admins,
		now:        time.Now,
		sessions:   make(map[string]*record),
		refresh:    make(map[string]string),
	}
}

// IsAdmin reports whether username is configured as an administrator.
func (m *Manager) IsAdmin(username string) bool {
	return m.admins[username]
}

// Issue opens a new session for an authenticated user.
func (m *Manager) Issue(username string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()

	sid := uuid.NewString()
	rec := &record{username: username, admin: m.admins[username]}
	m.sessions[sid] = rec
	s, err := m.rotateLocked(sid, rec)
	if err != nil {
		delete(m.sessions, sid)
		return nil, err
	}
	return s, nil
}

// Parse verifies an access token and returns the session it belongs to.
// Expired tokens and revoked sessions yield apperr.ErrSessionExpired; any
// other defect yields apperr.ErrUnauthorized.
func (m *Manager) Parse(token string) (*Session, error) {
	c := &claims{}
	_, err := jwt.ParseWithClaims(token, c, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}
	if c.SID == "" || c.Subject == "" || c.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing claims", apperr.ErrUnauthorized)
	}

	m.mu.Lock()
	rec, ok := m.sessions[c.SID]
	m.mu.Unlock()
	if !ok || rec.username != c.Subject {
		return nil, apperr.ErrSessionExpired
	}
	return &Session{
		ID:          c.SID,
		Username:    c.Subject,
		Admin:       rec.admin,
		AccessToken: token,
		ExpiresAt:   c.ExpiresAt.Time,
	}, nil
}

// Validate confirms s is still usable for a state-changing operation.
func (m *Manager) Validate(s *Session) error {
	if s == nil || s.ID == "" {
		return apperr.ErrSessionExpired
	}
	if !m.now().Before(s.ExpiresAt) {
		return apperr.ErrSessionExpired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[s.ID]
	if !ok || rec.username != s.Username {
		return apperr.ErrSessionExpired
	}
	return nil
}

// Refresh exchanges a refresh token for a new token pair. The old refresh
// token is invalidated.
func (m *Manager) Refresh(refreshToken string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sid, ok := m.refresh[refreshToken]
	if !ok {
		return nil, apperr.ErrUnauthorized
	}
	rec := m.sessions[sid]
	if rec == nil || !m.now().Before(rec.refreshExpires) {
		m.revokeLocked(sid)
		return nil, apperr.ErrSessionExpired
	}
	delete(m.refresh, refreshToken)
	return m.rotateLocked(sid, rec)
}

// Revoke ends the session. Revoking an unknown session is a no-op.
func (m *Manager) Revoke(s *Session) {
	if s == nil {
		return
	}
	m.mu.Lock()
	m.revokeLocked(s.ID)
	m.mu.Unlock()
}

// Active returns the number of live sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) rotateLocked(sid string, rec *record) (*Session, error) {
	now := m.now()
	exp := now.Add(m.accessTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   rec.username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		SID:   sid,
		Admin: rec.admin,
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("session: sign token: %w", err)
	}
	refresh, err := randomToken()
	if err != nil {
		return nil, err
	}
	if rec.refresh != "" {
		delete(m.refresh, rec.refresh)
	}
	rec.refresh = refresh
	rec.refreshExpires = now.Add(m.refreshTTL)
	m.refresh[refresh] = sid

	return &Session{
		ID:           sid,
		Username:     rec.username,
		Admin:        rec.admin,
		AccessToken:  signed,
		RefreshToken: refresh,
		// JWT expiry has second precision.
		ExpiresAt: jwt.NewNumericDate(exp).Time,
	}, nil
}

func (m *Manager) revokeLocked(sid string) {
	if rec, ok := m.sessions[sid]; ok {
		delete(m.refresh, rec.refresh)
		delete(m.sessions, sid)
	}
}

func (m *Manager) pruneLocked() {
	now := m.now()
	for sid, rec := range m.sessions {
		if !now.Before(rec.refreshExpires) {
			m.revokeLocked(sid)
		}
	}
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by NewContext, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}
