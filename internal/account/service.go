// Package account exposes signup, login, token refresh and logout on top of
// a credential store and the session manager.
package account

import (
	"context"
	"log/slog"
	"strings"

	"github.com/starford/bharathvani/internal/apperr"
	"github.com/starford/bharathvani/internal/credentials"
	"github.com/starford/bharathvani/internal/session"
)

// Service coordinates credentials and sessions.
type Service struct {
	creds    credentials.Store
	sessions *session.Manager
	logger   *slog.Logger
}

// NewService creates a new account service.
func NewService(creds credentials.Store, sessions *session.Manager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{creds: creds, sessions: sessions, logger: logger}
}

// Register creates the credential and opens a session for it.
func (s *Service) Register(ctx context.Context, username, secret string) (*session.Session, error) {
	username = strings.TrimSpace(username)
	if err := s.creds.Register(ctx, username, secret); err != nil {
		return nil, err
	}
	s.logger.Info("account registered", slog.String("username", username))
	return s.Login(ctx, username, secret)
}

// Login opens a session when the credentials match. The session carries
// the stored username, which the credential stores keep trimmed.
func (s *Service) Login(ctx context.Context, username, secret string) (*session.Session, error) {
	username = strings.TrimSpace(username)
	ok, err := s.creds.Authenticate(ctx, username, secret)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Info("login rejected", slog.String("username", username))
		return nil, apperr.ErrUnauthorized
	}
	return s.sessions.Issue(username)
}

// Refresh rotates the token pair bound to refreshToken.
func (s *Service) Refresh(_ context.Context, refreshToken string) (*session.Session, error) {
	return s.sessions.Refresh(refreshToken)
}

// Logout ends sess.
func (s *Service) Logout(_ context.Context, sess *session.Session) {
	s.sessions.Revoke(sess)
}
