package account

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/starford/bharathvani/internal/apperr"
	"github.com/starford/bharathvani/internal/credentials"
	"github.com/starford/bharathvani/internal/session"
)

func newService(t *testing.T) (*Service, *session.Manager) {
	t.Helper()
	creds, err := credentials.NewFile(filepath.Join(t.TempDir(), "users.csv"), credentials.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	sessions := session.NewManager(session.Config{Secret: []byte("k"), Admins: []string{"admin"}})
	return NewService(creds, sessions, nil), sessions
}

func TestRegisterLogsIn(t *testing.T) {
	svc, sessions := newService(t)
	ctx := context.Background()

	s, err := svc.Register(ctx, "asha", "pw")
	require.NoError(t, err)
	assert.Equal(t, "asha", s.Username)
	require.NoError(t, sessions.Validate(s))

	_, err = svc.Register(ctx, "asha", "other")
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)
}

func TestLogin(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "admin", "pw")
	require.NoError(t, err)

	s, err := svc.Login(ctx, "admin", "pw")
	require.NoError(t, err)
	assert.True(t, s.Admin)

	_, err = svc.Login(ctx, "admin", "nope")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = svc.Login(ctx, "ghost", "pw")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestRefreshAndLogout(t *testing.T) {
	svc, sessions := newService(t)
	ctx := context.Background()
	s, err := svc.Register(ctx, "ravi", "pw")
	require.NoError(t, err)

	next, err := svc.Refresh(ctx, s.RefreshToken)
	require.NoError(t, err)
	require.NoError(t, sessions.Validate(next))

	svc.Logout(ctx, next)
	assert.ErrorIs(t, sessions.Validate(next), apperr.ErrSessionExpired)
	_, err = svc.Refresh(ctx, next.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestPaddedUsernameKeepsIdentity(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	s, err := svc.Register(ctx, "  admin  ", "pw")
	require.NoError(t, err)
	assert.Equal(t, "admin", s.Username)
	assert.True(t, s.Admin)

	s, err = svc.Login(ctx, " admin", "pw")
	require.NoError(t, err)
	assert.Equal(t, "admin", s.Username)
	assert.True(t, s.Admin)
}
