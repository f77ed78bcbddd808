package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/bharathvani/internal/apperr"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(admins ...string) (*Manager, *clock) {
	c := &clock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(Config{
		Secret:     []byte("test-secret"),
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		Admins:     admins,
	})
	m.now = c.now
	return m, c
}

func TestIssueAndParse(t *testing.T) {
	m, _ := newTestManager("root")

	s, err := m.Issue("asha")
	require.NoError(t, err)
	assert.NotEmpty(t, s.AccessToken)
	assert.NotEmpty(t, s.RefreshToken)
	assert.False(t, s.Admin)

	parsed, err := m.Parse(s.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "asha", parsed.Username)
	assert.Equal(t, s.ID, parsed.ID)
	require.NoError(t, m.Validate(parsed))

	admin, err := m.Issue("root")
	require.NoError(t, err)
	assert.True(t, admin.Admin)
}

func TestParseRejectsForeignTokens(t *testing.T) {
	m, _ := newTestManager()
	other := NewManager(Config{Secret: []byte("other-secret")})
	s, err := other.Issue("asha")
	require.NoError(t, err)

	_, err = m.Parse(s.AccessToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = m.Parse("garbage")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "asha", "sid": "x"})
	raw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Parse(raw)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestExpiredAccessToken(t *testing.T) {
	m, c := newTestManager()
	s, err := m.Issue("asha")
	require.NoError(t, err)

	c.advance(2 * time.Minute)
	assert.ErrorIs(t, m.Validate(s), apperr.ErrSessionExpired)
	_, err = m.Parse(s.AccessToken)
	assert.ErrorIs(t, err, apperr.ErrSessionExpired)
}

func TestRefreshRotatesPair(t *testing.T) {
	m, c := newTestManager()
	s, err := m.Issue("asha")
	require.NoError(t, err)

	c.advance(2 * time.Minute)
	next, err := m.Refresh(s.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, s.ID, next.ID)
	assert.NotEqual(t, s.RefreshToken, next.RefreshToken)
	require.NoError(t, m.Validate(next))

	_, err = m.Refresh(s.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized, "old refresh token is single-use")
}

func TestRefreshAfterExpiryRevokes(t *testing.T) {
	m, c := newTestManager()
	s, err := m.Issue("asha")
	require.NoError(t, err)

	c.advance(2 * time.Hour)
	_, err = m.Refresh(s.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrSessionExpired)
	assert.Equal(t, 0, m.Active())
}

func TestRevoke(t *testing.T) {
	m, _ := newTestManager()
	s, err := m.Issue("asha")
	require.NoError(t, err)

	m.Revoke(s)
	assert.ErrorIs(t, m.Validate(s), apperr.ErrSessionExpired)
	_, err = m.Parse(s.AccessToken)
	assert.ErrorIs(t, err, apperr.ErrSessionExpired)
	_, err = m.Refresh(s.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	m.Revoke(s)
	m.Revoke(nil)
}

func TestValidateNil(t *testing.T) {
	m, _ := newTestManager()
	assert.ErrorIs(t, m.Validate(nil), apperr.ErrSessionExpired)
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	s := &Session{Username: "asha"}
	got, ok := FromContext(NewContext(context.Background(), s))
	require.True(t, ok)
	assert.Same(t, s, got)
}
