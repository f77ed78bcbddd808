// Package credentials stores username/secret pairs. Secrets are kept as
// bcrypt hashes; usernames are unique and case-sensitive.
package credentials

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/starford/bharathvani/internal/apperr"
)

// Store registers and authenticates credentials.
type Store interface {
	// Register persists a new credential. It returns apperr.ErrInvalidInput
	// when either field is blank and apperr.ErrAlreadyExists when the
	// username is taken.
	Register(ctx context.Context, username, secret string) error
	// Authenticate reports whether username exists and secret matches it.
	// Unknown users and wrong secrets are indistinguishable.
	Authenticate(ctx context.Context, username, secret string) (bool, error)
}

// Option configures a store.
type Option func(*hasher)

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) Option {
	return func(h *hasher) { h.cost = cost }
}

type hasher struct {
	cost  int
	dummy []byte
}

func newHasher(opts []Option) (*hasher, error) {
	h := &hasher{cost: bcrypt.DefaultCost}
	for _, o := range opts {
		o(h)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-secret"), h.cost)
	if err != nil {
		return nil, fmt.Errorf("credentials: dummy hash: %w", err)
	}
	h.dummy = dummy
	return h, nil
}

func (h *hasher) hash(secret string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("credentials: hash secret: %w", err)
	}
	return string(out), nil
}

// verify compares secret against hash. An empty hash still costs one
// comparison so unknown users take as long as known ones.
func (h *hasher) verify(hash, secret string) bool {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(secret))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// MaxSecretBytes is the longest secret bcrypt accepts.
const MaxSecretBytes = 72

// normalize trims the username and checks both fields are non-blank.
func normalize(username, secret string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(secret) == "" {
		return "", fmt.Errorf("%w: username and password are required", apperr.ErrInvalidInput)
	}
	if len(secret) > MaxSecretBytes {
		return "", fmt.Errorf("%w: password must be at most %d bytes", apperr.ErrInvalidInput, MaxSecretBytes)
	}
	if strings.ContainsAny(username, ",\r\n") {
		return "", fmt.Errorf("%w: username contains invalid characters", apperr.ErrInvalidInput)
	}
	return username, nil
}
