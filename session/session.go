package session

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-uuid"
)

// Tokens is the set of tokens a provider issued for a login. It is the
// value handed to views when rendering authenticated pages; callers get a
// copy, never shared mutable state. Zero values mean the provider did not
// issue that token.
type Tokens struct {
	IDToken      string
	AccessToken  string
	RefreshToken string
}

// Session is one authenticated user's server-side state.
type Session struct {
	// ID is the opaque identifier carried by the browser cookie.
	ID string

	// Tokens are the tokens the provider issued for this login.
	Tokens Tokens

	// Profile holds the claims read from the verified id_token.
	Profile map[string]interface{}

	CreatedAt time.Time
	ExpiresAt time.Time
}

// New creates a Session with a generated id that expires ttl from now.
func New(tokens Tokens, profile map[string]interface{}, ttl time.Duration) (*Session, error) {
	const op = "session.New"
	if ttl <= 0 {
		return nil, fmt.Errorf("%s: ttl not greater than zero: %w", op, ErrInvalidParameter)
	}
	id, err := uuid.GenerateUUID()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate session id: %w", op, err)
	}
	now := time.Now()
	return &Session{
		ID:        id,
		Tokens:    tokens,
		Profile:   profile,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// IsExpired returns true once the session's ExpiresAt has passed.
func (s *Session) IsExpired() bool {
	return !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(time.Now())
}
