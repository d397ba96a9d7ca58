package session

import "errors"

var (
	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNoSession indicates the requested session does not exist or has
	// expired.
	ErrNoSession = errors.New("session not found")

	// ErrInvalidCookie indicates the session cookie failed signature or
	// claim validation. Treat it as "not logged in".
	ErrInvalidCookie = errors.New("invalid session cookie")
)
