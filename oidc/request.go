package oidc

import (
	"fmt"
	"time"
)

// Request represents one in-flight login attempt for a user. It contains the
// data needed to uniquely represent that one-time flow across the multiple
// interactions needed to complete it. State() is passed to the provider and
// echoed back on the callback to correlate the response with this attempt.
// The State() and Nonce() cannot be equal, and are used during the flow to
// prevent CSRF and replay attacks (see the oidc spec for specifics).
type Request struct {
	// state is a unique identifier and an opaque value used to maintain state
	// between the auth request and the callback.
	state string

	// nonce is a unique nonce used to associate the login attempt with the
	// id_token the provider issues for it.
	nonce string

	// returnTo is the application URL the user should land on once the flow
	// completes. Always a site-relative path.
	returnTo string

	// expiration is the expiration time for the Request.
	expiration time.Time
}

// NewRequest creates a new Request for a login attempt. The expireIn bounds
// how long the user has to complete the provider round trip. Supported
// options: WithReturnTo
func NewRequest(expireIn time.Duration, opt ...Option) (*Request, error) {
	const op = "oidc.NewRequest"
	if expireIn <= 0 {
		return nil, fmt.Errorf("%s: expireIn not greater than zero: %w", op, ErrInvalidParameter)
	}
	opts := getReqOpts(opt...)
	nonce, err := NewID("n")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a request's nonce: %w", op, err)
	}
	state, err := NewID("st")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a request's state: %w", op, err)
	}
	return &Request{
		state:      state,
		nonce:      nonce,
		returnTo:   opts.withReturnTo,
		expiration: time.Now().Add(expireIn),
	}, nil
}

// State returns the request's unique state identifier.
func (r *Request) State() string { return r.state }

// Nonce returns the request's unique nonce.
func (r *Request) Nonce() string { return r.nonce }

// ReturnTo returns the application URL the user should land on once the flow
// completes. It may be empty, in which case callers should fall back to the
// application root.
func (r *Request) ReturnTo() string { return r.returnTo }

// DefaultRequestExpirySkew defines a default time skew when checking a
// Request's expiration.
const DefaultRequestExpirySkew = 1 * time.Second

// IsExpired returns true if the request has expired. Supports the
// WithExpirySkew option and if none is provided it will use the
// DefaultRequestExpirySkew.
func (r *Request) IsExpired(opt ...Option) bool {
	opts := getReqOpts(opt...)
	return r.expiration.Before(time.Now().Add(opts.withExpirySkew))
}

// reqOptions is the set of available options for Request functions.
type reqOptions struct {
	withReturnTo   string
	withExpirySkew time.Duration
}

// reqDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func reqDefaults() reqOptions {
	return reqOptions{
		withExpirySkew: DefaultRequestExpirySkew,
	}
}

// getReqOpts gets the request defaults and applies the opt overrides passed
// in.
func getReqOpts(opt ...Option) reqOptions {
	opts := reqDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithReturnTo provides an optional application URL for the request, which
// the user is sent to once the login completes.
func WithReturnTo(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withReturnTo = u
		}
	}
}
