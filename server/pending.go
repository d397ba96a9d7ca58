package server

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kgreely/oidcweb/oidc"
)

// errNoPendingLogin indicates the callback's state does not match any
// in-flight login attempt.
var errNoPendingLogin = errors.New("no pending login for state")

// loginCache holds the in-flight login requests between the redirect to
// the provider and the callback, keyed by request state.
type loginCache struct {
	mu       sync.Mutex
	requests map[string]*oidc.Request
}

func newLoginCache() *loginCache {
	return &loginCache{
		requests: map[string]*oidc.Request{},
	}
}

func (c *loginCache) Add(req *oidc.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests[req.State()] = req
}

// Take returns the request for state and removes it, so each state is
// usable exactly once. Expired requests read as not found.
func (c *loginCache) Take(state string) (*oidc.Request, error) {
	const op = "loginCache.Take"
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.requests[state]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, errNoPendingLogin)
	}
	delete(c.requests, state)
	if req.IsExpired() {
		return nil, fmt.Errorf("%s: %w", op, errNoPendingLogin)
	}
	return req, nil
}
