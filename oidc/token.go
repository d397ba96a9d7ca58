package oidc

import (
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// DefaultTokenExpirySkew defines a default time skew when checking a Token's
// expiration.
const DefaultTokenExpirySkew = 10 * time.Second

// Token represents the result of a successful code exchange with a provider:
// an id_token, an access_token and, depending on the provider, a
// refresh_token (including the access_token expiry).
type Token struct {
	idToken      IDToken
	accessToken  AccessToken
	refreshToken RefreshToken

	// expiry is the expiration of the access_token. It may be zero when the
	// provider doesn't report one.
	expiry time.Time
}

// NewToken creates a new Token from an id_token and the oauth2.Token
// returned by the provider's token endpoint. The id_token is required, the
// oauth2.Token is optional (some verification-only paths have no oauth2
// token to offer).
func NewToken(idToken IDToken, t *oauth2.Token) (*Token, error) {
	const op = "oidc.NewToken"
	if idToken == "" {
		return nil, fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	tk := &Token{
		idToken: idToken,
	}
	if t != nil {
		tk.accessToken = AccessToken(t.AccessToken)
		tk.refreshToken = RefreshToken(t.RefreshToken)
		tk.expiry = t.Expiry
	}
	return tk, nil
}

// IDToken returns the id_token.
func (t *Token) IDToken() IDToken { return t.idToken }

// AccessToken returns the access_token.
func (t *Token) AccessToken() AccessToken { return t.accessToken }

// RefreshToken returns the refresh_token, which may be empty depending on
// the provider and the scopes requested.
func (t *Token) RefreshToken() RefreshToken { return t.refreshToken }

// Expiry returns the expiration of the access_token, which may be zero when
// the provider doesn't report one.
func (t *Token) Expiry() time.Time { return t.expiry }

// IsExpired returns true if the token's access_token has expired. Supports
// the WithExpirySkew option and if none is provided it will use the
// DefaultTokenExpirySkew. A zero expiry never reports expired.
func (t *Token) IsExpired(opt ...Option) bool {
	if t.expiry.IsZero() {
		return false
	}
	opts := getTokenOpts(opt...)
	return t.expiry.Round(0).Before(time.Now().Add(opts.withExpirySkew))
}

// Valid will ensure that the token is not nil, has an access_token, and is
// not expired.
func (t *Token) Valid() bool {
	if t == nil {
		return false
	}
	if t.accessToken == "" {
		return false
	}
	return !t.IsExpired()
}

// StaticTokenSource returns a TokenSource that always returns the token's
// access_token, which is suitable for userinfo requests.
func (t *Token) StaticTokenSource() oauth2.TokenSource {
	if t == nil {
		return nil
	}
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: string(t.accessToken),
		Expiry:      t.expiry,
	})
}

// tokenOptions is the set of available options for Token functions.
type tokenOptions struct {
	withExpirySkew time.Duration
}

// tokenDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func tokenDefaults() tokenOptions {
	return tokenOptions{
		withExpirySkew: DefaultTokenExpirySkew,
	}
}

// getTokenOpts gets the token defaults and applies the opt overrides passed
// in.
func getTokenOpts(opt ...Option) tokenOptions {
	opts := tokenDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
