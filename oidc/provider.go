package oidc

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Provider provides integration with a provider using the typical 3-legged
// OIDC authorization code flow.
type Provider struct {
	config   *Config
	provider *oidc.Provider

	// endSessionEndpoint is the provider's RP-initiated logout endpoint,
	// when the provider advertises one via discovery.
	endSessionEndpoint string

	mu sync.Mutex

	// backgroundCtx is the context used by the provider for background
	// activities like refreshing JWKs key sets.
	backgroundCtx context.Context

	// backgroundCtxCancel is used to cancel any background activities running
	// in spawned go routines.
	backgroundCtxCancel context.CancelFunc
}

// NewProvider creates and initializes a Provider for the OIDC authorization
// code flow. Initializing the provider includes making an http request to
// the provider's issuer for discovery.
//
// See Provider.Done() which must be called to release provider resources.
func NewProvider(c *Config) (*Provider, error) {
	const op = "oidc.NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	// initializing the Provider with its background ctx/cancel allows us to
	// use p.Done() to release any resources when returning errors from this
	// function.
	p := &Provider{
		config:              c,
		backgroundCtx:       ctx,
		backgroundCtxCancel: cancel,
	}

	client, err := c.HTTPClient()
	if err != nil {
		p.Done() // release the backgroundCtxCancel resources
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}

	provider, err := oidc.NewProvider(HTTPClientContext(p.backgroundCtx, client), c.Issuer) // makes http req to issuer for discovery
	if err != nil {
		p.Done() // release the backgroundCtxCancel resources
		return nil, fmt.Errorf("%s: unable to create provider: %w", op, err)
	}
	p.provider = provider

	// end_session_endpoint is not part of the core discovery claims the
	// coreos package surfaces, so read it off the raw discovery document.
	var extra struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&extra); err == nil {
		p.endSessionEndpoint = extra.EndSessionEndpoint
	}

	return p, nil
}

// Done with the provider's background resources and must be called for every
// Provider created.
func (p *Provider) Done() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backgroundCtxCancel != nil {
		p.backgroundCtxCancel()
		p.backgroundCtxCancel = nil
	}
}

// AuthURL will generate a URL the caller can use to kick off an OIDC
// authorization code flow with the provider. The req uniquely identifies the
// user's login attempt throughout the flow, and its state and nonce are
// embedded in the returned URL.
func (p *Provider) AuthURL(ctx context.Context, req *Request) (string, error) {
	const op = "Provider.AuthURL"
	if req == nil {
		return "", fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	if req.State() == req.Nonce() {
		return "", fmt.Errorf("%s: request state and nonce cannot be equal: %w", op, ErrInvalidParameter)
	}
	if req.IsExpired() {
		return "", fmt.Errorf("%s: %w", op, ErrExpiredRequest)
	}
	oauth2Config := p.oauth2Config()
	authCodeOpts := []oauth2.AuthCodeOption{
		oidc.Nonce(req.Nonce()),
	}
	return oauth2Config.AuthCodeURL(req.State(), authCodeOpts...), nil
}

// Exchange will request a token from the oidc token endpoint, using the
// authorizationCode and authorizationState it received in an earlier
// successful authentication response.
//
// It will also validate the authorizationState it receives against the
// existing Request for the user's login attempt.
//
// On success, the Token returned will include an IDToken and an AccessToken,
// and based on the provider, it may include a RefreshToken.
func (p *Provider) Exchange(ctx context.Context, req *Request, authorizationState string, authorizationCode string) (*Token, error) {
	const op = "Provider.Exchange"
	if req == nil {
		return nil, fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	if req.State() != authorizationState {
		return nil, fmt.Errorf("%s: %w", op, ErrResponseState)
	}
	if req.IsExpired() {
		return nil, fmt.Errorf("%s: %w", op, ErrExpiredRequest)
	}

	client, err := p.config.HTTPClient()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	oidcCtx := HTTPClientContext(ctx, client)

	oauth2Config := p.oauth2Config()
	oauth2Token, err := oauth2Config.Exchange(oidcCtx, authorizationCode)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to exchange auth code with provider: %w", op, err)
	}

	idToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("%s: id_token is missing from auth code exchange: %w", op, ErrMissingIDToken)
	}
	t, err := NewToken(IDToken(idToken), oauth2Token)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create new token: %w", op, err)
	}
	if err := p.VerifyIDToken(ctx, t.IDToken(), req.Nonce()); err != nil {
		return nil, fmt.Errorf("%s: id_token failed verification: %w", op, err)
	}
	return t, nil
}

// UserInfo gets the UserInfo claims from the provider using the token
// produced by the tokenSource.
func (p *Provider) UserInfo(ctx context.Context, tokenSource oauth2.TokenSource, claims interface{}) error {
	const op = "Provider.UserInfo"
	if tokenSource == nil {
		return fmt.Errorf("%s: token source is nil: %w", op, ErrNilParameter)
	}
	if claims == nil {
		return fmt.Errorf("%s: claims interface is nil: %w", op, ErrNilParameter)
	}
	client, err := p.config.HTTPClient()
	if err != nil {
		return fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	oidcCtx := HTTPClientContext(ctx, client)

	userinfo, err := p.provider.UserInfo(oidcCtx, tokenSource)
	if err != nil {
		return fmt.Errorf("%s: provider UserInfo request failed: %w", op, ErrUserInfoFailed)
	}
	if err := userinfo.Claims(claims); err != nil {
		return fmt.Errorf("%s: failed to get UserInfo claims: %w", op, err)
	}
	return nil
}

// VerifyIDToken will verify the inbound IDToken. It verifies it's been
// signed by the provider, it validates the nonce, and performs any
// additional checks depending on the provider's config (audiences, etc).
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#IDTokenValidation
func (p *Provider) VerifyIDToken(ctx context.Context, t IDToken, nonce string) error {
	const op = "Provider.VerifyIDToken"
	if t == "" {
		return fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	if nonce == "" {
		return fmt.Errorf("%s: nonce is empty: %w", op, ErrInvalidParameter)
	}
	algs := make([]string, 0, len(p.config.SupportedSigningAlgs))
	for _, a := range p.config.SupportedSigningAlgs {
		algs = append(algs, string(a))
	}
	verifier := p.provider.Verifier(&oidc.Config{
		SupportedSigningAlgs: algs,
		ClientID:             p.config.ClientID,
	})

	oidcIDToken, err := verifier.Verify(ctx, string(t))
	if err != nil {
		return fmt.Errorf("%s: invalid id_token: %w", op, err)
	}

	if oidcIDToken.Nonce != nonce {
		return fmt.Errorf("%s: invalid id_token nonce: %w", op, ErrInvalidNonce)
	}

	if len(p.config.Audiences) > 0 {
		found := false
		for _, v := range p.config.Audiences {
			for _, aud := range oidcIDToken.Audience {
				if aud == v {
					found = true
				}
			}
		}
		if !found {
			return fmt.Errorf("%s: invalid id_token audiences: %w", op, ErrInvalidAudience)
		}
	}
	return nil
}

// LogoutURL returns a URL that signs the user out at the provider, which is
// the second half of a full logout (the first being the application's own
// session). When the provider advertises an end_session_endpoint via
// discovery it is used with an optional id_token_hint; otherwise an
// Auth0-style "/v2/logout" URL is built from the issuer. The config's
// PostLogoutRedirectURL tells the provider where to send the user
// afterwards.
func (p *Provider) LogoutURL(idTokenHint IDToken) (string, error) {
	const op = "Provider.LogoutURL"
	if p.endSessionEndpoint != "" {
		u, err := url.Parse(p.endSessionEndpoint)
		if err != nil {
			return "", fmt.Errorf("%s: invalid end_session_endpoint %s: %w", op, p.endSessionEndpoint, err)
		}
		q := u.Query()
		q.Set("client_id", p.config.ClientID)
		if idTokenHint != "" {
			q.Set("id_token_hint", string(idTokenHint))
		}
		if p.config.PostLogoutRedirectURL != "" {
			q.Set("post_logout_redirect_uri", p.config.PostLogoutRedirectURL)
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	// Auth0 doesn't advertise an end_session_endpoint; it exposes /v2/logout
	// on the tenant domain with a returnTo parameter instead.
	u, err := url.Parse(p.config.Issuer)
	if err != nil {
		return "", fmt.Errorf("%s: invalid issuer %s: %w", op, p.config.Issuer, err)
	}
	u.Path = "/v2/logout"
	q := u.Query()
	q.Set("client_id", p.config.ClientID)
	if p.config.PostLogoutRedirectURL != "" {
		q.Set("returnTo", p.config.PostLogoutRedirectURL)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// oauth2Config composes the oauth2 client configuration for the provider.
// The required "openid" scope is always included.
func (p *Provider) oauth2Config() oauth2.Config {
	scopes := append([]string{oidc.ScopeOpenID}, p.config.Scopes...)
	return oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: string(p.config.ClientSecret),
		RedirectURL:  p.config.RedirectURL,
		Endpoint:     p.provider.Endpoint(),
		Scopes:       scopes,
	}
}
