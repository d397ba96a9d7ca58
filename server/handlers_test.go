package server

import (
	"crypto/tls"
	"crypto/x509"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgreely/oidcweb/config"
	"github.com/kgreely/oidcweb/oidc"
	"github.com/kgreely/oidcweb/session"
)

const (
	testClientID     = "test-client-id"
	testClientSecret = "test-client-secret"
)

type testApp struct {
	tp      *oidc.TestProvider
	baseURL string
	store   *session.MemoryStore
	cfg     *config.Config
}

// startTestApp stands up a TestProvider and the application server wired
// against it. The app listens on a real port so the provider redirect
// round trip works end to end.
func startTestApp(t *testing.T, loginTTL time.Duration) *testApp {
	t.Helper()
	require := require.New(t)

	tp := oidc.StartTestProvider(t)
	tp.SetClientCreds(testClientID, testClientSecret)

	ts := httptest.NewUnstartedServer(nil)
	baseURL := "http://" + ts.Listener.Addr().String()

	cfg := &config.Config{
		Env: "test",
		Server: config.ServerConfig{
			PublicURL: baseURL,
		},
		Auth: config.AuthConfig{
			Issuer:       tp.Addr(),
			ClientID:     testClientID,
			ClientSecret: testClientSecret,
			Scopes:       []string{"profile", "email"},
			CallbackPath: "/auth/callback",
			LoginTTL:     loginTTL,
		},
		Session: config.SessionConfig{
			CookieName: "oidcweb_session",
			Secret:     "0123456789abcdef0123456789abcdef",
			TTL:        1 * time.Hour,
		},
	}
	tp.SetAllowedRedirectURIs([]string{cfg.RedirectURL()})

	oc, err := oidc.NewConfig(
		cfg.Auth.Issuer,
		cfg.Auth.ClientID,
		oidc.ClientSecret(cfg.Auth.ClientSecret),
		cfg.RedirectURL(),
		oidc.WithScopes(cfg.Auth.Scopes...),
		oidc.WithSigningAlgs(oidc.ES256),
		oidc.WithProviderCA(tp.CACert()),
		oidc.WithPostLogoutRedirectURL(cfg.PostLogoutURL()),
	)
	require.NoError(err)
	p, err := oidc.NewProvider(oc)
	require.NoError(err)
	t.Cleanup(p.Done)

	store := session.NewMemoryStore()
	codec, err := session.NewCookieCodec(cfg.Session.CookieName, []byte(cfg.Session.Secret), cfg.Session.TTL, cfg.Session.Secure)
	require.NoError(err)

	srv, err := New(cfg, p, store, codec, hclog.NewNullLogger())
	require.NoError(err)

	ts.Config.Handler = srv.Router()
	ts.Start()
	t.Cleanup(ts.Close)

	return &testApp{
		tp:      tp,
		baseURL: baseURL,
		store:   store,
		cfg:     cfg,
	}
}

// browser returns a client with a cookie jar that trusts the test
// provider's TLS certificate and follows redirects, like a real browser.
func (a *testApp) browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM([]byte(a.tp.CACert()))
	return &http.Client{
		Jar: jar,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool},
		},
	}
}

// noRedirects stops a client from following redirects so tests can assert
// on individual responses.
func noRedirects(c *http.Client) *http.Client {
	clone := *c
	clone.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &clone
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestFlow_LoginProfileLogout(t *testing.T) {
	assert, require := assert.New(t), require.New(t)
	app := startTestApp(t, 1*time.Minute)
	app.tp.SetCustomClaims(map[string]interface{}{
		"name":    "Alice Example",
		"email":   "alice@example.com",
		"picture": "https://example.com/alice.png",
	})
	browser := app.browser(t)

	// kick off the login; the browser follows the full round trip through
	// the provider, back to the callback and on to the profile page.
	resp, err := browser.Get(app.baseURL + "/auth/login?return_to=/profile")
	require.NoError(err)
	require.Equal(http.StatusOK, resp.StatusCode)
	got := body(t, resp)
	assert.Contains(got, "Alice Example")
	assert.Contains(got, "alice@example.com")
	assert.Contains(got, "https://example.com/alice.png")
	assert.Contains(got, "ID token")
	assert.Contains(got, "Access token")

	// the session cookie now satisfies the auth gate directly
	resp, err = browser.Get(app.baseURL + "/profile")
	require.NoError(err)
	require.Equal(http.StatusOK, resp.StatusCode)
	assert.Contains(body(t, resp), "Alice Example")

	// home page reflects the logged-in state
	resp, err = browser.Get(app.baseURL + "/")
	require.NoError(err)
	assert.Contains(body(t, resp), "You are logged in")

	// logout signs out locally and at the provider, which sends the
	// browser back to the fixed post-logout page (home).
	resp, err = browser.Get(app.baseURL + "/auth/logout")
	require.NoError(err)
	require.Equal(http.StatusOK, resp.StatusCode)
	assert.Contains(body(t, resp), "You are not logged in")

	// the gate is closed again
	resp, err = noRedirects(browser).Get(app.baseURL + "/profile")
	require.NoError(err)
	resp.Body.Close()
	require.Equal(http.StatusSeeOther, resp.StatusCode)
	assert.Contains(resp.Header.Get("Location"), "/auth/login?return_to=%2Fprofile")
}

func TestHandleLogin(t *testing.T) {
	t.Run("redirects-to-provider", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		app := startTestApp(t, 1*time.Minute)
		browser := noRedirects(app.browser(t))

		resp, err := browser.Get(app.baseURL + "/auth/login?return_to=/profile")
		require.NoError(err)
		resp.Body.Close()
		require.Equal(http.StatusFound, resp.StatusCode)

		loc, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(err)
		assert.Equal(app.tp.Addr()+"/auth", loc.Scheme+"://"+loc.Host+loc.Path)
		q := loc.Query()
		assert.NotEmpty(q.Get("state"))
		assert.NotEmpty(q.Get("nonce"))
		assert.Contains(q.Get("scope"), "openid")
		assert.Equal(app.cfg.RedirectURL(), q.Get("redirect_uri"))
	})
	t.Run("already-logged-in-skips-provider", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		app := startTestApp(t, 1*time.Minute)
		browser := app.browser(t)

		resp, err := browser.Get(app.baseURL + "/auth/login")
		require.NoError(err)
		resp.Body.Close()
		require.Equal(http.StatusOK, resp.StatusCode)

		resp, err = noRedirects(browser).Get(app.baseURL + "/auth/login?return_to=/profile")
		require.NoError(err)
		resp.Body.Close()
		require.Equal(http.StatusFound, resp.StatusCode)
		assert.Equal("/profile", resp.Header.Get("Location"))
	})
	t.Run("absolute-return-to-falls-back-to-root", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		app := startTestApp(t, 1*time.Minute)
		browser := app.browser(t)

		// log in with a hostile return_to; the flow must land on home
		resp, err := browser.Get(app.baseURL + "/auth/login?return_to=" + url.QueryEscape("https://evil.example.com/"))
		require.NoError(err)
		require.Equal(http.StatusOK, resp.StatusCode)
		assert.Contains(body(t, resp), "You are logged in")
	})
}

func TestHandleCallback(t *testing.T) {
	t.Run("provider-error-response", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		app := startTestApp(t, 1*time.Minute)
		browser := noRedirects(app.browser(t))

		resp, err := browser.Get(app.baseURL + "/auth/callback?error=access_denied&error_description=user+said+no")
		require.NoError(err)
		require.Equal(http.StatusUnauthorized, resp.StatusCode)
		assert.Contains(body(t, resp), "provider rejected")
	})
	t.Run("missing-state", func(t *testing.T) {
		require := require.New(t)
		app := startTestApp(t, 1*time.Minute)
		browser := noRedirects(app.browser(t))

		resp, err := browser.Get(app.baseURL + "/auth/callback?code=whatever")
		require.NoError(err)
		resp.Body.Close()
		require.Equal(http.StatusBadRequest, resp.StatusCode)
	})
	t.Run("unknown-state", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		app := startTestApp(t, 1*time.Minute)
		browser := noRedirects(app.browser(t))

		resp, err := browser.Get(app.baseURL + "/auth/callback?state=st_bogus&code=whatever")
		require.NoError(err)
		require.Equal(http.StatusBadRequest, resp.StatusCode)
		assert.Contains(body(t, resp), "unknown or has expired")
	})
	t.Run("state-is-single-use", func(t *testing.T) {
		require := require.New(t)
		app := startTestApp(t, 1*time.Minute)
		browser := noRedirects(app.browser(t))

		// walk the flow by hand so the callback URL can be replayed
		resp, err := browser.Get(app.baseURL + "/auth/login")
		require.NoError(err)
		resp.Body.Close()
		require.Equal(http.StatusFound, resp.StatusCode)
		authURL := resp.Header.Get("Location")

		resp, err = browser.Get(authURL)
		require.NoError(err)
		resp.Body.Close()
		require.Equal(http.StatusFound, resp.StatusCode)
		callbackURL := resp.Header.Get("Location")

		resp, err = browser.Get(callbackURL)
		require.NoError(err)
		resp.Body.Close()
		require.Equal(http.StatusSeeOther, resp.StatusCode)

		// replaying the same callback must fail; its state was consumed
		resp, err = browser.Get(callbackURL)
		require.NoError(err)
		resp.Body.Close()
		require.Equal(http.StatusBadRequest, resp.StatusCode)
	})
	t.Run("bad-code-fails-exchange", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		app := startTestApp(t, 1*time.Minute)
		browser := noRedirects(app.browser(t))

		resp, err := browser.Get(app.baseURL + "/auth/login")
		require.NoError(err)
		resp.Body.Close()
		require.Equal(http.StatusFound, resp.StatusCode)
		loc, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(err)
		state := loc.Query().Get("state")
		require.NotEmpty(state)

		resp, err = browser.Get(app.baseURL + "/auth/callback?state=" + url.QueryEscape(state) + "&code=not-a-code")
		require.NoError(err)
		require.Equal(http.StatusUnauthorized, resp.StatusCode)
		assert.Contains(body(t, resp), "Login failed")
	})
	t.Run("expired-login", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		app := startTestApp(t, 2*time.Second)
		browser := noRedirects(app.browser(t))

		resp, err := browser.Get(app.baseURL + "/auth/login")
		require.NoError(err)
		resp.Body.Close()
		require.Equal(http.StatusFound, resp.StatusCode)
		loc, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(err)
		state := loc.Query().Get("state")
		require.NotEmpty(state)

		time.Sleep(1500 * time.Millisecond) // past the login TTL's skew
		resp, err = browser.Get(app.baseURL + "/auth/callback?state=" + url.QueryEscape(state) + "&code=whatever")
		require.NoError(err)
		require.Equal(http.StatusBadRequest, resp.StatusCode)
		assert.Contains(body(t, resp), "unknown or has expired")
	})
}

func TestRequireAuth(t *testing.T) {
	t.Run("no-cookie", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		app := startTestApp(t, 1*time.Minute)
		browser := noRedirects(app.browser(t))

		resp, err := browser.Get(app.baseURL + "/profile")
		require.NoError(err)
		resp.Body.Close()
		require.Equal(http.StatusSeeOther, resp.StatusCode)
		assert.Equal("/auth/login?return_to=%2Fprofile", resp.Header.Get("Location"))
	})
	t.Run("tampered-cookie", func(t *testing.T) {
		require := require.New(t)
		app := startTestApp(t, 1*time.Minute)

		req, err := http.NewRequest(http.MethodGet, app.baseURL+"/profile", nil)
		require.NoError(err)
		req.AddCookie(&http.Cookie{Name: app.cfg.Session.CookieName, Value: "garbage"})

		resp, err := noRedirects(app.browser(t)).Do(req)
		require.NoError(err)
		resp.Body.Close()
		require.Equal(http.StatusSeeOther, resp.StatusCode)
	})
}

func TestHandleHome(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		app := startTestApp(t, 1*time.Minute)

		resp, err := app.browser(t).Get(app.baseURL + "/")
		require.NoError(err)
		require.Equal(http.StatusOK, resp.StatusCode)
		assert.Contains(body(t, resp), "You are not logged in")
	})
}

func TestSanitizeReturnTo(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: "/"},
		{name: "relative-path", in: "/profile", want: "/profile"},
		{name: "relative-with-query", in: "/profile?tab=tokens", want: "/profile?tab=tokens"},
		{name: "absolute-url", in: "https://evil.example.com/", want: "/"},
		{name: "protocol-relative", in: "//evil.example.com/", want: "/"},
		{name: "backslashes", in: "/\\evil.example.com", want: "/"},
		{name: "no-leading-slash", in: "profile", want: "/"},
		{name: "header-injection", in: "/profile\r\nSet-Cookie: x", want: "/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeReturnTo(tt.in))
		})
	}
}
