package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCookieSecret = []byte("0123456789abcdef0123456789abcdef")

func testCodec(t *testing.T) *CookieCodec {
	t.Helper()
	c, err := NewCookieCodec("oidcweb_session", testCookieSecret, 1*time.Hour, false)
	require.NoError(t, err)
	return c
}

func TestNewCookieCodec(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		cookieName string
		secret     []byte
		ttl        time.Duration
		wantErr    bool
	}{
		{name: "valid", cookieName: "oidcweb_session", secret: testCookieSecret, ttl: 1 * time.Hour},
		{name: "empty-name", cookieName: "", secret: testCookieSecret, ttl: 1 * time.Hour, wantErr: true},
		{name: "short-secret", cookieName: "oidcweb_session", secret: []byte("too short"), ttl: 1 * time.Hour, wantErr: true},
		{name: "zero-ttl", cookieName: "oidcweb_session", secret: testCookieSecret, ttl: 0, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := NewCookieCodec(tt.cookieName, tt.secret, tt.ttl, false)
			if tt.wantErr {
				require.Error(err)
				assert.Truef(errors.Is(err, ErrInvalidParameter), "wanted \"%s\" but got \"%s\"", ErrInvalidParameter, err)
				return
			}
			require.NoError(err)
			require.NotNil(got)
		})
	}
}

func TestCookieCodec_RoundTrip(t *testing.T) {
	t.Parallel()
	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := testCodec(t)
		value, err := c.Encode("session-id")
		require.NoError(err)
		got, err := c.Decode(value)
		require.NoError(err)
		assert.Equal("session-id", got)
	})
	t.Run("empty-session-id", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := testCodec(t)
		_, err := c.Encode("")
		require.Error(err)
		assert.Truef(errors.Is(err, ErrInvalidParameter), "wanted \"%s\" but got \"%s\"", ErrInvalidParameter, err)
	})
	t.Run("wrong-key", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := testCodec(t)
		other, err := NewCookieCodec("oidcweb_session", []byte("ffffffffffffffffffffffffffffffff"), 1*time.Hour, false)
		require.NoError(err)

		value, err := c.Encode("session-id")
		require.NoError(err)
		_, err = other.Decode(value)
		require.Error(err)
		assert.Truef(errors.Is(err, ErrInvalidCookie), "wanted \"%s\" but got \"%s\"", ErrInvalidCookie, err)
	})
	t.Run("expired", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := &CookieCodec{
			name:   "oidcweb_session",
			secret: testCookieSecret,
			ttl:    -1 * time.Minute,
		}
		value, err := c.Encode("session-id")
		require.NoError(err)
		_, err = c.Decode(value)
		require.Error(err)
		assert.Truef(errors.Is(err, ErrInvalidCookie), "wanted \"%s\" but got \"%s\"", ErrInvalidCookie, err)
	})
	t.Run("garbage", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := testCodec(t)
		_, err := c.Decode("not-a-jwt")
		require.Error(err)
		assert.Truef(errors.Is(err, ErrInvalidCookie), "wanted \"%s\" but got \"%s\"", ErrInvalidCookie, err)
	})
}

func TestCookieCodec_SetAndClear(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	c := testCodec(t)

	rec := httptest.NewRecorder()
	require.NoError(c.SetCookie(rec, "session-id"))
	cookies := rec.Result().Cookies()
	require.Len(cookies, 1)
	set := cookies[0]
	assert.Equal("oidcweb_session", set.Name)
	assert.True(set.HttpOnly)
	assert.Equal(http.SameSiteLaxMode, set.SameSite)
	assert.Equal(int((1 * time.Hour).Seconds()), set.MaxAge)

	// the set cookie must read back through SessionID
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(set)
	id, err := c.SessionID(req)
	require.NoError(err)
	assert.Equal("session-id", id)

	rec = httptest.NewRecorder()
	c.ClearCookie(rec)
	cookies = rec.Result().Cookies()
	require.Len(cookies, 1)
	assert.Equal(-1, cookies[0].MaxAge)
	assert.Empty(cookies[0].Value)
}

func TestCookieCodec_SessionID(t *testing.T) {
	t.Parallel()
	t.Run("no-cookie", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := testCodec(t)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		_, err := c.SessionID(req)
		require.Error(err)
		assert.Truef(errors.Is(err, ErrNoSession), "wanted \"%s\" but got \"%s\"", ErrNoSession, err)
	})
	t.Run("tampered-cookie", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := testCodec(t)
		value, err := c.Encode("session-id")
		require.NoError(err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "oidcweb_session", Value: value + "x"})
		_, err = c.SessionID(req)
		require.Error(err)
		assert.Truef(errors.Is(err, ErrInvalidCookie), "wanted \"%s\" but got \"%s\"", ErrInvalidCookie, err)
	})
}
