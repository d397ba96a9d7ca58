package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// cookieIssuer is the iss claim stamped into every session cookie.
const cookieIssuer = "oidcweb"

// minSecretLen is the minimum HMAC secret length accepted for signing
// cookies.
const minSecretLen = 32

// CookieCodec signs and verifies the browser session cookie. The cookie
// value is an HS256-signed JWT whose subject is the session id; tampered or
// expired cookies simply read as "no session".
type CookieCodec struct {
	name   string
	secret []byte
	ttl    time.Duration
	secure bool
}

// NewCookieCodec creates a codec for the named cookie. The secret must be
// at least 32 bytes.
func NewCookieCodec(name string, secret []byte, ttl time.Duration, secure bool) (*CookieCodec, error) {
	const op = "session.NewCookieCodec"
	if name == "" {
		return nil, fmt.Errorf("%s: cookie name is empty: %w", op, ErrInvalidParameter)
	}
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("%s: cookie secret is shorter than %d bytes: %w", op, minSecretLen, ErrInvalidParameter)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%s: ttl not greater than zero: %w", op, ErrInvalidParameter)
	}
	return &CookieCodec{
		name:   name,
		secret: secret,
		ttl:    ttl,
		secure: secure,
	}, nil
}

// Encode signs a cookie value carrying the session id.
func (c *CookieCodec) Encode(sessionID string) (string, error) {
	const op = "session.(CookieCodec).Encode"
	if sessionID == "" {
		return "", fmt.Errorf("%s: session id is empty: %w", op, ErrInvalidParameter)
	}
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    cookieIssuer,
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	})
	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("%s: unable to sign cookie: %w", op, err)
	}
	return signed, nil
}

// Decode verifies a cookie value and returns the session id it carries.
func (c *CookieCodec) Decode(value string) (string, error) {
	const op = "session.(CookieCodec).Decode"
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(value, &claims,
		func(t *jwt.Token) (interface{}, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cookieIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%s: %s: %w", op, err.Error(), ErrInvalidCookie)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%s: cookie has no subject: %w", op, ErrInvalidCookie)
	}
	return claims.Subject, nil
}

// SetCookie writes the signed session cookie for the given session id.
func (c *CookieCodec) SetCookie(w http.ResponseWriter, sessionID string) error {
	const op = "session.(CookieCodec).SetCookie"
	value, err := c.Encode(sessionID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(c.ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearCookie expires the session cookie in the browser.
func (c *CookieCodec) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionID reads and verifies the session cookie from the request,
// returning the session id it carries. A missing cookie returns
// ErrNoSession.
func (c *CookieCodec) SessionID(r *http.Request) (string, error) {
	const op = "session.(CookieCodec).SessionID"
	cookie, err := r.Cookie(c.name)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", fmt.Errorf("%s: %w", op, ErrNoSession)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	id, err := c.Decode(cookie.Value)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}
