package server

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/kgreely/oidcweb/session"
)

type ctxKey int

const sessionCtxKey ctxKey = 0

// SessionFromContext returns the session requireAuth stored in the request
// context, or nil when the request is unauthenticated.
func SessionFromContext(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionCtxKey).(*session.Session)
	return s
}

// requireAuth loads the session referenced by the request's cookie and
// stores it in the context. Requests without a valid session are sent to
// the login flow with a return-to pointing back at the original URL.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.loadSession(r)
		if err != nil {
			loginURL := "/auth/login?return_to=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, loginURL, http.StatusSeeOther)
			return
		}
		ctx := context.WithValue(r.Context(), sessionCtxKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loadSession resolves the request's cookie to a stored session. Any
// failure (missing, tampered or expired cookie, unknown or expired
// session) reads as "not logged in".
func (s *Server) loadSession(r *http.Request) (*session.Session, error) {
	id, err := s.cookies.SessionID(r)
	if err != nil {
		return nil, err
	}
	return s.store.Get(r.Context(), id)
}

// logRequests logs one line per request with hclog.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
