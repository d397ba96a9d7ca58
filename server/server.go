// server is the HTTP layer: a chi router serving the home, login,
// callback, logout and profile pages, with the OIDC round trip handled by
// the oidc package and logged-in state by the session package.
package server

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"

	"github.com/kgreely/oidcweb/config"
	"github.com/kgreely/oidcweb/oidc"
	"github.com/kgreely/oidcweb/session"
)

// Server wires the OIDC provider, session store and views behind an http
// router.
type Server struct {
	logger   hclog.Logger
	cfg      *config.Config
	provider *oidc.Provider
	store    session.Store
	cookies  *session.CookieCodec
	pending  *loginCache
	tmpl     *template.Template
}

// New creates a Server. All collaborators are required.
func New(cfg *config.Config, p *oidc.Provider, store session.Store, cookies *session.CookieCodec, logger hclog.Logger) (*Server, error) {
	const op = "server.New"
	switch {
	case cfg == nil:
		return nil, fmt.Errorf("%s: config is nil: %w", op, oidc.ErrNilParameter)
	case p == nil:
		return nil, fmt.Errorf("%s: provider is nil: %w", op, oidc.ErrNilParameter)
	case store == nil:
		return nil, fmt.Errorf("%s: session store is nil: %w", op, oidc.ErrNilParameter)
	case cookies == nil:
		return nil, fmt.Errorf("%s: cookie codec is nil: %w", op, oidc.ErrNilParameter)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to parse templates: %w", op, err)
	}
	return &Server{
		logger:   logger,
		cfg:      cfg,
		provider: p,
		store:    store,
		cookies:  cookies,
		pending:  newLoginCache(),
		tmpl:     tmpl,
	}, nil
}

// Router builds the http.Handler serving all of the application's routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleHome)
	r.Get("/auth/login", s.handleLogin)
	r.Get(s.cfg.Auth.CallbackPath, s.handleCallback)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/auth/logout", s.handleLogout)
		r.Get("/profile", s.handleProfile)
	})

	return r
}
