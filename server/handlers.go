package server

import (
	"net/http"
	"strings"

	"github.com/kgreely/oidcweb/oidc"
	"github.com/kgreely/oidcweb/session"
)

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	data := viewData{}
	if sess, err := s.loadSession(r); err == nil {
		data.LoggedIn = true
		data.Profile = profileClaims(sess.Profile)
	}
	s.render(w, http.StatusOK, "home", data)
}

// handleLogin kicks off the authorization code flow. The optional
// return_to query parameter says where the user lands once the flow
// completes; only site-relative paths are honored.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	returnTo := sanitizeReturnTo(r.URL.Query().Get("return_to"))

	// already logged in, no need for a provider round trip
	if _, err := s.loadSession(r); err == nil {
		http.Redirect(w, r, returnTo, http.StatusFound)
		return
	}

	req, err := oidc.NewRequest(s.cfg.Auth.LoginTTL, oidc.WithReturnTo(returnTo))
	if err != nil {
		s.logger.Error("unable to create login request", "error", err)
		s.renderError(w, http.StatusInternalServerError, "Login is unavailable right now.")
		return
	}
	authURL, err := s.provider.AuthURL(r.Context(), req)
	if err != nil {
		s.logger.Error("unable to build provider auth URL", "error", err)
		s.renderError(w, http.StatusInternalServerError, "Login is unavailable right now.")
		return
	}
	s.pending.Add(req)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// handleCallback is the provider's redirect target. It correlates the
// response with a pending login via state, exchanges the code for tokens,
// creates the session and sends the user to the login's return-to.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errCode := q.Get("error"); errCode != "" {
		s.logger.Error("provider returned an error response",
			"error", errCode,
			"error_description", q.Get("error_description"),
		)
		s.renderError(w, http.StatusUnauthorized, "The provider rejected the login.")
		return
	}

	state := q.Get("state")
	if state == "" {
		s.renderError(w, http.StatusBadRequest, "The login response is missing its state.")
		return
	}
	req, err := s.pending.Take(state)
	if err != nil {
		s.logger.Error("callback state does not match a pending login", "error", err)
		s.renderError(w, http.StatusBadRequest, "This login attempt is unknown or has expired. Please try again.")
		return
	}

	tk, err := s.provider.Exchange(r.Context(), req, state, q.Get("code"))
	if err != nil {
		s.logger.Error("auth code exchange failed", "error", err)
		s.renderError(w, http.StatusUnauthorized, "Login failed. Please try again.")
		return
	}

	var claims map[string]interface{}
	if err := tk.IDToken().Claims(&claims); err != nil {
		s.logger.Error("unable to read id_token claims", "error", err)
		s.renderError(w, http.StatusInternalServerError, "Login failed. Please try again.")
		return
	}

	sess, err := session.New(session.Tokens{
		IDToken:      string(tk.IDToken()),
		AccessToken:  string(tk.AccessToken()),
		RefreshToken: string(tk.RefreshToken()),
	}, claims, s.cfg.Session.TTL)
	if err != nil {
		s.logger.Error("unable to create session", "error", err)
		s.renderError(w, http.StatusInternalServerError, "Login failed. Please try again.")
		return
	}
	if err := s.store.Create(r.Context(), sess); err != nil {
		s.logger.Error("unable to store session", "error", err)
		s.renderError(w, http.StatusInternalServerError, "Login failed. Please try again.")
		return
	}
	if err := s.cookies.SetCookie(w, sess.ID); err != nil {
		s.logger.Error("unable to set session cookie", "error", err)
		s.renderError(w, http.StatusInternalServerError, "Login failed. Please try again.")
		return
	}

	returnTo := req.ReturnTo()
	if returnTo == "" {
		returnTo = "/"
	}
	http.Redirect(w, r, returnTo, http.StatusSeeOther)
}

// handleLogout signs the user out of both halves of the login: it deletes
// the local session and clears its cookie, then sends the user to the
// provider's logout URL so the provider session ends too. The provider
// redirects back to the fixed post-logout URL afterwards.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	if err := s.store.Delete(r.Context(), sess.ID); err != nil {
		s.logger.Error("unable to delete session", "error", err)
	}
	s.cookies.ClearCookie(w)

	logoutURL, err := s.provider.LogoutURL(oidc.IDToken(sess.Tokens.IDToken))
	if err != nil {
		s.logger.Error("unable to build provider logout URL", "error", err)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, logoutURL, http.StatusFound)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	s.render(w, http.StatusOK, "profile", viewData{
		LoggedIn: true,
		Profile:  profileClaims(sess.Profile),
		Tokens:   sess.Tokens,
	})
}

// sanitizeReturnTo restricts a caller-supplied return-to to site-relative
// paths. Anything else, including protocol-relative and scheme-qualified
// URLs, falls back to the application root.
func sanitizeReturnTo(raw string) string {
	switch {
	case raw == "":
		return "/"
	case !strings.HasPrefix(raw, "/"):
		return "/"
	case strings.HasPrefix(raw, "//"):
		return "/"
	case strings.ContainsAny(raw, "\\\r\n"):
		return "/"
	}
	return raw
}
