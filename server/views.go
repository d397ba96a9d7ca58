package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/kgreely/oidcweb/session"
)

//go:embed templates/*.html.tmpl
var templatesFS embed.FS

func parseTemplates() (*template.Template, error) {
	return template.ParseFS(templatesFS, "templates/*.html.tmpl")
}

// viewData is what every page template receives.
type viewData struct {
	LoggedIn bool
	Profile  Profile
	Tokens   session.Tokens
	Error    string
}

// render executes the named page template, buffering the output so a
// template failure can still produce a clean 500 instead of a half-written
// page.
func (s *Server) render(w http.ResponseWriter, status int, name string, data viewData) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("unable to render template", "template", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, status int, message string) {
	s.render(w, status, "error", viewData{Error: message})
}
