// Package handler contains the HTTP handlers. Handlers parse requests, call
// a service and write the response; they hold no business rules.
package handler

import (
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/sakif/repochat/internal/auth"
	"github.com/sakif/repochat/internal/model"
)

// PageHandler serves the sign-in page and the protected repositories page.
// Templates are parsed once at startup; each page is base.html plus its own
// "content" block.
type PageHandler struct {
	login        *template.Template
	repositories *template.Template
	providers    []providerLink
	landingPath  string
	logger       *slog.Logger
}

type providerLink struct {
	Kind  model.Provider
	Label string
}

var providerLabels = map[model.Provider]string{
	model.ProviderGitHub: "GitHub",
	model.ProviderGitLab: "GitLab",
}

// NewPageHandler parses the templates in fsys. providers are the sign-in
// options shown on the login page.
func NewPageHandler(fsys fs.FS, providers []model.Provider, landingPath string, logger *slog.Logger) (*PageHandler, error) {
	login, err := template.ParseFS(fsys, "base.html", "login.html")
	if err != nil {
		return nil, err
	}
	repositories, err := template.ParseFS(fsys, "base.html", "repositories.html")
	if err != nil {
		return nil, err
	}

	links := make([]providerLink, 0, len(providers))
	for _, p := range providers {
		links = append(links, providerLink{Kind: p, Label: providerLabels[p]})
	}

	return &PageHandler{
		login:        login,
		repositories: repositories,
		providers:    links,
		landingPath:  landingPath,
		logger:       logger,
	}, nil
}

// HandleLogin renders the sign-in page. The callbackUrl set by the auth gate
// is passed through to the provider links.
//
// HTTP: GET /login?callbackUrl=/repositories
func (h *PageHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	callback := r.URL.Query().Get(auth.CallbackParam)
	if !isLocalPath(callback) {
		callback = h.landingPath
	}

	var errMsg string
	if r.URL.Query().Get("error") == "denied" {
		errMsg = "Sign-in was cancelled."
	}

	h.render(w, h.login, map[string]any{
		"Title":       "Sign in · repochat",
		"Providers":   h.providers,
		"CallbackURL": callback,
		"Error":       errMsg,
	})
}

// HandleRepositories renders the repositories page. Only reachable through
// the auth gate, which has put the session in the context.
//
// HTTP: GET /repositories
func (h *PageHandler) HandleRepositories(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFromContext(r.Context())
	h.render(w, h.repositories, map[string]any{
		"Title":   "Repositories · repochat",
		"Session": session,
	})
}

func (h *PageHandler) render(w http.ResponseWriter, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
