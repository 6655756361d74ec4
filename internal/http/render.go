package http

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"signin/internal/auth"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	pageIndex   = "index.html"
	pageProfile = "profile.html"
	pageError   = "error.html"
)

// pageData is the view model shared by every template.
type pageData struct {
	User  *auth.User
	Error string
	Now   time.Time
}

// Renderer executes the embedded HTML templates.
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
	now    func() time.Time
}

// NewRenderer parses every page against the shared layout.
func NewRenderer(logger *slog.Logger) (*Renderer, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{pageIndex, pageProfile, pageError} {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &Renderer{
		pages:  pages,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Render writes page with status. The page is buffered so a template failure
// never produces a half-written response.
func (rd *Renderer) Render(w http.ResponseWriter, status int, page string, data pageData) {
	tmpl, ok := rd.pages[page]
	if !ok {
		rd.logger.Error("unknown template", "page", page)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	data.Now = rd.now().UTC()

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		rd.logger.Error("template execution failed", "page", page, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Error renders the shared error page with message.
func (rd *Renderer) Error(w http.ResponseWriter, r *http.Request, status int, message string) {
	rd.Render(w, status, pageError, pageData{
		User:  UserFromContext(r.Context()),
		Error: message,
	})
}
