package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/starford/panela/internal/models"
	"github.com/starford/panela/internal/relativetime"
)

//go:embed templates/*.html static/*
var assets embed.FS

// Page template names.
const (
	pageList     = "list"
	pageDetail   = "detail"
	pageForm     = "form"
	pageDelete   = "delete"
	pageLogin    = "login"
	pageNotFound = "notfound"
	pageError    = "error"
)

var pages = []string{pageList, pageDetail, pageForm, pageDelete, pageLogin, pageNotFound, pageError}

// Renderer holds one parsed template set per page, each combining the
// shared layout with the page's own blocks.
type Renderer struct {
	fsys   fs.FS
	logger *slog.Logger

	mu    sync.RWMutex
	pages map[string]*template.Template
}

// NewRenderer parses the templates found in dir, or the embedded ones when dir is empty.
func NewRenderer(dir string, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var fsys fs.FS
	if dir == "" {
		sub, err := fs.Sub(assets, "templates")
		if err != nil {
			return nil, fmt.Errorf("web: embedded templates: %w", err)
		}
		fsys = sub
	} else {
		fsys = os.DirFS(dir)
	}

	r := &Renderer{fsys: fsys, logger: logger}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-parses every page. On failure the previous set stays active.
func (r *Renderer) Reload() error {
	parsed := make(map[string]*template.Template, len(pages))
	for _, name := range pages {
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(r.fsys, "base.html", name+".html")
		if err != nil {
			return fmt.Errorf("web: parse %s: %w", name, err)
		}
		parsed[name] = t
	}

	r.mu.Lock()
	r.pages = parsed
	r.mu.Unlock()
	return nil
}

// Render writes page with status. Output is buffered so a template error
// still yields a clean 500.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data any) {
	r.mu.RLock()
	t, ok := r.pages[page]
	r.mu.RUnlock()
	if !ok {
		r.logger.Error("unknown page", slog.String("page", page))
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		r.logger.Error("template execution failed", slog.String("page", page), slog.String("error", err.Error()))
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

var templateFuncs = template.FuncMap{
	"relative":   relativetime.FromEpoch,
	"categories": func() []string { return models.Categories },
	"known":      models.IsKnownCategory,
	"lower":      strings.ToLower,
}

// staticFS serves the embedded stylesheet and script.
func staticFS() http.FileSystem {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
