// Package web serves the Panela Mágica pages using chi and html/template.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/panela/internal/apiclient"
	"github.com/starford/panela/internal/markdown"
	"github.com/starford/panela/internal/models"
	"github.com/starford/panela/internal/recipeform"
	"github.com/starford/panela/internal/session"
)

// RecipeAPI is the part of the API client the pages read from.
type RecipeAPI interface {
	ListRecipes(ctx context.Context) ([]models.Recipe, error)
	GetRecipe(ctx context.Context, id int64) (*models.Recipe, error)
	DeleteRecipe(ctx context.Context, token string, id int64) error
	SignIn(ctx context.Context, username, password string) (*models.SignedInUser, error)
}

// Publisher announces recipe changes to live clients.
type Publisher interface {
	PublishRecipeEvent(kind string, id int64, name string)
}

// Options tune cookies and redirects.
type Options struct {
	CookieName   string
	SecureCookie bool
	LoginPath    string
}

// Handler holds page handlers and their collaborators.
type Handler struct {
	api       RecipeAPI
	resolver  *session.Resolver
	submitter *recipeform.Submitter
	renderer  *Renderer
	md        *markdown.Renderer
	events    Publisher
	opts      Options
	logger    *slog.Logger
}

// NewHandler creates a Handler. events may be nil.
func NewHandler(
	api RecipeAPI,
	resolver *session.Resolver,
	submitter *recipeform.Submitter,
	renderer *Renderer,
	events Publisher,
	opts Options,
	logger *slog.Logger,
) *Handler {
	if opts.CookieName == "" {
		opts.CookieName = session.DefaultCookieName
	}
	if opts.LoginPath == "" {
		opts.LoginPath = session.DefaultRedirect
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		api:       api,
		resolver:  resolver,
		submitter: submitter,
		renderer:  renderer,
		md:        markdown.New(),
		events:    events,
		opts:      opts,
		logger:    logger,
	}
}

// view is the data every page template receives.
type view struct {
	Page    string
	Title   string
	Session session.Session
	Toasts  []Toast
	Status  int
	Data    any
}

func newView(page, title string, s session.Session, data any) view {
	return view{Page: page, Title: title, Session: s, Data: data}
}

// guard wraps loader with the auth policy. Pages that tolerate anonymous
// visitors pass public=true.
func (h *Handler) guard(loader session.Loader, public bool) session.Loader {
	opts := []session.Option{
		session.CookieName(h.opts.CookieName),
		session.WithRedirect(h.opts.LoginPath),
	}
	if public {
		opts = append(opts, session.AllowUnauthenticated())
	}
	return session.WithAuth(h.resolver, loader, opts...)
}

// serve runs loader and turns its Result into a response.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, loader session.Loader) {
	res, err := loader(r, session.Session{})
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	switch {
	case res.Redirect != nil:
		code := http.StatusFound
		if res.Redirect.Permanent {
			code = http.StatusPermanentRedirect
		}
		http.Redirect(w, r, res.Redirect.Destination, code)

	case res.NotFound:
		h.render(w, r, http.StatusNotFound, view{Page: pageNotFound, Title: "Receita não encontrada"})

	default:
		v, ok := res.Props.(view)
		if !ok {
			h.logger.Error("loader returned unexpected props", slog.String("path", r.URL.Path))
			h.renderError(w, r, errors.New("unexpected props"))
			return
		}
		status := v.Status
		if status == 0 {
			status = http.StatusOK
		}
		h.render(w, r, status, v)
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, v view) {
	v.Toasts = append(h.takeFlash(w, r), v.Toasts...)
	h.renderer.Render(w, status, v.Page, v)
}

// renderError shows an error page. API failures surface their fixed
// message; anything else is reported generically.
func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("page load failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))

	msg := "Algo deu errado. Tente novamente"
	status := http.StatusInternalServerError
	var reqErr *apiclient.RequestError
	if errors.As(err, &reqErr) {
		msg = reqErr.Message
		status = http.StatusBadGateway
	}
	h.render(w, r, status, view{
		Page:   pageError,
		Title:  "Erro",
		Toasts: errorToasts(msg),
		Data:   msg,
	})
}

// recipeID parses the {id} URL parameter.
func recipeID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// loadRecipe fetches the recipe named by the URL, mapping absence to NotFound.
func (h *Handler) loadRecipe(r *http.Request) (*models.Recipe, *session.Result, error) {
	id, ok := recipeID(r)
	if !ok {
		nf := session.NotFound()
		return nil, &nf, nil
	}
	rec, err := h.api.GetRecipe(r.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		nf := session.NotFound()
		return nil, &nf, nil
	}
	return rec, nil, nil
}

func (h *Handler) publish(kind string, id int64, name string) {
	if h.events != nil {
		h.events.PublishRecipeEvent(kind, id, name)
	}
}
