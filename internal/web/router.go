package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts every page route. events, if non-nil, is served at GET /events.
func NewRouter(h *Handler, events http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", health)
	r.Get("/health/ready", ready(events))

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(staticFS())))

	r.Get("/", h.ListRecipes)

	r.Route("/receitas", func(r chi.Router) {
		r.Get("/nova", h.NewRecipeForm)
		r.Post("/nova", h.CreateRecipe)

		r.Get("/{id}", h.ShowRecipe)
		r.Get("/{id}/editar", h.EditRecipeForm)
		r.Post("/{id}/editar", h.UpdateRecipe)
		r.Get("/{id}/excluir", h.ConfirmDelete)
		r.Post("/{id}/excluir", h.DeleteRecipe)
	})

	r.Get("/login", h.LoginForm)
	r.Post("/login", h.Login)
	r.Get("/logout", h.Logout)

	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.render(w, r, http.StatusNotFound, view{Page: pageNotFound, Title: "Página não encontrada"})
	})

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// clientCounter is implemented by event streams that track their subscribers.
type clientCounter interface {
	ClientCount() int
}

// ready reports readiness plus the number of open live-update streams.
func ready(events http.Handler) http.HandlerFunc {
	counter, _ := events.(clientCounter)
	return func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]any{"status": "ok"}
		if counter != nil {
			body["live_clients"] = counter.ClientCount()
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}
