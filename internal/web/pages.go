package web

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/starford/panela/internal/models"
	"github.com/starford/panela/internal/session"
	"github.com/starford/panela/internal/sse"
)

// Toast texts for page actions.
const (
	MsgDeleted        = "Receita excluída com sucesso"
	MsgDeleteFailed   = "Erro ao excluir a receita"
	MsgFillAllFields  = "Preencha todos os campos"
	MsgBadCredentials = "Usuário ou senha incorretos"
	MsgWelcomeBack    = "Bem vindo de volta, "
)

type detailData struct {
	Recipe       *models.Recipe
	Instructions template.HTML
}

type loginData struct {
	Username string
}

// ListRecipes handles GET /.
func (h *Handler) ListRecipes(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.guard(func(r *http.Request, s session.Session) (session.Result, error) {
		recipes, err := h.api.ListRecipes(r.Context())
		if err != nil {
			return session.Result{}, err
		}
		return session.Props(newView(pageList, "Panela Mágica", s, recipes)), nil
	}, true))
}

// ShowRecipe handles GET /receitas/{id}.
func (h *Handler) ShowRecipe(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.guard(func(r *http.Request, s session.Session) (session.Result, error) {
		rec, miss, err := h.loadRecipe(r)
		if err != nil || miss != nil {
			return deref(miss), err
		}
		html, err := h.md.Render(rec.Instructions)
		if err != nil {
			h.logger.Warn("instructions render failed", slog.Int64("id", rec.ID), slog.String("error", err.Error()))
			html = template.HTML(template.HTMLEscapeString(rec.Instructions)) //nolint:gosec // escaped
		}
		return session.Props(newView(pageDetail, rec.Name, s, detailData{Recipe: rec, Instructions: html})), nil
	}, true))
}

// ConfirmDelete handles GET /receitas/{id}/excluir.
func (h *Handler) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.guard(func(r *http.Request, s session.Session) (session.Result, error) {
		rec, miss, err := h.loadRecipe(r)
		if err != nil || miss != nil {
			return deref(miss), err
		}
		return session.Props(newView(pageDelete, "Excluir "+rec.Name, s, rec)), nil
	}, false))
}

// DeleteRecipe handles POST /receitas/{id}/excluir.
func (h *Handler) DeleteRecipe(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.guard(func(r *http.Request, s session.Session) (session.Result, error) {
		id, ok := recipeID(r)
		if !ok {
			return session.NotFound(), nil
		}
		if err := h.api.DeleteRecipe(r.Context(), s.BearerToken(), id); err != nil {
			h.logger.Error("recipe delete failed", slog.Int64("id", id), slog.String("error", err.Error()))
			h.flash(w, Toast{Kind: ToastError, Message: MsgDeleteFailed})
			return session.RedirectTo(fmt.Sprintf("/receitas/%d", id)), nil
		}
		h.publish(sse.KindDeleted, id, "")
		h.flash(w, Toast{Kind: ToastSuccess, Message: MsgDeleted})
		return session.RedirectTo("/"), nil
	}, false))
}

// LoginForm handles GET /login.
func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.guard(func(_ *http.Request, s session.Session) (session.Result, error) {
		return session.Props(newView(pageLogin, "Login", s, loginData{})), nil
	}, true))
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.guard(func(r *http.Request, s session.Session) (session.Result, error) {
		username := r.FormValue("username")
		password := r.FormValue("password")

		retry := func(msg string, status int) session.Result {
			v := newView(pageLogin, "Login", s, loginData{Username: username})
			v.Toasts = errorToasts(msg)
			v.Status = status
			return session.Props(v)
		}

		if username == "" || password == "" {
			return retry(MsgFillAllFields, http.StatusUnprocessableEntity), nil
		}

		user, err := h.api.SignIn(r.Context(), username, password)
		if err != nil {
			h.logger.Error("sign-in failed", slog.String("error", err.Error()))
			return retry(MsgBadCredentials, http.StatusBadGateway), nil
		}
		if user == nil {
			return retry(MsgBadCredentials, http.StatusUnauthorized), nil
		}

		h.setAuthCookie(w, user.Token)
		h.flash(w, Toast{Kind: ToastSuccess, Message: MsgWelcomeBack + user.Name})
		return session.RedirectTo("/"), nil
	}, true))
}

// Logout handles GET /logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.guard(func(*http.Request, session.Session) (session.Result, error) {
		h.clearAuthCookie(w)
		return session.RedirectTo(h.opts.LoginPath), nil
	}, false))
}

func deref(r *session.Result) session.Result {
	if r == nil {
		return session.Result{}
	}
	return *r
}
