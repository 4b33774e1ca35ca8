package web

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/starford/panela/internal/models"
	"github.com/starford/panela/internal/recipeform"
	"github.com/starford/panela/internal/session"
	"github.com/starford/panela/internal/sse"
)

// maxFormBytes bounds a form submission. Images between the 2 MiB image
// rule and this cap are rejected by validation with every field kept.
const maxFormBytes = 8 << 20

// Form field names.
const (
	fieldName             = "nome"
	fieldCategory         = "tipo"
	fieldInstructions     = "modo_de_preparo"
	fieldImage            = "imagem"
	fieldIngredientName   = "ingrediente_nome"
	fieldIngredientAmount = "ingrediente_quantidade"
	fieldAddIngredient    = "adicionar_ingrediente"
	fieldRemoveIngredient = "remover_ingrediente"
)

type formData struct {
	Edit     bool
	RecipeID int64
	Action   string
	Input    recipeform.Input
}

func (h *Handler) formView(s session.Session, data formData) view {
	title := "Nova Receita"
	if data.Edit {
		title = "Editar " + data.Input.Name
	}
	return newView(pageForm, title, s, data)
}

// NewRecipeForm handles GET /receitas/nova.
func (h *Handler) NewRecipeForm(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.guard(func(_ *http.Request, s session.Session) (session.Result, error) {
		return session.Props(h.formView(s, formData{Action: "/receitas/nova", Input: recipeform.Blank()})), nil
	}, false))
}

// CreateRecipe handles POST /receitas/nova.
func (h *Handler) CreateRecipe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	h.serve(w, r, h.guard(func(r *http.Request, s session.Session) (session.Result, error) {
		data := formData{Action: "/receitas/nova"}
		in, edited, err := parseRecipeForm(r)
		data.Input = in
		if err != nil {
			v := h.formView(s, data)
			v.Toasts, v.Status = parseErrorToast(err)
			return session.Props(v), nil
		}
		if edited {
			return session.Props(h.formView(s, data)), nil
		}

		out := h.submitter.Create(r.Context(), s.BearerToken(), in)
		if out.State != recipeform.StateSuccess {
			v := h.formView(s, data)
			v.Toasts = errorToasts(out.Messages...)
			v.Status = outcomeStatus(out)
			return session.Props(v), nil
		}

		h.publish(sse.KindCreated, out.Recipe.ID, out.Recipe.Name)
		h.flash(w, Toast{Kind: ToastSuccess, Message: out.Messages[0]})
		return session.RedirectTo(fmt.Sprintf("/receitas/%d", out.Recipe.ID)), nil
	}, false))
}

// EditRecipeForm handles GET /receitas/{id}/editar.
func (h *Handler) EditRecipeForm(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.guard(func(r *http.Request, s session.Session) (session.Result, error) {
		rec, miss, err := h.loadRecipe(r)
		if err != nil || miss != nil {
			return deref(miss), err
		}
		return session.Props(h.formView(s, formData{
			Edit:     true,
			RecipeID: rec.ID,
			Action:   fmt.Sprintf("/receitas/%d/editar", rec.ID),
			Input:    recipeform.FromRecipe(rec),
		})), nil
	}, false))
}

// UpdateRecipe handles POST /receitas/{id}/editar.
func (h *Handler) UpdateRecipe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	h.serve(w, r, h.guard(func(r *http.Request, s session.Session) (session.Result, error) {
		rec, miss, err := h.loadRecipe(r)
		if err != nil || miss != nil {
			return deref(miss), err
		}

		data := formData{Edit: true, RecipeID: rec.ID, Action: fmt.Sprintf("/receitas/%d/editar", rec.ID)}
		in, edited, err := parseRecipeForm(r)
		in.ExistingImage = rec.Image
		data.Input = in
		if err != nil {
			v := h.formView(s, data)
			v.Toasts, v.Status = parseErrorToast(err)
			return session.Props(v), nil
		}
		if edited {
			return session.Props(h.formView(s, data)), nil
		}

		out := h.submitter.Update(r.Context(), s.BearerToken(), rec.ID, in)
		if out.State != recipeform.StateSuccess {
			v := h.formView(s, data)
			v.Toasts = errorToasts(out.Messages...)
			v.Status = outcomeStatus(out)
			return session.Props(v), nil
		}

		h.publish(sse.KindUpdated, out.Recipe.ID, out.Recipe.Name)
		h.flash(w, Toast{Kind: ToastSuccess, Message: out.Messages[0]})
		return session.RedirectTo(fmt.Sprintf("/receitas/%d", rec.ID)), nil
	}, false))
}

func outcomeStatus(out recipeform.Outcome) int {
	if out.State == recipeform.StateInvalid {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

// MsgBadForm is shown when a submission cannot be parsed.
const MsgBadForm = "Formulário inválido"

// maxFieldBytes bounds a single text field.
const maxFieldBytes = 64 << 10

var (
	errBadForm = errors.New("malformed recipe form")
	// errFormTooLarge means the body hit maxFormBytes. Fields read before
	// the limit are still returned.
	errFormTooLarge = errors.New("recipe form too large")
)

// parseErrorToast maps a parse failure to its toast and status.
func parseErrorToast(err error) ([]Toast, int) {
	if errors.Is(err, errFormTooLarge) {
		return errorToasts(recipeform.MsgImageSize), http.StatusUnprocessableEntity
	}
	return errorToasts(MsgBadForm), http.StatusBadRequest
}

// parseRecipeForm reads a recipe form. edited is true when the submission
// only added or removed an ingredient row. On error in still carries
// every field that could be read.
func parseRecipeForm(r *http.Request) (in recipeform.Input, edited bool, err error) {
	values, img, err := readRecipeForm(r)
	in = recipeform.Input{
		Name:         values.Get(fieldName),
		Category:     values.Get(fieldCategory),
		Instructions: values.Get(fieldInstructions),
		Image:        img,
	}

	names := values[fieldIngredientName]
	amounts := values[fieldIngredientAmount]
	for i := range names {
		ing := models.Ingredient{Name: names[i]}
		if i < len(amounts) {
			ing.Quantity = amounts[i]
		}
		in.Ingredients = append(in.Ingredients, ing)
	}
	if len(in.Ingredients) == 0 && err != nil {
		in.Ingredients = recipeform.Blank().Ingredients
	}
	if err != nil {
		return in, false, err
	}

	if raw := values.Get(fieldRemoveIngredient); raw != "" {
		idx, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return in, false, errBadForm
		}
		if err := in.RemoveIngredient(idx); err != nil {
			return in, false, errBadForm
		}
		return in, true, nil
	}
	if values.Get(fieldAddIngredient) != "" {
		in.AddIngredient()
		return in, true, nil
	}
	return in, false, nil
}

// readRecipeForm streams the multipart body part by part so that an
// oversized image still leaves the preceding fields usable.
func readRecipeForm(r *http.Request) (url.Values, *models.ImageFile, error) {
	mr, err := r.MultipartReader()
	if errors.Is(err, http.ErrNotMultipart) {
		if err := r.ParseForm(); err != nil {
			return r.PostForm, nil, classifyReadError(err)
		}
		return r.PostForm, nil, nil
	}
	values := url.Values{}
	if err != nil {
		return values, nil, errBadForm
	}

	var img *models.ImageFile
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return values, img, nil
		}
		if err != nil {
			return values, img, classifyReadError(err)
		}

		name := part.FormName()
		switch {
		case name == fieldImage && part.FileName() != "":
			img, err = readImage(part)
		case name != "" && part.FileName() == "":
			var b []byte
			b, err = io.ReadAll(io.LimitReader(part, maxFieldBytes))
			values.Add(name, string(b))
		default:
			_, err = io.Copy(io.Discard, part)
		}
		part.Close()
		if err != nil {
			return values, img, classifyReadError(err)
		}
	}
}

func classifyReadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errFormTooLarge
	}
	return errBadForm
}

// readImage keeps at most one byte past the size limit, which is enough
// for the image rule to reject it, and discards the rest. It returns nil
// for an empty file.
func readImage(part *multipart.Part) (*models.ImageFile, error) {
	data, err := io.ReadAll(io.LimitReader(part, recipeform.ImageMaxBytes+1))
	if err != nil {
		return nil, err
	}
	img := &models.ImageFile{
		Filename:    part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
		Data:        data,
	}
	if _, err := io.Copy(io.Discard, part); err != nil {
		return img, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return img, nil
}
