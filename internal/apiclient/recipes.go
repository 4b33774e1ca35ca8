package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/starford/panela/internal/models"
)

// ImageField is the multipart field name of the image upload.
const ImageField = "imagem"

// ListRecipes returns the whole catalog.
func (c *Client) ListRecipes(ctx context.Context) ([]models.Recipe, error) {
	var recipes []models.Recipe
	if err := c.call(ctx, "list recipes", MsgListFailed, http.MethodGet, "/receitas", "", nil, &recipes); err != nil {
		return nil, err
	}
	if recipes == nil {
		recipes = []models.Recipe{}
	}
	return recipes, nil
}

// GetRecipe returns the recipe with the given id. A 404 yields (nil, nil):
// absence is an expected outcome, not an error.
func (c *Client) GetRecipe(ctx context.Context, id int64) (*models.Recipe, error) {
	var r models.Recipe
	err := c.call(ctx, "get recipe", MsgGetFailed, http.MethodGet, fmt.Sprintf("/receitas/%d", id), "", nil, &r)
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) && reqErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// UploadImage stores img and returns its public URL.
func (c *Client) UploadImage(ctx context.Context, token string, img *models.ImageFile) (string, error) {
	const op = "upload image"
	if img == nil {
		return "", &RequestError{Op: op, Message: MsgUploadFailed, Err: errors.New("no image")}
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     ImageField,
		"filename": img.Filename,
	}))
	ct := img.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := mw.CreatePart(h)
	if err != nil {
		return "", &RequestError{Op: op, Message: MsgUploadFailed, Err: err}
	}
	if _, err := part.Write(img.Data); err != nil {
		return "", &RequestError{Op: op, Message: MsgUploadFailed, Err: err}
	}
	if err := mw.Close(); err != nil {
		return "", &RequestError{Op: op, Message: MsgUploadFailed, Err: err}
	}

	resp, err := c.send(ctx, http.MethodPost, "/receitas/imagem", token, mw.FormDataContentType(), &buf)
	if err != nil {
		return "", &RequestError{Op: op, Message: MsgUploadFailed, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	var url string
	if err := decodeResponse(resp, op, MsgUploadFailed, &url); err != nil {
		return "", err
	}
	return url, nil
}

// CreateRecipe registers a new recipe on behalf of the token's user.
func (c *Client) CreateRecipe(ctx context.Context, token string, in models.RecipeInput) (*models.Recipe, error) {
	var r models.Recipe
	if err := c.call(ctx, "create recipe", MsgCreateFailed, http.MethodPost, "/receitas", token, in, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateRecipe replaces the recipe with the given id.
func (c *Client) UpdateRecipe(ctx context.Context, token string, id int64, in models.RecipeInput) (*models.Recipe, error) {
	var r models.Recipe
	if err := c.call(ctx, "update recipe", MsgUpdateFailed, http.MethodPut, fmt.Sprintf("/receitas/%d", id), token, in, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteRecipe removes the recipe with the given id.
func (c *Client) DeleteRecipe(ctx context.Context, token string, id int64) error {
	return c.call(ctx, "delete recipe", MsgDeleteFailed, http.MethodDelete, fmt.Sprintf("/receitas/%d", id), token, nil, nil)
}
