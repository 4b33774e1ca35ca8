package apiclient

import (
	"context"
	"errors"
	"net/http"

	"github.com/starford/panela/internal/models"
)

type signInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignIn exchanges credentials for a user and bearer token. Rejected
// credentials yield (nil, nil); only transport failures return an error.
func (c *Client) SignIn(ctx context.Context, username, password string) (*models.SignedInUser, error) {
	var u models.SignedInUser
	err := c.call(ctx, "sign in", "sign-in failed", http.MethodPost, "/users/sign-in", "",
		signInRequest{Username: username, Password: password}, &u)
	if err != nil {
		return nil, rejectedAsNil(err)
	}
	return &u, nil
}

// Me returns the user owning token. Any non-success status yields (nil, nil).
func (c *Client) Me(ctx context.Context, token string) (*models.User, error) {
	var u models.User
	if err := c.call(ctx, "me", "lookup failed", http.MethodGet, "/users/me", token, nil, &u); err != nil {
		return nil, rejectedAsNil(err)
	}
	return &u, nil
}

// rejectedAsNil drops errors that stem from an API status answer.
func rejectedAsNil(err error) error {
	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr.Status != 0 && reqErr.Err == nil {
		return nil
	}
	return err
}
