// Package apiclient talks to the remote recipe and user HTTP API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/starford/panela/internal/apperr"
)

// DefaultTimeout bounds every request when no http.Client is supplied.
const DefaultTimeout = 10 * time.Second

// AuthHeader carries the bearer credential expected by the API.
const AuthHeader = "X-Authorization"

// Fixed user-facing failure messages, one per operation.
const (
	MsgListFailed   = "Erro ao buscar as receitas"
	MsgGetFailed    = "Erro ao buscar a receita"
	MsgUploadFailed = "Erro ao salvar a imagem"
	MsgCreateFailed = "Erro ao cadastrar a receita"
	MsgUpdateFailed = "Erro ao atualizar a receita"
	MsgDeleteFailed = "Erro ao deletar a receita"
)

// RequestError is returned when the API answers with a non-success status
// or cannot be reached. Status is 0 for transport failures.
type RequestError struct {
	Op      string
	Status  int
	Message string
	Body    string
	Err     error
}

func (e *RequestError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("apiclient: %s: %s: %v", e.Op, e.Message, e.Err)
	case e.Body != "":
		return fmt.Sprintf("apiclient: %s: %s (status %d): %s", e.Op, e.Message, e.Status, e.Body)
	default:
		return fmt.Sprintf("apiclient: %s: %s (status %d)", e.Op, e.Message, e.Status)
	}
}

// Is makes every RequestError match apperr.ErrRequestFailed.
func (e *RequestError) Is(target error) bool {
	return target == apperr.ErrRequestFailed
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Client is a thin REST client for the recipe API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a client for baseURL. A non-positive timeout selects DefaultTimeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// send builds and executes one request. token may be empty.
func (c *Client) send(ctx context.Context, method, path, token, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set(AuthHeader, "Bearer "+token)
	}
	return c.HTTPClient.Do(req)
}

// call performs a request whose failure maps to a RequestError carrying msg.
// in is JSON-encoded when non-nil; out is decoded from a 2xx body when non-nil.
func (c *Client) call(ctx context.Context, op, msg, method, path, token string, in, out any) error {
	var (
		body        io.Reader
		contentType string
	)
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return &RequestError{Op: op, Message: msg, Err: fmt.Errorf("encode body: %w", err)}
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}

	resp, err := c.send(ctx, method, path, token, contentType, body)
	if err != nil {
		return &RequestError{Op: op, Message: msg, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	return decodeResponse(resp, op, msg, out)
}

func decodeResponse(resp *http.Response, op, msg string, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &RequestError{
			Op:      op,
			Status:  resp.StatusCode,
			Message: msg,
			Body:    strings.TrimSpace(string(snippet)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{Op: op, Status: resp.StatusCode, Message: msg, Err: fmt.Errorf("decode body: %w", err)}
	}
	return nil
}
