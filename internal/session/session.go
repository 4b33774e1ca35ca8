// Package session resolves the signed-in user from the auth cookie and
// gates page loaders behind it.
package session

import (
	"context"
	"log/slog"

	"github.com/starford/panela/internal/models"
)

// DefaultCookieName holds the bearer token issued at sign-in.
const DefaultCookieName = "x-panela-magica-auth"

// Session is derived per request and passed explicitly to loaders.
// User and Token are nil when unauthenticated.
type Session struct {
	User  *models.User
	Token *string
}

// Authenticated reports whether a user was resolved.
func (s Session) Authenticated() bool {
	return s.User != nil
}

// BearerToken returns the token or "" when absent.
func (s Session) BearerToken() string {
	if s.Token == nil {
		return ""
	}
	return *s.Token
}

// UserLookup fetches the user owning a token. It is satisfied by *apiclient.Client.
type UserLookup interface {
	Me(ctx context.Context, token string) (*models.User, error)
}

// Resolver turns a token into a user.
type Resolver struct {
	lookup UserLookup
	logger *slog.Logger
}

// NewResolver creates a Resolver backed by lookup. A nil logger uses slog.Default.
func NewResolver(lookup UserLookup, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{lookup: lookup, logger: logger}
}

// Resolve returns the user for token, or nil on any failure. It never errors.
func (r *Resolver) Resolve(ctx context.Context, token string) *models.User {
	if token == "" {
		return nil
	}
	u, err := r.lookup.Me(ctx, token)
	if err != nil {
		r.logger.Debug("session: resolve failed", slog.String("error", err.Error()))
		return nil
	}
	return u
}
