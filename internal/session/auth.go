package session

import (
	"net/http"
)

// DefaultRedirect is where unauthenticated visitors are sent.
const DefaultRedirect = "/login"

// Redirect asks the caller to navigate elsewhere.
type Redirect struct {
	Destination string
	Permanent   bool
}

// Result is the outcome of a page loader: exactly one of Redirect,
// NotFound or Props is meaningful, checked in that order.
type Result struct {
	Redirect *Redirect
	NotFound bool
	Props    any
}

// RedirectTo builds a redirect result.
func RedirectTo(dest string) Result {
	return Result{Redirect: &Redirect{Destination: dest}}
}

// NotFound builds a not-found result.
func NotFound() Result {
	return Result{NotFound: true}
}

// Props builds a result carrying page data.
func Props(v any) Result {
	return Result{Props: v}
}

// SessionProps are the props produced when no inner loader is supplied.
type SessionProps struct {
	Session Session
}

// Loader produces the data a page renders.
type Loader func(r *http.Request, s Session) (Result, error)

// Option configures WithAuth.
type Option func(*authOptions)

type authOptions struct {
	redirectTo           string
	allowUnauthenticated bool
	cookieName           string
}

// WithRedirect overrides the destination for unauthenticated visitors.
func WithRedirect(dest string) Option {
	return func(o *authOptions) {
		o.redirectTo = dest
	}
}

// AllowUnauthenticated lets the loader run with a nil user.
func AllowUnauthenticated() Option {
	return func(o *authOptions) {
		o.allowUnauthenticated = true
	}
}

// CookieName overrides the auth cookie name.
func CookieName(name string) Option {
	return func(o *authOptions) {
		o.cookieName = name
	}
}

// WithAuth wraps next so that it only runs for a resolved session, unless
// AllowUnauthenticated is set. next may be nil, in which case the session
// itself becomes the props. The session is resolved on every call.
func WithAuth(resolver *Resolver, next Loader, opts ...Option) Loader {
	o := authOptions{
		redirectTo: DefaultRedirect,
		cookieName: DefaultCookieName,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return func(r *http.Request, _ Session) (Result, error) {
		var token *string
		if c, err := r.Cookie(o.cookieName); err == nil {
			v := c.Value
			token = &v
		}

		if token == nil && !o.allowUnauthenticated {
			return RedirectTo(o.redirectTo), nil
		}

		var raw string
		if token != nil {
			raw = *token
		}
		user := resolver.Resolve(r.Context(), raw)
		if user == nil && !o.allowUnauthenticated {
			return RedirectTo(o.redirectTo), nil
		}

		s := Session{User: user, Token: token}
		if next != nil {
			return next(r, s)
		}
		return Props(SessionProps{Session: s}), nil
	}
}
