package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/starford/panela/internal/models"
)

type stubLookup struct {
	users map[string]*models.User
	err   error
	calls int
}

func (s *stubLookup) Me(_ context.Context, token string) (*models.User, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.users[token], nil
}

func newStub() *stubLookup {
	return &stubLookup{users: map[string]*models.User{
		"good": {ID: 1, Name: "Ana"},
	}}
}

func requestWithCookie(value string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if value != "" {
		r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: value})
	}
	return r
}

func TestResolveReturnsNilOnFailure(t *testing.T) {
	stub := newStub()
	stub.err = errors.New("boom")
	res := NewResolver(stub, nil)

	if u := res.Resolve(context.Background(), "good"); u != nil {
		t.Fatalf("user = %+v, want nil", u)
	}
}

func TestResolveEmptyTokenSkipsLookup(t *testing.T) {
	stub := newStub()
	res := NewResolver(stub, nil)

	if u := res.Resolve(context.Background(), ""); u != nil {
		t.Fatalf("user = %+v, want nil", u)
	}
	if stub.calls != 0 {
		t.Fatalf("calls = %d, want 0", stub.calls)
	}
}

func TestWithAuthNoCookieRedirects(t *testing.T) {
	stub := newStub()
	called := false
	loader := WithAuth(NewResolver(stub, nil), func(*http.Request, Session) (Result, error) {
		called = true
		return Props("x"), nil
	})

	res, err := loader(requestWithCookie(""), Session{})
	if err != nil {
		t.Fatalf("loader: %v", err)
	}
	if res.Redirect == nil || res.Redirect.Destination != "/login" || res.Redirect.Permanent {
		t.Fatalf("redirect = %+v, want temporary /login", res.Redirect)
	}
	if called {
		t.Fatal("inner loader must not run")
	}
}

func TestWithAuthInvalidCookieRedirects(t *testing.T) {
	stub := newStub()
	called := false
	loader := WithAuth(NewResolver(stub, nil), func(*http.Request, Session) (Result, error) {
		called = true
		return Props("x"), nil
	}, WithRedirect("/entrar"))

	res, _ := loader(requestWithCookie("bad"), Session{})
	if res.Redirect == nil || res.Redirect.Destination != "/entrar" {
		t.Fatalf("redirect = %+v, want /entrar", res.Redirect)
	}
	if called {
		t.Fatal("inner loader must not run")
	}
}

func TestWithAuthAllowUnauthenticatedPassesNilUser(t *testing.T) {
	stub := newStub()
	var got Session
	loader := WithAuth(NewResolver(stub, nil), func(_ *http.Request, s Session) (Result, error) {
		got = s
		return Props("ok"), nil
	}, AllowUnauthenticated())

	res, err := loader(requestWithCookie("bad"), Session{})
	if err != nil {
		t.Fatalf("loader: %v", err)
	}
	if res.Props != "ok" {
		t.Fatalf("props = %v, want ok", res.Props)
	}
	if got.User != nil {
		t.Fatalf("user = %+v, want nil", got.User)
	}
	if got.BearerToken() != "bad" {
		t.Fatalf("token = %q, want bad", got.BearerToken())
	}
}

func TestWithAuthAllowUnauthenticatedWithoutCookie(t *testing.T) {
	stub := newStub()
	loader := WithAuth(NewResolver(stub, nil), nil, AllowUnauthenticated())

	res, _ := loader(requestWithCookie(""), Session{})
	props, ok := res.Props.(SessionProps)
	if !ok {
		t.Fatalf("props type = %T, want SessionProps", res.Props)
	}
	if props.Session.Token != nil || props.Session.User != nil {
		t.Fatalf("session = %+v, want empty", props.Session)
	}
}

func TestWithAuthNilLoaderReturnsSession(t *testing.T) {
	stub := newStub()
	loader := WithAuth(NewResolver(stub, nil), nil)

	res, _ := loader(requestWithCookie("good"), Session{})
	props, ok := res.Props.(SessionProps)
	if !ok {
		t.Fatalf("props type = %T, want SessionProps", res.Props)
	}
	if !props.Session.Authenticated() || props.Session.User.Name != "Ana" {
		t.Fatalf("session = %+v", props.Session)
	}
}

func TestWithAuthPassesInnerResultVerbatim(t *testing.T) {
	stub := newStub()
	loader := WithAuth(NewResolver(stub, nil), func(*http.Request, Session) (Result, error) {
		return NotFound(), nil
	})

	res, _ := loader(requestWithCookie("good"), Session{})
	if !res.NotFound {
		t.Fatalf("result = %+v, want not found", res)
	}
}

func TestWithAuthResolvesEveryCall(t *testing.T) {
	stub := newStub()
	loader := WithAuth(NewResolver(stub, nil), nil)

	for i := 0; i < 3; i++ {
		_, _ = loader(requestWithCookie("good"), Session{})
	}
	if stub.calls != 3 {
		t.Fatalf("calls = %d, want 3", stub.calls)
	}
}

func TestWithAuthCustomCookieName(t *testing.T) {
	stub := newStub()
	loader := WithAuth(NewResolver(stub, nil), nil, CookieName("auth"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "auth", Value: "good"})
	res, _ := loader(r, Session{})
	if res.Redirect != nil {
		t.Fatalf("unexpected redirect %+v", res.Redirect)
	}
}
