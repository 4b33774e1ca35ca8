package web

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/panela/internal/apiclient"
	"github.com/starford/panela/internal/models"
	"github.com/starford/panela/internal/recipeform"
	"github.com/starford/panela/internal/session"
	"github.com/starford/panela/internal/sse"
	"github.com/starford/panela/internal/testutil"
)

const token = "tok-ana"

type recordedEvent struct {
	kind string
	id   int64
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) PublishRecipeEvent(kind string, id int64, _ string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{kind: kind, id: id})
}

func (p *recordingPublisher) all() []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]recordedEvent(nil), p.events...)
}

type testEnv struct {
	api    *testutil.FakeAPI
	events *recordingPublisher
	router http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	api := testutil.NewFakeAPI(t)
	api.AddUser(models.User{ID: 1, Name: "Ana", Username: "ana"}, "segredo", token)

	client := apiclient.New(api.URL(), 0)
	renderer, err := NewRenderer("", nil)
	require.NoError(t, err)

	events := &recordingPublisher{}
	h := NewHandler(
		client,
		session.NewResolver(client, nil),
		recipeform.NewSubmitter(client, nil, nil),
		renderer,
		events,
		Options{},
		nil,
	)
	return &testEnv{api: api, events: events, router: NewRouter(h, nil)}
}

func (e *testEnv) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func authCookie() *http.Cookie {
	return &http.Cookie{Name: session.DefaultCookieName, Value: token}
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// recipeForm builds a multipart recipe submission. Extra values override defaults.
func recipeForm(t *testing.T, image []byte, extra url.Values) (*bytes.Buffer, string) {
	t.Helper()
	values := url.Values{
		fieldName:             {"Bolo de cenoura"},
		fieldCategory:         {"bolos"},
		fieldInstructions:     {"Bata tudo no liquidificador e asse por 40 minutos."},
		fieldIngredientName:   {"Cenoura", "Farinha"},
		fieldIngredientAmount: {"3", "2 xícaras"},
	}
	for k, v := range extra {
		values[k] = v
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, vs := range values {
		for _, v := range vs {
			require.NoError(t, mw.WriteField(k, v))
		}
	}
	if image != nil {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="bolo.png"`, fieldImage))
		hdr.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func postForm(path string, body *bytes.Buffer, contentType string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	return req
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyReportsLiveClients(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	broker := sse.NewBroker(time.Second)
	defer broker.Close()
	ch := broker.Subscribe()
	defer broker.Unsubscribe(ch)

	router := NewRouter(&Handler{}, broker)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","live_clients":1}`, rec.Body.String())
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/static/app.js", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "EventSource")
}

func TestListAnonymous(t *testing.T) {
	env := newTestEnv(t)
	env.api.AddRecipe(testutil.SampleRecipe("Bolo de fubá"))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Bolo de fubá")
	assert.Contains(t, body, "3 dias atrás")
	assert.Contains(t, body, `href="/login"`)
	assert.NotContains(t, body, "/receitas/nova")
	assert.NotContains(t, body, "/excluir")
}

func TestListSignedIn(t *testing.T) {
	env := newTestEnv(t)
	env.api.AddRecipe(testutil.SampleRecipe("Bolo de fubá"))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil), authCookie())
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Ana")
	assert.Contains(t, body, `href="/logout"`)
	assert.Contains(t, body, "/receitas/1/excluir")
}

func TestListEmpty(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Nenhuma receita cadastrada")
}

func TestListAPIFailure(t *testing.T) {
	env := newTestEnv(t)
	env.api.FailOn(http.MethodGet, "/receitas", http.StatusInternalServerError)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), apiclient.MsgListFailed)
}

func TestShowRecipeRendersMarkdown(t *testing.T) {
	env := newTestEnv(t)
	r := env.api.AddRecipe(testutil.SampleRecipe("Bolo de fubá"))

	rec := env.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/receitas/%d", r.ID), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<strong>tudo</strong>")
	assert.Contains(t, body, "2 xícaras")
	assert.NotContains(t, body, "/editar")
}

func TestShowRecipeNotFound(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/receitas/99", "/receitas/abc", "/nada"} {
		rec := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestProtectedPagesRedirect(t *testing.T) {
	env := newTestEnv(t)
	env.api.AddRecipe(testutil.SampleRecipe("Bolo de fubá"))

	paths := []string{"/receitas/nova", "/receitas/1/editar", "/receitas/1/excluir", "/logout"}
	for _, path := range paths {
		rec := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusFound, rec.Code, path)
		assert.Equal(t, "/login", rec.Header().Get("Location"), path)

		rec = env.do(httptest.NewRequest(http.MethodGet, path, nil),
			&http.Cookie{Name: session.DefaultCookieName, Value: "expired"})
		assert.Equal(t, http.StatusFound, rec.Code, path)
	}
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{"username": {"ana"}, "password": {"segredo"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := env.do(req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	auth := responseCookie(rec, session.DefaultCookieName)
	require.NotNil(t, auth)
	assert.Equal(t, token, auth.Value)
	assert.True(t, auth.HttpOnly)

	flashCookie := responseCookie(rec, flashCookieName)
	require.NotNil(t, flashCookie)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/", nil), auth, flashCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), MsgWelcomeBack+"Ana")

	cleared := responseCookie(rec, flashCookieName)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		form     url.Values
		wantCode int
		wantMsg  string
	}{
		{"empty", url.Values{"username": {""}, "password": {""}}, http.StatusUnprocessableEntity, MsgFillAllFields},
		{"wrong password", url.Values{"username": {"ana"}, "password": {"errada"}}, http.StatusUnauthorized, MsgBadCredentials},
		{"username sent as typed", url.Values{"username": {"ana "}, "password": {"segredo"}}, http.StatusUnauthorized, MsgBadCredentials},
		{"blank username reaches api", url.Values{"username": {"  "}, "password": {"segredo"}}, http.StatusUnauthorized, MsgBadCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := env.do(req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantMsg)
			assert.Nil(t, responseCookie(rec, session.DefaultCookieName))
		})
	}
}

func TestLoginPageStaysWhenSignedIn(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/login", nil), authCookie())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutClearsCookie(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/logout", nil), authCookie())

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	c := responseCookie(rec, session.DefaultCookieName)
	require.NotNil(t, c)
	assert.Empty(t, c.Value)
	assert.Negative(t, c.MaxAge)
}

func TestCreateRecipe(t *testing.T) {
	env := newTestEnv(t)

	body, ct := recipeForm(t, []byte("png-bytes"), nil)
	rec := env.do(postForm("/receitas/nova", body, ct), authCookie())

	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.Equal(t, "/receitas/1", rec.Header().Get("Location"))

	stored, ok := env.api.Recipe(1)
	require.True(t, ok)
	assert.Equal(t, "Bolo de cenoura", stored.Name)
	assert.Equal(t, []models.Ingredient{{Name: "Cenoura", Quantity: "3"}, {Name: "Farinha", Quantity: "2 xícaras"}}, stored.Ingredients)
	assert.Equal(t, "https://img.test/1/bolo.png", stored.Image)
	assert.Equal(t, []recordedEvent{{kind: "created", id: 1}}, env.events.all())
	assert.NotNil(t, responseCookie(rec, flashCookieName))
}

func TestCreateRecipeInvalid(t *testing.T) {
	env := newTestEnv(t)

	body, ct := recipeForm(t, nil, url.Values{fieldName: {"Bo"}})
	rec := env.do(postForm("/receitas/nova", body, ct), authCookie())

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	page := rec.Body.String()
	assert.Contains(t, page, recipeform.MsgNameMin)
	assert.Contains(t, page, recipeform.MsgImageRequired)
	assert.Zero(t, env.api.RecipeCount())
	assert.Zero(t, env.api.Calls(http.MethodPost, "/receitas/imagem"))
}

func TestCreateRecipeAPIFailure(t *testing.T) {
	env := newTestEnv(t)
	env.api.FailOn(http.MethodPost, "/receitas", http.StatusInternalServerError)

	body, ct := recipeForm(t, []byte("png-bytes"), nil)
	rec := env.do(postForm("/receitas/nova", body, ct), authCookie())

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), apiclient.MsgCreateFailed)
	assert.Contains(t, rec.Body.String(), "Bolo de cenoura")
	assert.Empty(t, env.events.all())
}

func TestCreateRecipeOversizeImage(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"over image limit", 3 << 20},
		{"over body limit", 9 << 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			body, ct := recipeForm(t, bytes.Repeat([]byte{0x89}, tt.size), nil)
			rec := env.do(postForm("/receitas/nova", body, ct), authCookie())

			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			page := rec.Body.String()
			assert.Contains(t, page, recipeform.MsgImageSize)
			assert.NotContains(t, page, MsgBadForm)
			assert.Contains(t, page, `value="Bolo de cenoura"`)
			assert.Contains(t, page, `value="Cenoura"`)
			assert.Contains(t, page, `<option value="bolos" selected>`)
			assert.Zero(t, env.api.Calls(http.MethodPost, "/receitas/imagem"))
			assert.Zero(t, env.api.RecipeCount())
		})
	}
}

func TestRecipeFormDefaultButtonSaves(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/receitas/nova", nil), authCookie())
	require.Equal(t, http.StatusOK, rec.Code)

	page := rec.Body.String()
	first := strings.Index(page, `type="submit"`)
	require.GreaterOrEqual(t, first, 0)
	assert.Less(t, first, strings.Index(page, fieldAddIngredient))
	assert.Contains(t, page[first:first+80], "data-default-submit")
}

func TestIngredientRowActions(t *testing.T) {
	env := newTestEnv(t)

	body, ct := recipeForm(t, nil, url.Values{fieldAddIngredient: {"1"}})
	rec := env.do(postForm("/receitas/nova", body, ct), authCookie())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, strings.Count(rec.Body.String(), `name="ingrediente_nome"`))
	assert.Zero(t, env.api.RecipeCount())

	body, ct = recipeForm(t, nil, url.Values{fieldRemoveIngredient: {"1"}})
	rec = env.do(postForm("/receitas/nova", body, ct), authCookie())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, strings.Count(rec.Body.String(), `name="ingrediente_nome"`))

	body, ct = recipeForm(t, nil, url.Values{fieldRemoveIngredient: {"0"}})
	rec = env.do(postForm("/receitas/nova", body, ct), authCookie())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), MsgBadForm)
}

func TestEditFormPrefilled(t *testing.T) {
	env := newTestEnv(t)
	r := env.api.AddRecipe(testutil.SampleRecipe("Bolo de fubá"))

	rec := env.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/receitas/%d/editar", r.ID), nil), authCookie())
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `value="Bolo de fubá"`)
	assert.Contains(t, body, `<option value="bolos" selected>`)
	assert.Contains(t, body, r.Image)
}

func TestUpdateRecipeKeepsImage(t *testing.T) {
	env := newTestEnv(t)
	r := env.api.AddRecipe(testutil.SampleRecipe("Bolo de fubá"))

	body, ct := recipeForm(t, nil, url.Values{fieldName: {"Bolo de fubá cremoso"}})
	rec := env.do(postForm(fmt.Sprintf("/receitas/%d/editar", r.ID), body, ct), authCookie())

	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.Equal(t, fmt.Sprintf("/receitas/%d", r.ID), rec.Header().Get("Location"))

	stored, _ := env.api.Recipe(r.ID)
	assert.Equal(t, "Bolo de fubá cremoso", stored.Name)
	assert.Equal(t, r.Image, stored.Image)
	assert.Zero(t, env.api.Calls(http.MethodPost, "/receitas/imagem"))
	assert.Equal(t, []recordedEvent{{kind: "updated", id: r.ID}}, env.events.all())
}

func TestUpdateRecipeFailure(t *testing.T) {
	env := newTestEnv(t)
	r := env.api.AddRecipe(testutil.SampleRecipe("Bolo de fubá"))
	env.api.FailOn(http.MethodPut, "/receitas/{id}", http.StatusInternalServerError)

	body, ct := recipeForm(t, nil, nil)
	rec := env.do(postForm(fmt.Sprintf("/receitas/%d/editar", r.ID), body, ct), authCookie())

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), apiclient.MsgUpdateFailed)
}

func TestDeleteRecipe(t *testing.T) {
	env := newTestEnv(t)
	r := env.api.AddRecipe(testutil.SampleRecipe("Bolo de fubá"))

	rec := env.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/receitas/%d/excluir", r.ID), nil), authCookie())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Bolo de fubá")

	rec = env.do(httptest.NewRequest(http.MethodPost, fmt.Sprintf("/receitas/%d/excluir", r.ID), nil), authCookie())
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Zero(t, env.api.RecipeCount())
	assert.Equal(t, []recordedEvent{{kind: "deleted", id: r.ID}}, env.events.all())

	rec = env.do(httptest.NewRequest(http.MethodGet, "/", nil), authCookie(), responseCookie(rec, flashCookieName))
	assert.Contains(t, rec.Body.String(), MsgDeleted)
}

func TestDeleteRecipeFailure(t *testing.T) {
	env := newTestEnv(t)
	r := env.api.AddRecipe(testutil.SampleRecipe("Bolo de fubá"))
	env.api.FailOn(http.MethodDelete, "/receitas/{id}", http.StatusInternalServerError)

	rec := env.do(httptest.NewRequest(http.MethodPost, fmt.Sprintf("/receitas/%d/excluir", r.ID), nil), authCookie())
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, fmt.Sprintf("/receitas/%d", r.ID), rec.Header().Get("Location"))
	assert.Equal(t, 1, env.api.RecipeCount())
	assert.Empty(t, env.events.all())

	rec = env.do(httptest.NewRequest(http.MethodGet, rec.Header().Get("Location"), nil), responseCookie(rec, flashCookieName))
	assert.Contains(t, rec.Body.String(), MsgDeleteFailed)
}
