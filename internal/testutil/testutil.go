// Package testutil provides shared test helpers: a fake recipe API and temporary ledgers.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/panela/internal/ledger"
	"github.com/starford/panela/internal/models"
)

// TestLedger creates a temporary upload ledger that is automatically cleaned up.
func TestLedger(t *testing.T) *ledger.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "panela-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := ledger.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fakeUser struct {
	user     models.User
	password string
	token    string
}

// FakeAPI is an in-memory stand-in for the remote recipe API.
type FakeAPI struct {
	Server *httptest.Server

	mu      sync.Mutex
	recipes map[int64]models.Recipe
	nextID  int64
	users   []fakeUser
	fail    map[string]int
	calls   map[string]int
	uploads []string
}

// NewFakeAPI starts a fake API server closed on test cleanup.
func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()
	f := &FakeAPI{
		recipes: make(map[int64]models.Recipe),
		nextID:  1,
		fail:    make(map[string]int),
		calls:   make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(f.track)
	r.Get("/receitas", f.list)
	r.Post("/receitas", f.create)
	r.Post("/receitas/imagem", f.upload)
	r.Get("/receitas/{id}", f.get)
	r.Put("/receitas/{id}", f.update)
	r.Delete("/receitas/{id}", f.remove)
	r.Post("/users/sign-in", f.signIn)
	r.Get("/users/me", f.me)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the base URL of the fake API.
func (f *FakeAPI) URL() string {
	return f.Server.URL
}

// AddUser registers an account reachable by password sign-in or by token.
func (f *FakeAPI) AddUser(u models.User, password, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, fakeUser{user: u, password: password, token: token})
}

// AddRecipe stores r, assigning an id when r.ID is zero.
func (f *FakeAPI) AddRecipe(r models.Recipe) models.Recipe {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ID == 0 {
		r.ID = f.nextID
	}
	if r.ID >= f.nextID {
		f.nextID = r.ID + 1
	}
	f.recipes[r.ID] = r
	return r
}

// Recipe returns the stored recipe with id, if any.
func (f *FakeAPI) Recipe(id int64) (models.Recipe, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recipes[id]
	return r, ok
}

// RecipeCount returns the number of stored recipes.
func (f *FakeAPI) RecipeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recipes)
}

// Uploads returns the URLs handed out by the image endpoint.
func (f *FakeAPI) Uploads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploads...)
}

// FailOn makes requests matching the chi route pattern answer with status.
// Example: FailOn("POST", "/receitas", 500).
func (f *FakeAPI) FailOn(method, pattern string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[method+" "+pattern] = status
}

// Calls returns how many requests hit the route pattern.
func (f *FakeAPI) Calls(method, pattern string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method+" "+pattern]
}

func (f *FakeAPI) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + routePattern(r)
		f.mu.Lock()
		f.calls[key]++
		status, failing := f.fail[key]
		f.mu.Unlock()
		if failing {
			http.Error(w, "forced failure", status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// routePattern resolves the chi pattern before routing has happened.
func routePattern(r *http.Request) string {
	p := r.URL.Path
	if strings.HasPrefix(p, "/receitas/") && p != "/receitas/imagem" {
		return "/receitas/{id}"
	}
	return p
}

func (f *FakeAPI) userByToken(r *http.Request) (models.User, bool) {
	token := strings.TrimPrefix(r.Header.Get("X-Authorization"), "Bearer ")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if token != "" && u.token == token {
			return u.user, true
		}
	}
	return models.User{}, false
}

func (f *FakeAPI) list(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	out := make([]models.Recipe, 0, len(f.recipes))
	for _, r := range f.recipes {
		out = append(out, r)
	}
	f.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (f *FakeAPI) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	rec, ok := f.Recipe(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (f *FakeAPI) upload(w http.ResponseWriter, r *http.Request) {
	if _, ok := f.userByToken(r); !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	file, hdr, err := r.FormFile("imagem")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()
	_, _ = io.Copy(io.Discard, file)

	f.mu.Lock()
	url := fmt.Sprintf("https://img.test/%d/%s", len(f.uploads)+1, hdr.Filename)
	f.uploads = append(f.uploads, url)
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, url)
}

func (f *FakeAPI) create(w http.ResponseWriter, r *http.Request) {
	u, ok := f.userByToken(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var in models.RecipeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rec := f.AddRecipe(models.Recipe{
		Name:         in.Name,
		Category:     in.Category,
		Creator:      models.Creator{ID: u.ID, Name: u.Name},
		Ingredients:  in.Ingredients,
		Instructions: in.Instructions,
		Image:        in.Image,
		CreatedAt:    time.Now().Unix(),
	})
	writeJSON(w, http.StatusCreated, rec)
}

func (f *FakeAPI) update(w http.ResponseWriter, r *http.Request) {
	if _, ok := f.userByToken(r); !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	rec, ok := f.Recipe(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	var in models.RecipeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rec.Name = in.Name
	rec.Category = in.Category
	rec.Ingredients = in.Ingredients
	rec.Instructions = in.Instructions
	rec.Image = in.Image
	f.AddRecipe(rec)
	writeJSON(w, http.StatusOK, rec)
}

func (f *FakeAPI) remove(w http.ResponseWriter, r *http.Request) {
	if _, ok := f.userByToken(r); !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	f.mu.Lock()
	_, ok := f.recipes[id]
	delete(f.recipes, id)
	f.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeAPI) signIn(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.user.Username == in.Username && u.password == in.Password {
			writeJSON(w, http.StatusOK, models.SignedInUser{User: u.user, Token: u.token})
			return
		}
	}
	http.Error(w, "invalid credentials", http.StatusUnauthorized)
}

func (f *FakeAPI) me(w http.ResponseWriter, r *http.Request) {
	u, ok := f.userByToken(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// SampleRecipe returns a recipe that satisfies every form rule.
func SampleRecipe(name string) models.Recipe {
	return models.Recipe{
		Name:     name,
		Category: "bolos",
		Creator:  models.Creator{ID: 1, Name: "Ana"},
		Ingredients: []models.Ingredient{
			{Name: "Farinha", Quantity: "2 xícaras"},
			{Name: "Ovos", Quantity: "3"},
		},
		Instructions: "Misture **tudo** e asse por 40 minutos.",
		Image:        "https://img.test/bolo.png",
		CreatedAt:    time.Now().Add(-3 * 24 * time.Hour).Unix(),
	}
}
