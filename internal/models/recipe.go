// Package models defines the domain types for Panela Mágica.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Categories is the closed set of recipe categories offered by the form, in display order.
var Categories = []string{
	"doce",
	"sopa",
	"massa",
	"salada",
	"carnes",
	"peixes",
	"bebidas",
	"lanches",
	"pães",
	"bolos",
	"tortas",
	"sobremesas",
	"salgado",
	"outros",
}

// IsKnownCategory reports whether c belongs to Categories.
// Recipes received from the API may still carry an unlisted category.
func IsKnownCategory(c string) bool {
	return slices.Contains(Categories, c)
}

// Ingredient is one row of a recipe's ingredient list.
type Ingredient struct {
	Name     string `json:"nome"`
	Quantity string `json:"quantidade"`
}

// Creator references the user who registered a recipe.
type Creator struct {
	ID   int64  `json:"id"`
	Name string `json:"nome"`
}

// UnmarshalJSON accepts both the structured {id, nome} form and the
// legacy plain-string form, which carries only the name.
func (c *Creator) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return fmt.Errorf("models: creator: %w", err)
		}
		*c = Creator{Name: name}
		return nil
	}

	type plain Creator
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("models: creator: %w", err)
	}
	*c = Creator(p)
	return nil
}

// Recipe is a catalog entry as returned by the remote API.
type Recipe struct {
	ID           int64        `json:"id"`
	Name         string       `json:"nome"`
	Category     string       `json:"tipo"`
	Creator      Creator      `json:"criador"`
	Ingredients  []Ingredient `json:"ingredientes"`
	Instructions string       `json:"modo_de_preparo"`
	Image        string       `json:"imagem"`
	CreatedAt    int64        `json:"data_de_criacao"`
}

// CreatedTime returns CreatedAt as a time.Time.
func (r *Recipe) CreatedTime() time.Time {
	return time.Unix(r.CreatedAt, 0)
}

// RecipeInput is the write payload for create and update. The API derives
// id, creator and creation date itself.
type RecipeInput struct {
	Name         string       `json:"nome"`
	Category     string       `json:"tipo"`
	Ingredients  []Ingredient `json:"ingredientes"`
	Instructions string       `json:"modo_de_preparo"`
	Image        string       `json:"imagem"`
}

// User is the account behind a session.
type User struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	CreatedAt int64  `json:"created_at"`
}

// SignedInUser is the sign-in response: the user plus its bearer token.
type SignedInUser struct {
	User
	Token string `json:"token"`
}

// ImageFile is an image chosen in the recipe form, held in memory until uploaded.
type ImageFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Size returns the file size in bytes.
func (f *ImageFile) Size() int64 {
	return int64(len(f.Data))
}
