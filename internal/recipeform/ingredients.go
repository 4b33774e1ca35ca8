package recipeform

import (
	"errors"
	"fmt"

	"github.com/starford/panela/internal/models"
)

// ErrFirstIngredient is returned when removing the first ingredient row,
// which the form always keeps.
var ErrFirstIngredient = errors.New("recipeform: first ingredient cannot be removed")

// AddIngredient appends an empty ingredient row.
func (in *Input) AddIngredient() {
	in.Ingredients = append(in.Ingredients, models.Ingredient{})
}

// RemoveIngredient drops the row at index i. Index 0 is never removable.
func (in *Input) RemoveIngredient(i int) error {
	if i == 0 {
		return ErrFirstIngredient
	}
	if i < 0 || i >= len(in.Ingredients) {
		return fmt.Errorf("recipeform: ingredient index %d out of range", i)
	}
	in.Ingredients = append(in.Ingredients[:i:i], in.Ingredients[i+1:]...)
	return nil
}
