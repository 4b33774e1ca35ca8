package mcpserver

import (
	"fmt"
	"strings"

	"github.com/starford/panela/internal/models"
	"github.com/starford/panela/internal/recipeform"
)

// RecipeRulesURI names the resource that documents the recipe form rules.
const RecipeRulesURI = "panela://recipe-rules"

// RecipeRules describes, in Markdown, what a recipe must satisfy before
// the site accepts it. It is derived from the form limits.
var RecipeRules = fmt.Sprintf(`# Panela Mágica Recipe Rules

A recipe sent to the catalog has these fields:

| Field | Rule |
|-------|------|
| nome | required, %d to %d characters |
| tipo | required, one of: %s |
| imagem | jpeg, jpg or png, at most 2 MB (required on create, optional on edit) |
| ingredientes | 1 to %d rows |
| ingredientes[].nome | %d to %d characters |
| ingredientes[].quantidade | %d to %d characters |
| modo_de_preparo | required, %d to %d characters, Markdown |

The preparation text may use **bold**, _italic_, underline and lists.
Other markup is stripped when the recipe is shown.
`,
	recipeform.NameMin, recipeform.NameMax,
	strings.Join(models.Categories, ", "),
	recipeform.IngredientsMax,
	recipeform.IngredientMin, recipeform.IngredientMax,
	recipeform.QuantityMin, recipeform.QuantityMax,
	recipeform.InstructionsMin, recipeform.InstructionsMax,
)
