// Package recipeform validates recipe create/edit submissions and drives
// them through image upload and the record write.
package recipeform

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/panela/internal/apperr"
	"github.com/starford/panela/internal/models"
)

// Limits enforced by the form.
const (
	NameMin         = 3
	NameMax         = 50
	IngredientsMax  = 50
	IngredientMin   = 3
	IngredientMax   = 100
	QuantityMin     = 1
	QuantityMax     = 50
	InstructionsMin = 10
	InstructionsMax = 2048
	ImageMaxBytes   = 2 * 1024 * 1024
)

// AllowedImageTypes lists the accepted image MIME types.
var AllowedImageTypes = []string{"image/jpeg", "image/jpg", "image/png"}

// Messages shown to the user, one per rule.
const (
	MsgNameRequired         = "O nome da receita é obrigatório"
	MsgNameMin              = "O nome da receita deve ter no mínimo 3 caracteres"
	MsgNameMax              = "O nome da receita deve ter no máximo 50 caracteres"
	MsgCategoryRequired     = "O tipo da receita é obrigatório"
	MsgCategoryInvalid      = "O tipo da receita é inválido"
	MsgImageRequired        = "A imagem precisa ser preenchida"
	MsgImageType            = "A imagem deve ser do tipo jpeg, jpg ou png"
	MsgImageSize            = "A imagem deve ter até 2mb"
	MsgIngredientsMin       = "Deve haver pelo menos um ingrediente"
	MsgIngredientsMax       = "Deve haver no máximo 50 ingredientes"
	MsgIngredientNameMin    = "O nome do ingrediente deve ter no mínimo 3 caracteres"
	MsgIngredientNameMax    = "O nome do ingrediente deve ter no máximo 100 caracteres"
	MsgQuantityMin          = "A quantidade do ingrediente deve ter no mínimo 1 caractere"
	MsgQuantityMax          = "A quantidade do ingrediente deve ter no máximo 50 caracteres"
	MsgInstructionsRequired = "O modo de preparo é obrigatório"
	MsgInstructionsMin      = "O modo de preparo deve ter no mínimo 10 caracteres"
	MsgInstructionsMax      = "O modo de preparo deve ter no máximo 2048 caracteres"
)

// Mode selects the rule variant.
type Mode int

const (
	// ModeCreate requires an image.
	ModeCreate Mode = iota
	// ModeEdit accepts a missing image and keeps the existing one.
	ModeEdit
)

// fieldOrder fixes the order in which messages are reported.
var fieldOrder = []string{"nome", "tipo", "imagem", "ingredientes", "modo_de_preparo", "quantidade"}

// Input is a recipe form submission.
type Input struct {
	Name         string              `json:"nome"`
	Category     string              `json:"tipo"`
	Image        *models.ImageFile   `json:"imagem"`
	Ingredients  []models.Ingredient `json:"ingredientes"`
	Instructions string              `json:"modo_de_preparo"`

	// ExistingImage is the URL kept on edit when no new image is chosen.
	ExistingImage string `json:"-"`
}

// FromRecipe prefills an edit form.
func FromRecipe(r *models.Recipe) Input {
	return Input{
		Name:          r.Name,
		Category:      r.Category,
		Ingredients:   slices.Clone(r.Ingredients),
		Instructions:  r.Instructions,
		ExistingImage: r.Image,
	}
}

// Blank returns an empty create form with one ingredient row.
func Blank() Input {
	return Input{Ingredients: []models.Ingredient{{}}}
}

// ValidationError carries the deduplicated violation messages.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "recipeform: " + strings.Join(e.Messages, "; ")
}

// Is makes every ValidationError match apperr.ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == apperr.ErrValidation
}

// Validate checks in against the rules of mode. It returns nil, a
// *ValidationError, or an internal rule error.
func (in Input) Validate(mode Mode) error {
	imageRules := []validation.Rule{validation.By(checkImage)}
	if mode == ModeCreate {
		imageRules = append([]validation.Rule{validation.Required.Error(MsgImageRequired)}, imageRules...)
	}

	err := validation.ValidateStruct(&in,
		validation.Field(&in.Name,
			validation.Required.Error(MsgNameRequired),
			validation.RuneLength(NameMin, 0).Error(MsgNameMin),
			validation.RuneLength(0, NameMax).Error(MsgNameMax),
		),
		validation.Field(&in.Category,
			validation.Required.Error(MsgCategoryRequired),
			validation.In(toAny(models.Categories)...).Error(MsgCategoryInvalid),
		),
		validation.Field(&in.Image, imageRules...),
		validation.Field(&in.Ingredients,
			validation.Required.Error(MsgIngredientsMin),
			validation.Length(0, IngredientsMax).Error(MsgIngredientsMax),
			validation.Each(validation.By(checkIngredient)),
		),
		validation.Field(&in.Instructions,
			validation.Required.Error(MsgInstructionsRequired),
			validation.RuneLength(InstructionsMin, 0).Error(MsgInstructionsMin),
			validation.RuneLength(0, InstructionsMax).Error(MsgInstructionsMax),
		),
	)
	if err == nil {
		return nil
	}

	var errs validation.Errors
	if !errors.As(err, &errs) {
		return fmt.Errorf("recipeform: validate: %w", err)
	}
	return &ValidationError{Messages: Flatten(errs)}
}

func checkImage(value any) error {
	img, _ := value.(*models.ImageFile)
	if img == nil {
		return nil
	}
	if !slices.Contains(AllowedImageTypes, strings.ToLower(img.ContentType)) {
		return errors.New(MsgImageType)
	}
	if img.Size() > ImageMaxBytes {
		return errors.New(MsgImageSize)
	}
	return nil
}

func checkIngredient(value any) error {
	ing, ok := value.(models.Ingredient)
	if !ok {
		return fmt.Errorf("unexpected ingredient type %T", value)
	}
	return validation.ValidateStruct(&ing,
		validation.Field(&ing.Name,
			validation.Required.Error(MsgIngredientNameMin),
			validation.RuneLength(IngredientMin, 0).Error(MsgIngredientNameMin),
			validation.RuneLength(0, IngredientMax).Error(MsgIngredientNameMax),
		),
		validation.Field(&ing.Quantity,
			validation.Required.Error(MsgQuantityMin),
			validation.RuneLength(QuantityMin, 0).Error(MsgQuantityMin),
			validation.RuneLength(0, QuantityMax).Error(MsgQuantityMax),
		),
	)
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
