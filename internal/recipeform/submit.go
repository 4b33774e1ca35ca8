package recipeform

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"

	"github.com/starford/panela/internal/apiclient"
	"github.com/starford/panela/internal/models"
)

// State is a step of the submission pipeline.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateInvalid
	StateUploadingImage
	StateSubmitting
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateInvalid:
		return "invalid"
	case StateUploadingImage:
		return "uploading_image"
	case StateSubmitting:
		return "submitting"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Toasts shown after a submission.
const (
	MsgCreated = "Receita cadastrada com sucesso"
	MsgUpdated = "Receita atualizada com sucesso"
)

// RecipeWriter is the subset of the API client the pipeline needs.
type RecipeWriter interface {
	UploadImage(ctx context.Context, token string, img *models.ImageFile) (string, error)
	CreateRecipe(ctx context.Context, token string, in models.RecipeInput) (*models.Recipe, error)
	UpdateRecipe(ctx context.Context, token string, id int64, in models.RecipeInput) (*models.Recipe, error)
}

// UploadLedger records uploaded images until a recipe references them.
type UploadLedger interface {
	RecordUpload(ctx context.Context, url, filename, checksum string) (string, error)
	MarkAttached(ctx context.Context, id string, recipeID int64) error
}

// Outcome is the terminal result of one submission. Messages holds the
// toasts to show: violations when Invalid, one error toast when Failed,
// one success toast on Success. After Invalid or Failed the pipeline is
// back at Idle, so Trace ends with StateIdle while State keeps the
// terminal step.
type Outcome struct {
	State    State
	Messages []string
	Recipe   *models.Recipe
	Err      error
	Trace    []State
}

// Submitter runs validate, upload and write in order.
type Submitter struct {
	api    RecipeWriter
	ledger UploadLedger
	logger *slog.Logger
}

// NewSubmitter creates a Submitter. ledger may be nil.
func NewSubmitter(api RecipeWriter, ledger UploadLedger, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{api: api, ledger: ledger, logger: logger}
}

type run struct {
	out Outcome
}

func (r *run) enter(s State) {
	r.out.State = s
	r.out.Trace = append(r.out.Trace, s)
}

func (r *run) fail(msg string, err error) Outcome {
	r.enter(StateFailed)
	r.out.Messages = []string{msg}
	r.out.Err = err
	return r.rest()
}

// rest records the return to Idle after Invalid or Failed. State keeps
// the terminal step so callers can tell the two apart.
func (r *run) rest() Outcome {
	r.out.Trace = append(r.out.Trace, StateIdle)
	return r.out
}

// validate returns a terminal outcome when in does not pass.
func (r *run) validate(in Input, mode Mode, failMsg string) (Outcome, bool) {
	r.enter(StateValidating)
	err := in.Validate(mode)
	if err == nil {
		return Outcome{}, true
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		r.enter(StateInvalid)
		r.out.Messages = verr.Messages
		r.out.Err = err
		return r.rest(), false
	}
	return r.fail(failMsg, err), false
}

// Create validates in, uploads its image, then registers the recipe.
// A failed write after a successful upload leaves the image unattached
// in the ledger; nothing is rolled back.
func (s *Submitter) Create(ctx context.Context, token string, in Input) Outcome {
	r := &run{}
	r.enter(StateIdle)
	if out, ok := r.validate(in, ModeCreate, apiclient.MsgCreateFailed); !ok {
		return out
	}

	r.enter(StateUploadingImage)
	url, uploadID, err := s.upload(ctx, token, in.Image)
	if err != nil {
		s.logger.Error("recipe create: upload failed", slog.String("error", err.Error()))
		return r.fail(apiclient.MsgCreateFailed, err)
	}

	r.enter(StateSubmitting)
	rec, err := s.api.CreateRecipe(ctx, token, payload(in, url))
	if err != nil {
		s.logger.Error("recipe create: write failed",
			slog.String("image", url),
			slog.String("error", err.Error()))
		return r.fail(apiclient.MsgCreateFailed, err)
	}
	s.attach(ctx, uploadID, rec.ID)

	r.enter(StateSuccess)
	r.out.Recipe = rec
	r.out.Messages = []string{MsgCreated}
	return r.out
}

// Update validates in and replaces recipe id. The image is uploaded only
// when a new one was chosen; otherwise in.ExistingImage is kept.
func (s *Submitter) Update(ctx context.Context, token string, id int64, in Input) Outcome {
	r := &run{}
	r.enter(StateIdle)
	if out, ok := r.validate(in, ModeEdit, apiclient.MsgUpdateFailed); !ok {
		return out
	}

	url := in.ExistingImage
	var uploadID string
	if in.Image != nil {
		r.enter(StateUploadingImage)
		var err error
		url, uploadID, err = s.upload(ctx, token, in.Image)
		if err != nil {
			s.logger.Error("recipe update: upload failed", slog.Int64("id", id), slog.String("error", err.Error()))
			return r.fail(failureMessage(err, apiclient.MsgUploadFailed), err)
		}
	}

	r.enter(StateSubmitting)
	rec, err := s.api.UpdateRecipe(ctx, token, id, payload(in, url))
	if err != nil {
		s.logger.Error("recipe update: write failed", slog.Int64("id", id), slog.String("error", err.Error()))
		return r.fail(failureMessage(err, apiclient.MsgUpdateFailed), err)
	}
	if uploadID != "" {
		s.attach(ctx, uploadID, rec.ID)
	}

	r.enter(StateSuccess)
	r.out.Recipe = rec
	r.out.Messages = []string{MsgUpdated}
	return r.out
}

func (s *Submitter) upload(ctx context.Context, token string, img *models.ImageFile) (url, uploadID string, err error) {
	url, err = s.api.UploadImage(ctx, token, img)
	if err != nil {
		return "", "", err
	}
	if s.ledger != nil {
		uploadID, err = s.ledger.RecordUpload(ctx, url, img.Filename, imageChecksum(img.Data))
		if err != nil {
			s.logger.Warn("upload ledger: record failed", slog.String("url", url), slog.String("error", err.Error()))
			uploadID = ""
		}
	}
	return url, uploadID, nil
}

// imageChecksum is the hex SHA-256 of an uploaded image, used to spot
// repeated uploads of the same file in the ledger.
func imageChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (s *Submitter) attach(ctx context.Context, uploadID string, recipeID int64) {
	if s.ledger == nil || uploadID == "" {
		return
	}
	if err := s.ledger.MarkAttached(ctx, uploadID, recipeID); err != nil {
		s.logger.Warn("upload ledger: attach failed", slog.String("upload_id", uploadID), slog.String("error", err.Error()))
	}
}

// failureMessage prefers the API's fixed message for err.
func failureMessage(err error, fallback string) string {
	var reqErr *apiclient.RequestError
	if errors.As(err, &reqErr) && reqErr.Message != "" {
		return reqErr.Message
	}
	return fallback
}

func payload(in Input, imageURL string) models.RecipeInput {
	return models.RecipeInput{
		Name:         in.Name,
		Category:     in.Category,
		Ingredients:  in.Ingredients,
		Instructions: in.Instructions,
		Image:        imageURL,
	}
}
