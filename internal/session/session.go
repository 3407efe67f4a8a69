// Package session drives the multi-step add-video conversation. Each user
// has at most one draft, stored in Redis as JSON under draft:<user_id>.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/therealutkarshpriyadarshi/watchswap/internal/metrics"
	"github.com/therealutkarshpriyadarshi/watchswap/pkg/models"
)

// Step is a position in the draft conversation
type Step string

// Steps in the order they are asked
const (
	StepTitle        Step = "title"
	StepThumbnail    Step = "thumbnail"
	StepLink         Step = "link"
	StepLength       Step = "length"
	StepInstructions Step = "instructions"
	StepDone         Step = "done"
)

var nextStep = map[Step]Step{
	StepTitle:        StepThumbnail,
	StepThumbnail:    StepLink,
	StepLink:         StepLength,
	StepLength:       StepInstructions,
	StepInstructions: StepDone,
}

var prompts = map[Step]string{
	StepTitle:        "Send the video title.",
	StepThumbnail:    "Send the video thumbnail as a photo.",
	StepLink:         "Send the video link, or 'skip' if you don't have one.",
	StepLength:       fmt.Sprintf("Send the video length in minutes (%d-%d).", models.MinVideoLengthMinutes, models.MaxVideoLengthMinutes),
	StepInstructions: "Describe how viewers should watch and what proof to send.",
	StepDone:         "Video details complete. Send anything to retry saving, or cancel.",
}

var (
	// ErrNoDraft is returned when the user has no draft in progress
	ErrNoDraft = errors.New("no draft in progress")

	// ErrInvalidInput is returned when input does not satisfy the current
	// step. The draft stays at that step.
	ErrInvalidInput = errors.New("invalid draft input")

	// ErrDraftBusy is returned when another input for the same draft is
	// being processed
	ErrDraftBusy = errors.New("draft is being updated")
)

// InputError describes why input was refused at a step
type InputError struct {
	Step   Step
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Step, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidInput
func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// Draft is a partially collected video
type Draft struct {
	UserID    int64             `json:"user_id"`
	Step      Step              `json:"step"`
	Video     models.VideoDraft `json:"video"`
	StartedAt time.Time         `json:"started_at"`
}

// Prompt returns the question for the draft's current step
func (d *Draft) Prompt() string {
	return prompts[d.Step]
}

// Input is one message from the user. MediaRef carries a stored photo
// reference and is only meaningful for the thumbnail step.
type Input struct {
	Text     string `json:"text"`
	MediaRef string `json:"media_ref"`
}

// Store is the key-value backend for drafts
type Store interface {
	SetWithJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetWithJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	Delete(ctx context.Context, key string) error
	AcquireLock(ctx context.Context, resource string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, resource, token string) error
}

// Manager creates and advances drafts
type Manager struct {
	store    Store
	ttl      time.Duration
	validate *validator.Validate
	now      func() time.Time
}

// NewManager creates a draft manager. Drafts idle for longer than ttl are
// discarded.
func NewManager(store Store, ttl time.Duration) *Manager {
	return &Manager{
		store:    store,
		ttl:      ttl,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

func draftKey(userID int64) string {
	return fmt.Sprintf("draft:%d", userID)
}

// Start begins a new draft, replacing any draft in progress
func (m *Manager) Start(ctx context.Context, userID int64) (*Draft, error) {
	d := &Draft{UserID: userID, Step: StepTitle, StartedAt: m.now()}
	if err := m.store.SetWithJSON(ctx, draftKey(userID), d, m.ttl); err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}
	metrics.RecordDraft("started")
	return d, nil
}

// Current returns the draft in progress
func (m *Manager) Current(ctx context.Context, userID int64) (*Draft, error) {
	var d Draft
	found, err := m.store.GetWithJSON(ctx, draftKey(userID), &d)
	if err != nil {
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}
	if !found {
		return nil, ErrNoDraft
	}
	return &d, nil
}

// Cancel discards the draft in progress
func (m *Manager) Cancel(ctx context.Context, userID int64) error {
	if _, err := m.Current(ctx, userID); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, draftKey(userID)); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	metrics.RecordDraft("cancelled")
	return nil
}

// Finish removes a completed draft once its video has been stored
func (m *Manager) Finish(ctx context.Context, userID int64) error {
	if err := m.store.Delete(ctx, draftKey(userID)); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	metrics.RecordDraft("completed")
	return nil
}

// Advance applies input to the current step. Invalid input returns an
// *InputError and leaves the draft where it was. When the last step is
// answered the draft is returned with Step == StepDone and kept until
// Finish or Cancel, so a failed save can be retried.
func (m *Manager) Advance(ctx context.Context, userID int64, in Input) (*Draft, error) {
	lock := draftKey(userID)
	token, err := m.store.AcquireLock(ctx, lock, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to lock draft: %w", err)
	}
	if token == "" {
		return nil, ErrDraftBusy
	}
	defer m.store.ReleaseLock(context.WithoutCancel(ctx), lock, token)

	d, err := m.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if d.Step == StepDone {
		return d, nil
	}

	if err := m.apply(d, in); err != nil {
		metrics.RecordDraft("invalid_input")
		return d, err
	}

	d.Step = nextStep[d.Step]
	if d.Step == StepDone {
		d.Video.Normalize()
		if err := m.validate.Struct(d.Video); err != nil {
			return d, &InputError{Step: StepDone, Reason: err.Error()}
		}
	}

	if err := m.store.SetWithJSON(ctx, draftKey(userID), d, m.ttl); err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}
	return d, nil
}

func (m *Manager) apply(d *Draft, in Input) error {
	text := strings.TrimSpace(in.Text)

	switch d.Step {
	case StepTitle:
		if err := m.validate.Var(text, "required,max=200"); err != nil {
			return &InputError{Step: d.Step, Reason: "title must be 1-200 characters"}
		}
		d.Video.Title = text

	case StepThumbnail:
		ref := strings.TrimSpace(in.MediaRef)
		if ref == "" {
			return &InputError{Step: d.Step, Reason: "that's not a photo, send a thumbnail image"}
		}
		d.Video.ThumbnailRef = ref

	case StepLink:
		if strings.EqualFold(text, "skip") {
			d.Video.Link = ""
			break
		}
		if err := m.validate.Var(text, "required,max=2048"); err != nil {
			return &InputError{Step: d.Step, Reason: "send a link or 'skip'"}
		}
		d.Video.Link = text

	case StepLength:
		length, err := strconv.Atoi(text)
		if err != nil {
			return &InputError{Step: d.Step, Reason: "that's not a valid number"}
		}
		if length < models.MinVideoLengthMinutes || length > models.MaxVideoLengthMinutes {
			return &InputError{Step: d.Step, Reason: fmt.Sprintf("length must be between %d and %d minutes",
				models.MinVideoLengthMinutes, models.MaxVideoLengthMinutes)}
		}
		d.Video.LengthMinutes = length

	case StepInstructions:
		if err := m.validate.Var(text, "required,max=2000"); err != nil {
			return &InputError{Step: d.Step, Reason: "instructions must be 1-2000 characters"}
		}
		d.Video.ProcessInstructions = text

	default:
		return &InputError{Step: d.Step, Reason: "draft is already complete"}
	}
	return nil
}
