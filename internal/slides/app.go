package slides

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sketchparty/sketchparty/internal/apperr"
	"github.com/sketchparty/sketchparty/internal/models"
)

// SlideRepository defines what the slides app layer needs from the repository.
type SlideRepository interface {
	UpsertSlide(ctx context.Context, slideID, title string) (*models.Slide, error)
	EnsureSlide(ctx context.Context, slideID string) (*models.Slide, error)
	GetSlide(ctx context.Context, slideID string) (*models.Slide, error)
	GetSlideDetail(ctx context.Context, slideID string) (*models.SlideDetail, error)
	UpdateSettings(ctx context.Context, slideID string, title *string, countdownTime *int, referenceImage *string) error
	SlideExists(ctx context.Context, slideID string) (bool, error)
	SaveReferenceImage(ctx context.Context, slideID, imageData string) (int64, error)
	StartRound(ctx context.Context, slideID string, duration int, startedAt time.Time) error
	StopRound(ctx context.Context, slideID string) error
	GetRound(ctx context.Context, slideID string) (*models.RoundState, error)
}

// App handles slide business rules.
type App struct {
	repo SlideRepository
}

func NewApp(repo SlideRepository) *App {
	return &App{repo: repo}
}

// UpsertSlide creates a slide or replaces its title.
func (a *App) UpsertSlide(ctx context.Context, slideID, title string) (*models.Slide, error) {
	if slideID == "" {
		return nil, apperr.Validation("Slide ID is required")
	}
	slide, err := a.repo.UpsertSlide(ctx, slideID, title)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return slide, nil
}

// GetSlide returns a slide joined with its reference image. Reads never
// mutate; callers that want auto-provisioning use EnsureSlide.
func (a *App) GetSlide(ctx context.Context, slideID string) (*models.SlideDetail, error) {
	if slideID == "" {
		return nil, apperr.Validation("Slide ID is required")
	}
	detail, err := a.repo.GetSlideDetail(ctx, slideID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Slide not found")
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return detail, nil
}

// EnsureSlide creates a slide with defaults (empty title, zero
// countdown) when absent. Idempotent: the second call for the same id
// returns the same row.
func (a *App) EnsureSlide(ctx context.Context, slideID string) (*models.SlideDetail, error) {
	if slideID == "" {
		return nil, apperr.Validation("Slide ID is required")
	}
	if _, err := a.repo.EnsureSlide(ctx, slideID); err != nil {
		return nil, apperr.Storage(err)
	}
	detail, err := a.repo.GetSlideDetail(ctx, slideID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return detail, nil
}

// UpdateSettings applies a partial settings update; each field is
// independently optional and keeps the stored value when omitted.
// The slide is created first if absent.
func (a *App) UpdateSettings(ctx context.Context, slideID string, title *string, countdownTime *int, referenceImage *string) (*models.SlideDetail, error) {
	if slideID == "" {
		return nil, apperr.Validation("Slide ID is required")
	}
	if countdownTime != nil && *countdownTime < 0 {
		return nil, apperr.Validation("Countdown time must be non-negative")
	}
	if err := a.repo.UpdateSettings(ctx, slideID, title, countdownTime, referenceImage); err != nil {
		return nil, apperr.Storage(err)
	}
	detail, err := a.repo.GetSlideDetail(ctx, slideID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return detail, nil
}

// SaveReferenceImage stores the prompt image for an existing slide.
// Unlike settings updates, this does not auto-create the slide.
func (a *App) SaveReferenceImage(ctx context.Context, slideID, imageData string) (int64, error) {
	if slideID == "" {
		return 0, apperr.Validation("Slide ID is required")
	}
	if imageData == "" {
		return 0, apperr.Validation("Image data is required")
	}
	exists, err := a.repo.SlideExists(ctx, slideID)
	if err != nil {
		return 0, apperr.Storage(err)
	}
	if !exists {
		return 0, apperr.NotFound("Slide not found")
	}
	id, err := a.repo.SaveReferenceImage(ctx, slideID, imageData)
	if err != nil {
		return 0, apperr.Storage(err)
	}
	return id, nil
}

// StartRound records the countdown window so any client, including a
// reloaded presenter, can recompute the remaining time.
func (a *App) StartRound(ctx context.Context, slideID string, duration int, startedAt time.Time) error {
	if slideID == "" {
		return apperr.Validation("Slide ID is required")
	}
	if duration <= 0 {
		return apperr.Validation("Round duration must be positive")
	}
	if err := a.repo.StartRound(ctx, slideID, duration, startedAt); err != nil {
		return apperr.Storage(err)
	}
	log.Info().Str("slide_id", slideID).Int("duration", duration).Msg("round started")
	return nil
}

// StopRound clears the persisted countdown window.
func (a *App) StopRound(ctx context.Context, slideID string) error {
	if slideID == "" {
		return apperr.Validation("Slide ID is required")
	}
	if err := a.repo.StopRound(ctx, slideID); err != nil {
		return apperr.Storage(err)
	}
	log.Info().Str("slide_id", slideID).Msg("round stopped")
	return nil
}

// GetRound returns the persisted round state. Missing slides read as an
// idle round rather than an error: a round can only exist for a slide
// the presenter has already touched.
func (a *App) GetRound(ctx context.Context, slideID string) (*models.RoundState, error) {
	if slideID == "" {
		return nil, apperr.Validation("Slide ID is required")
	}
	state, err := a.repo.GetRound(ctx, slideID)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.RoundState{}, nil
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return state, nil
}
