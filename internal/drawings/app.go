package drawings

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/sketchparty/sketchparty/internal/apperr"
	"github.com/sketchparty/sketchparty/internal/models"
)

// DrawingRepository defines what the drawings app layer needs from the repository.
type DrawingRepository interface {
	Insert(ctx context.Context, slideID, audienceID, audienceName, imageData string) (*models.Drawing, *models.Slide, error)
	ListBySlide(ctx context.Context, slideID string) ([]models.Drawing, error)
}

// App handles drawing submission rules.
type App struct {
	repo DrawingRepository
}

func NewApp(repo DrawingRepository) *App {
	return &App{repo: repo}
}

// Submit persists an audience drawing. Every submission keeps its own
// row; deduplication per audience member only happens in the live
// gallery, never in the store.
func (a *App) Submit(ctx context.Context, slideID, audienceID, audienceName, imageData string) (*models.Drawing, *models.Slide, error) {
	switch {
	case slideID == "":
		return nil, nil, apperr.Validation("Slide ID is required")
	case audienceID == "":
		return nil, nil, apperr.Validation("Audience ID is required")
	case audienceName == "":
		return nil, nil, apperr.Validation("Audience name is required")
	case imageData == "":
		return nil, nil, apperr.Validation("Image data is required")
	}

	drawing, slide, err := a.repo.Insert(ctx, slideID, audienceID, audienceName, imageData)
	if err != nil {
		return nil, nil, apperr.Storage(err)
	}

	log.Debug().
		Str("slide_id", slideID).
		Str("audience_id", audienceID).
		Int64("drawing_id", drawing.ID).
		Msg("drawing persisted")
	return drawing, slide, nil
}

// ListBySlide returns all submissions for a slide, newest first.
func (a *App) ListBySlide(ctx context.Context, slideID string) ([]models.Drawing, error) {
	if slideID == "" {
		return nil, apperr.Validation("Slide ID is required")
	}
	list, err := a.repo.ListBySlide(ctx, slideID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return list, nil
}
