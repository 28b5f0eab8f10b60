package slides

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sketchparty/sketchparty/internal/models"
	"github.com/sketchparty/sketchparty/internal/sqlutil"
)

// Repository persists slides and their reference images.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// UpsertSlide inserts a slide or updates its title when the slide_id
// already exists.
func (r *Repository) UpsertSlide(ctx context.Context, slideID, title string) (*models.Slide, error) {
	return upsertSlide(ctx, r.db, slideID, title)
}

func upsertSlide(ctx context.Context, q sqlutil.DBTX, slideID, title string) (*models.Slide, error) {
	query := `
		INSERT INTO slides (slide_id, title) VALUES (?, ?)
		ON CONFLICT(slide_id) DO UPDATE SET title = excluded.title
	`
	if _, err := q.ExecContext(ctx, query, slideID, title); err != nil {
		return nil, fmt.Errorf("failed to upsert slide: %w", err)
	}
	return getSlide(ctx, q, slideID)
}

// EnsureSlide creates a slide with default settings when absent and
// returns the stored row either way.
func (r *Repository) EnsureSlide(ctx context.Context, slideID string) (*models.Slide, error) {
	return EnsureSlideTx(ctx, r.db, slideID)
}

// EnsureSlideTx is the transactional form of EnsureSlide, shared with
// the drawings repository so a submission can guarantee its FK target
// inside its own transaction.
func EnsureSlideTx(ctx context.Context, q sqlutil.DBTX, slideID string) (*models.Slide, error) {
	query := `
		INSERT INTO slides (slide_id) VALUES (?)
		ON CONFLICT(slide_id) DO NOTHING
	`
	if _, err := q.ExecContext(ctx, query, slideID); err != nil {
		return nil, fmt.Errorf("failed to ensure slide: %w", err)
	}
	return getSlide(ctx, q, slideID)
}

// GetSlide returns a slide row without side effects.
// Returns sql.ErrNoRows (wrapped) when the slide does not exist.
func (r *Repository) GetSlide(ctx context.Context, slideID string) (*models.Slide, error) {
	return getSlide(ctx, r.db, slideID)
}

func getSlide(ctx context.Context, q sqlutil.DBTX, slideID string) (*models.Slide, error) {
	query := `
		SELECT id, slide_id, title, countdown_time, created_at
		FROM slides WHERE slide_id = ?
	`
	var s models.Slide
	err := q.QueryRowContext(ctx, query, slideID).Scan(
		&s.ID, &s.SlideID, &s.Title, &s.CountdownTime, &s.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get slide: %w", err)
	}
	return &s, nil
}

// GetSlideDetail returns a slide joined with its reference image.
func (r *Repository) GetSlideDetail(ctx context.Context, slideID string) (*models.SlideDetail, error) {
	query := `
		SELECT s.id, s.slide_id, s.title, s.countdown_time, s.created_at, ri.image_data
		FROM slides s
		LEFT JOIN reference_images ri ON s.slide_id = ri.slide_id
		WHERE s.slide_id = ?
	`
	var d models.SlideDetail
	var image sql.NullString
	err := r.db.QueryRowContext(ctx, query, slideID).Scan(
		&d.ID, &d.SlideID, &d.Title, &d.CountdownTime, &d.CreatedAt, &image,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get slide detail: %w", err)
	}
	if image.Valid {
		d.ReferenceImage = &image.String
	}
	return &d, nil
}

// UpdateSettings applies a partial update: nil fields keep their stored
// values. The reference image, when present, is upserted last-write-wins.
func (r *Repository) UpdateSettings(ctx context.Context, slideID string, title *string, countdownTime *int, referenceImage *string) error {
	return sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := EnsureSlideTx(ctx, tx, slideID); err != nil {
			return err
		}

		query := `
			UPDATE slides
			SET title = COALESCE(?, title),
			    countdown_time = COALESCE(?, countdown_time)
			WHERE slide_id = ?
		`
		if _, err := tx.ExecContext(ctx, query, title, countdownTime, slideID); err != nil {
			return fmt.Errorf("failed to update slide settings: %w", err)
		}

		if referenceImage != nil {
			if err := saveReferenceImage(ctx, tx, slideID, *referenceImage); err != nil {
				return err
			}
		}
		return nil
	})
}

// SlideExists reports whether a slide row is present.
func (r *Repository) SlideExists(ctx context.Context, slideID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM slides WHERE slide_id = ?`, slideID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check slide: %w", err)
	}
	return true, nil
}

// SaveReferenceImage upserts the reference image for an existing slide.
func (r *Repository) SaveReferenceImage(ctx context.Context, slideID, imageData string) (int64, error) {
	if err := saveReferenceImage(ctx, r.db, slideID, imageData); err != nil {
		return 0, err
	}
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM reference_images WHERE slide_id = ?`, slideID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to read reference image id: %w", err)
	}
	return id, nil
}

func saveReferenceImage(ctx context.Context, q sqlutil.DBTX, slideID, imageData string) error {
	query := `
		INSERT INTO reference_images (slide_id, image_data) VALUES (?, ?)
		ON CONFLICT(slide_id) DO UPDATE SET image_data = excluded.image_data
	`
	if _, err := q.ExecContext(ctx, query, slideID, imageData); err != nil {
		return fmt.Errorf("failed to save reference image: %w", err)
	}
	return nil
}

// StartRound persists the authoritative countdown window for a slide.
func (r *Repository) StartRound(ctx context.Context, slideID string, duration int, startedAt time.Time) error {
	return sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := EnsureSlideTx(ctx, tx, slideID); err != nil {
			return err
		}
		query := `
			UPDATE slides
			SET round_active = 1, round_started_at = ?, round_duration = ?
			WHERE slide_id = ?
		`
		if _, err := tx.ExecContext(ctx, query, startedAt.UTC(), duration, slideID); err != nil {
			return fmt.Errorf("failed to start round: %w", err)
		}
		return nil
	})
}

// StopRound clears the persisted countdown window.
func (r *Repository) StopRound(ctx context.Context, slideID string) error {
	query := `
		UPDATE slides
		SET round_active = 0, round_started_at = NULL
		WHERE slide_id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, slideID); err != nil {
		return fmt.Errorf("failed to stop round: %w", err)
	}
	return nil
}

// GetRound returns the persisted round state for a slide.
func (r *Repository) GetRound(ctx context.Context, slideID string) (*models.RoundState, error) {
	query := `
		SELECT round_active, round_started_at, round_duration
		FROM slides WHERE slide_id = ?
	`
	var state models.RoundState
	var startedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, slideID).Scan(&state.Active, &startedAt, &state.Duration)
	if err != nil {
		return nil, fmt.Errorf("failed to get round state: %w", err)
	}
	if startedAt.Valid {
		t := startedAt.Time
		state.StartedAt = &t
	}
	return &state, nil
}
