package drawings

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sketchparty/sketchparty/internal/models"
	"github.com/sketchparty/sketchparty/internal/slides"
	"github.com/sketchparty/sketchparty/internal/sqlutil"
)

// Repository persists audience drawing submissions.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert appends a drawing row. The slide is ensured inside the same
// transaction so the foreign key target always exists, and the returned
// slide snapshot reflects whatever settings were already stored.
func (r *Repository) Insert(ctx context.Context, slideID, audienceID, audienceName, imageData string) (*models.Drawing, *models.Slide, error) {
	var drawing models.Drawing
	var slide *models.Slide

	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		s, err := slides.EnsureSlideTx(ctx, tx, slideID)
		if err != nil {
			return err
		}
		slide = s

		query := `
			INSERT INTO drawings (slide_id, audience_id, audience_name, image_data)
			VALUES (?, ?, ?, ?)
		`
		res, err := tx.ExecContext(ctx, query, slideID, audienceID, audienceName, imageData)
		if err != nil {
			return fmt.Errorf("failed to insert drawing: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read drawing id: %w", err)
		}

		row := tx.QueryRowContext(ctx, `
			SELECT id, slide_id, audience_id, audience_name, image_data, created_at
			FROM drawings WHERE id = ?
		`, id)
		return row.Scan(
			&drawing.ID, &drawing.SlideID, &drawing.AudienceID,
			&drawing.AudienceName, &drawing.ImageData, &drawing.CreatedAt,
		)
	})
	if err != nil {
		return nil, nil, err
	}
	return &drawing, slide, nil
}

// ListBySlide returns every drawing for a slide, newest first.
func (r *Repository) ListBySlide(ctx context.Context, slideID string) ([]models.Drawing, error) {
	query := `
		SELECT id, slide_id, audience_id, audience_name, image_data, created_at
		FROM drawings
		WHERE slide_id = ?
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, slideID)
	if err != nil {
		return nil, fmt.Errorf("failed to list drawings: %w", err)
	}
	defer rows.Close()

	var result []models.Drawing
	for rows.Next() {
		var d models.Drawing
		if err := rows.Scan(&d.ID, &d.SlideID, &d.AudienceID, &d.AudienceName, &d.ImageData, &d.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
