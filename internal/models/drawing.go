package models

import "time"

// Drawing is one audience submission for a slide. Append-only: an
// audience member may submit multiple times across rounds and every
// submission keeps its own row.
type Drawing struct {
	ID           int64     `json:"id"`
	SlideID      string    `json:"slide_id"`
	AudienceID   string    `json:"audience_id"`
	AudienceName string    `json:"audience_name"`
	ImageData    string    `json:"image_data"`
	CreatedAt    time.Time `json:"created_at"`
}
