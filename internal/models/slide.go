package models

import "time"

// Slide is the unit of a presenter-defined drawing prompt.
type Slide struct {
	ID            int64     `json:"id"`
	SlideID       string    `json:"slide_id"`
	Title         string    `json:"title"`
	CountdownTime int       `json:"countdown_time"`
	CreatedAt     time.Time `json:"created_at"`
}

// SlideDetail is a slide joined with its optional reference image.
type SlideDetail struct {
	Slide
	ReferenceImage *string `json:"reference_image"`
}

// ReferenceImage is the 1:1 prompt image attached to a slide.
// Stored as an opaque base64 string, last write wins.
type ReferenceImage struct {
	ID        int64     `json:"id"`
	SlideID   string    `json:"slide_id"`
	ImageData string    `json:"image_data"`
	CreatedAt time.Time `json:"created_at"`
}

// RoundState is the persisted authoritative countdown for a slide.
// Any client recomputes the remaining time from StartedAt and Duration
// instead of depending on a single in-memory ticking source.
type RoundState struct {
	Active    bool       `json:"active"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Duration  int        `json:"duration"`
}

// Remaining returns the whole seconds left in the round at now,
// clamped at zero. An inactive round has no time remaining.
func (r RoundState) Remaining(now time.Time) int {
	if !r.Active || r.StartedAt == nil {
		return 0
	}
	remaining := r.Duration - int(now.Sub(*r.StartedAt).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}
