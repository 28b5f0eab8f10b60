// Package httpapi exposes the REST surface: slide CRUD, drawing
// submissions, round state, and image upload. JSON bodies, no auth.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sketchparty/sketchparty/internal/apperr"
	"github.com/sketchparty/sketchparty/internal/models"
)

// SlideApp defines what the handlers need from the slides app layer.
type SlideApp interface {
	UpsertSlide(ctx context.Context, slideID, title string) (*models.Slide, error)
	GetSlide(ctx context.Context, slideID string) (*models.SlideDetail, error)
	EnsureSlide(ctx context.Context, slideID string) (*models.SlideDetail, error)
	UpdateSettings(ctx context.Context, slideID string, title *string, countdownTime *int, referenceImage *string) (*models.SlideDetail, error)
	SaveReferenceImage(ctx context.Context, slideID, imageData string) (int64, error)
	GetRound(ctx context.Context, slideID string) (*models.RoundState, error)
}

// DrawingApp defines what the handlers need from the drawings app layer.
type DrawingApp interface {
	Submit(ctx context.Context, slideID, audienceID, audienceName, imageData string) (*models.Drawing, *models.Slide, error)
	ListBySlide(ctx context.Context, slideID string) ([]models.Drawing, error)
}

// Uploader sends an image to object storage and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, imageData, fileName string) (string, error)
}

// Handler carries the app layers behind the REST routes.
type Handler struct {
	slides   SlideApp
	drawings DrawingApp
	uploader Uploader
	now      func() time.Time
}

func NewHandler(slides SlideApp, drawings DrawingApp, uploader Uploader) *Handler {
	return &Handler{
		slides:   slides,
		drawings: drawings,
		uploader: uploader,
		now:      time.Now,
	}
}

type upsertSlideRequest struct {
	SlideID string `json:"slideId"`
	Title   string `json:"title"`
}

type imageRequest struct {
	ImageData string `json:"imageData"`
}

type settingsRequest struct {
	Title          *string `json:"title"`
	CountdownTime  *int    `json:"countdownTime"`
	ReferenceImage *string `json:"referenceImage"`
}

type drawingRequest struct {
	SlideID      string `json:"slideId"`
	AudienceID   string `json:"audienceId"`
	AudienceName string `json:"audienceName"`
	ImageData    string `json:"imageData"`
}

type uploadRequest struct {
	ImageData string `json:"imageData"`
	FileName  string `json:"fileName"`
}

// handleUpsertSlide handles POST /api/slides.
func (h *Handler) handleUpsertSlide(w http.ResponseWriter, r *http.Request) {
	var req upsertSlideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("Invalid request body"))
		return
	}

	slide, err := h.slides.UpsertSlide(r.Context(), req.SlideID, req.Title)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":      slide.ID,
		"slideId": slide.SlideID,
		"title":   slide.Title,
	})
}

// handleGetSlide handles GET /api/slides/{slideId}. Reads are free of
// mutation; absent slides 404. POST .../ensure auto-provisions.
func (h *Handler) handleGetSlide(w http.ResponseWriter, r *http.Request) {
	slideID := mux.Vars(r)["slideId"]

	detail, err := h.slides.GetSlide(r.Context(), slideID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slideResponse(detail))
}

// handleEnsureSlide handles POST /api/slides/{slideId}/ensure: the
// explicit get-or-create with default settings. Idempotent.
func (h *Handler) handleEnsureSlide(w http.ResponseWriter, r *http.Request) {
	slideID := mux.Vars(r)["slideId"]

	detail, err := h.slides.EnsureSlide(r.Context(), slideID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slideResponse(detail))
}

// handleSaveImage handles POST /api/slides/{slideId}/image.
func (h *Handler) handleSaveImage(w http.ResponseWriter, r *http.Request) {
	slideID := mux.Vars(r)["slideId"]

	var req imageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("Invalid request body"))
		return
	}

	id, err := h.slides.SaveReferenceImage(r.Context(), slideID, req.ImageData)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "slideId": slideID})
}

// handleUpdateSettings handles POST /api/slides/{slideId}/settings.
// Each field is independently optional; omitted fields keep their
// stored values.
func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	slideID := mux.Vars(r)["slideId"]

	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("Invalid request body"))
		return
	}

	detail, err := h.slides.UpdateSettings(r.Context(), slideID, req.Title, req.CountdownTime, req.ReferenceImage)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slideResponse(detail))
}

// handleGetRound handles GET /api/slides/{slideId}/round: the persisted
// countdown window with remaining seconds recomputed server-side, so
// any client can rejoin deterministically.
func (h *Handler) handleGetRound(w http.ResponseWriter, r *http.Request) {
	slideID := mux.Vars(r)["slideId"]

	round, err := h.slides.GetRound(r.Context(), slideID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"active":     round.Active,
		"started_at": round.StartedAt,
		"duration":   round.Duration,
		"remaining":  round.Remaining(h.now()),
	})
}

// handleSubmitDrawing handles POST /api/drawings.
func (h *Handler) handleSubmitDrawing(w http.ResponseWriter, r *http.Request) {
	var req drawingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("Invalid request body"))
		return
	}

	drawing, slide, err := h.drawings.Submit(r.Context(), req.SlideID, req.AudienceID, req.AudienceName, req.ImageData)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drawing": drawing, "slide": slide})
}

// handleListDrawings handles GET /api/drawings/{slideId}.
func (h *Handler) handleListDrawings(w http.ResponseWriter, r *http.Request) {
	slideID := mux.Vars(r)["slideId"]

	list, err := h.drawings.ListBySlide(r.Context(), slideID)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []models.Drawing{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handleUpload handles POST /api/upload.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		writeError(w, apperr.Validation("Upload storage is not configured"))
		return
	}

	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("Invalid request body"))
		return
	}
	if req.ImageData == "" || req.FileName == "" {
		writeError(w, apperr.Validation("Image data and file name are required"))
		return
	}

	url, err := h.uploader.Upload(r.Context(), req.ImageData, req.FileName)
	if err != nil {
		writeError(w, apperr.Storage(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": url})
}

// slideResponse mirrors the stored column names on the wire.
func slideResponse(d *models.SlideDetail) map[string]any {
	return map[string]any{
		"id":              d.ID,
		"slide_id":        d.SlideID,
		"title":           d.Title,
		"countdown_time":  d.CountdownTime,
		"reference_image": d.ReferenceImage,
		"created_at":      d.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError maps an app error to its status and a JSON {error} body.
// Storage errors log the cause server-side and return a generic message.
func writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": apperr.Message(err)})
}
