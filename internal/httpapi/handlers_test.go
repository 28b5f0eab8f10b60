package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchparty/sketchparty/internal/db"
	"github.com/sketchparty/sketchparty/internal/drawings"
	"github.com/sketchparty/sketchparty/internal/slides"
)

type fakeUploader struct {
	lastFileName string
}

func (u *fakeUploader) Upload(ctx context.Context, imageData, fileName string) (string, error) {
	u.lastFileName = fileName
	return "https://bucket.example.com/drawings/" + fileName, nil
}

type testServer struct {
	router    http.Handler
	slideRepo *slides.Repository
	uploader  *fakeUploader
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	database, err := db.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	slideRepo := slides.NewRepository(database)
	uploader := &fakeUploader{}
	handler := NewHandler(
		slides.NewApp(slideRepo),
		drawings.NewApp(drawings.NewRepository(database)),
		uploader,
	)
	return &testServer{
		router:    NewRouter(handler, nil, nil),
		slideRepo: slideRepo,
		uploader:  uploader,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestGetSlideNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/slides/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Slide not found", body["error"])
}

func TestEnsureSlideThenGet(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/slides/deck-1/ensure", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "deck-1", body["slide_id"])
	assert.Equal(t, "", body["title"])
	assert.Equal(t, float64(0), body["countdown_time"])
	assert.Nil(t, body["reference_image"])

	// Ensure is idempotent and GET now succeeds without mutating.
	rec = s.do(t, http.MethodPost, "/api/slides/deck-1/ensure", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/slides/deck-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpsertSlide(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/slides", map[string]any{
		"slideId": "deck-1",
		"title":   "Draw a cat",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Draw a cat", body["title"])

	rec = s.do(t, http.MethodPost, "/api/slides", map[string]any{"title": "no id"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateSettingsPartialFields(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/slides/deck-1/settings", map[string]any{
		"title":         "Original",
		"countdownTime": 45,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Omitted fields keep their stored values.
	rec = s.do(t, http.MethodPost, "/api/slides/deck-1/settings", map[string]any{
		"countdownTime": 90,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Original", body["title"])
	assert.Equal(t, float64(90), body["countdown_time"])
}

func TestSaveReferenceImageRequiresSlide(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/slides/ghost/image", map[string]any{
		"imageData": "data:image/png;base64,abc",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/slides/ghost/ensure", nil).Code)

	rec = s.do(t, http.MethodPost, "/api/slides/ghost/image", map[string]any{
		"imageData": "data:image/png;base64,abc",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/slides/ghost", nil)
	body := decodeBody(t, rec)
	assert.Equal(t, "data:image/png;base64,abc", body["reference_image"])
}

func TestSubmitDrawing(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/drawings", map[string]any{
		"slideId":      "deck-1",
		"audienceId":   "a1",
		"audienceName": "Ana",
		"imageData":    "png-bytes",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	drawing := body["drawing"].(map[string]any)
	assert.Equal(t, "Ana", drawing["audience_name"])

	// Missing fields are rejected before touching storage.
	rec = s.do(t, http.MethodPost, "/api/drawings", map[string]any{
		"slideId":   "deck-1",
		"imageData": "png-bytes",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListDrawingsEmptyIsArray(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/drawings/empty-slide", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestGetRound(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	startedAt := time.Now().Add(-3 * time.Second)
	require.NoError(t, s.slideRepo.StartRound(ctx, "deck-1", 10, startedAt))

	rec := s.do(t, http.MethodGet, "/api/slides/deck-1/round", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["active"])
	assert.Equal(t, float64(10), body["duration"])
	assert.InDelta(t, 7, body["remaining"].(float64), 1)
}

func TestGetRoundUnknownSlideIsIdle(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/slides/never-seen/round", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["active"])
	assert.Equal(t, float64(0), body["remaining"])
}

func TestUpload(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/upload", map[string]any{
		"imageData": "data:image/png;base64,abc",
		"fileName":  "final.png",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "https://bucket.example.com/drawings/final.png", body["url"])
	assert.Equal(t, "final.png", s.uploader.lastFileName)

	rec = s.do(t, http.MethodPost, "/api/upload", map[string]any{"fileName": "x.png"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
