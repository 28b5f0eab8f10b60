package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// WSHandler serves an upgraded WebSocket connection for one slide.
type WSHandler func(w http.ResponseWriter, r *http.Request, slideID string)

// NewRouter builds the REST router with request logging and CORS. ws
// may be nil when no WebSocket bridge is mounted; empty allowedOrigins
// means wide open, matching the browser clients this serves.
func NewRouter(h *Handler, ws WSHandler, allowedOrigins []string) http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/slides", h.handleUpsertSlide).Methods(http.MethodPost)
	api.HandleFunc("/slides/{slideId}", h.handleGetSlide).Methods(http.MethodGet)
	api.HandleFunc("/slides/{slideId}/ensure", h.handleEnsureSlide).Methods(http.MethodPost)
	api.HandleFunc("/slides/{slideId}/image", h.handleSaveImage).Methods(http.MethodPost)
	api.HandleFunc("/slides/{slideId}/settings", h.handleUpdateSettings).Methods(http.MethodPost)
	api.HandleFunc("/slides/{slideId}/round", h.handleGetRound).Methods(http.MethodGet)
	api.HandleFunc("/drawings", h.handleSubmitDrawing).Methods(http.MethodPost)
	api.HandleFunc("/drawings/{slideId}", h.handleListDrawings).Methods(http.MethodGet)
	api.HandleFunc("/upload", h.handleUpload).Methods(http.MethodPost)

	if ws != nil {
		r.HandleFunc("/ws/{slideId}", func(w http.ResponseWriter, req *http.Request) {
			ws(w, req, mux.Vars(req)["slideId"])
		}).Methods(http.MethodGet)
	}

	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	r.Use(loggingMiddleware)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(r)
}

// loggingMiddleware logs one line per request.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
