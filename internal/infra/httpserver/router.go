package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/saurav7sc/mayalens/internal/application/palm"
	"github.com/saurav7sc/mayalens/internal/domain/reading"
	"github.com/saurav7sc/mayalens/internal/infra/storage"
	"github.com/saurav7sc/mayalens/internal/middleware"
	"github.com/saurav7sc/mayalens/internal/observability"
)

const (
	// APIVersion is reported by /health, ServiceVersion by the root banner.
	APIVersion     = "1.1.0"
	ServiceVersion = "1.0.0"

	defaultMaxUploadBytes = 10 << 20
	imageField            = "image"
)

// Deps are the collaborators the router serves.
type Deps struct {
	Palm    *palm.Service
	Audio   reading.AudioStore
	Cache   middleware.ItemCounter
	Limiter *middleware.SlidingWindow
	Metrics *middleware.Metrics
	Logger  *zap.Logger
}

// Options tune the HTTP surface.
type Options struct {
	MaxUploadBytes int64
	TrustProxy     bool
	CORSOrigins    []string
	Services       map[string]middleware.CredentialCheck
}

type Router struct {
	palmSvc   *palm.Service
	audio     reading.AudioStore
	maxUpload int64
}

func NewRouter(deps Deps, opts Options) http.Handler {
	r := &Router{palmSvc: deps.Palm, audio: deps.Audio, maxUpload: opts.MaxUploadBytes}
	if r.maxUpload <= 0 {
		r.maxUpload = defaultMaxUploadBytes
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = middleware.NewMetrics()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{middleware.RequestIDHeader, "Retry-After"},
		MaxAge:         300,
	}))
	if opts.TrustProxy {
		mux.Use(chimw.RealIP)
	}
	mux.Use(middleware.LoggingMiddleware(deps.Logger))
	mux.Use(middleware.RecoveryMiddleware)
	mux.Use(metrics.Middleware)

	mux.Get("/", r.handleRoot)
	mux.Get("/health", middleware.HealthHandler(middleware.HealthOptions{
		Version:  APIVersion,
		Services: opts.Services,
		Cache:    deps.Cache,
		Audio:    deps.Audio,
	}))
	mux.Get("/metrics", metrics.Handler)
	mux.Get("/audio/{filename}", r.wrap(r.handleAudio))

	analyze := mux.With()
	if deps.Limiter != nil {
		analyze = mux.With(middleware.RateLimitMiddleware(deps.Limiter, metrics))
	}
	analyze.Post("/api/analyze-palm", r.wrap(r.handleAnalyze))

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var v *reading.ValidationError
			if errors.As(err, &v) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"detail": v.Message})
				return
			}
			if errors.Is(err, storage.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Audio file not found"})
				return
			}
			observability.FromContext(req.Context()).Error("request failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, reading.Outcome{
				Text:   middleware.GenericErrorText,
				Status: reading.StatusError,
			})
		}
	}
}

// POST /api/analyze-palm
// Multipart form with the palm photo in the "image" field.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload)
	if err := req.ParseMultipartForm(r.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return reading.NewValidationError(reading.ErrUploadTooLarge, "Image file is too large. Please upload a smaller image.")
		}
		return reading.NewValidationError(reading.ErrMissingImage, "No image file provided. Please upload a palm image.")
	}
	defer req.MultipartForm.RemoveAll()

	file, header, err := req.FormFile(imageField)
	if err != nil {
		return reading.NewValidationError(reading.ErrMissingImage, "No image file provided. Please upload a palm image.")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	out, err := r.palmSvc.Analyze(req.Context(), reading.Upload{
		Filename:    middleware.SanitizeString(header.Filename),
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, out)
	return nil
}

// GET /audio/{filename}
func (r *Router) handleAudio(w http.ResponseWriter, req *http.Request) error {
	name := chi.URLParam(req, "filename")
	if r.audio == nil || middleware.ValidateAudioFilename(name) != nil {
		return storage.ErrNotFound
	}

	rc, err := r.audio.Open(req.Context(), storage.ObjectName(name))
	if err != nil {
		return err
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		observability.FromContext(req.Context()).Warn("audio stream interrupted", zap.Error(err))
	}
	return nil
}

// GET /
func (r *Router) handleRoot(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Palm Reading API",
		"version": ServiceVersion,
		"endpoints": map[string]string{
			"analyze": "/api/analyze-palm",
			"health":  "/health",
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
