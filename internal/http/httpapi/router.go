package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/Houman6460/pixelperfect-sub005/internal/http/handlers"
	"github.com/Houman6460/pixelperfect-sub005/internal/infra"
	"github.com/Houman6460/pixelperfect-sub005/internal/middleware"
)

// NewRouter assembles the public HTTP surface. Generation routes get a
// tighter rate limit since each request fans out to paid provider calls.
func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
	)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-User-ID", "X-Request-ID"},
		MaxAge:         300,
	}).Handler)

	generationLimit := middleware.RateLimit(cfg.RateLimitPerMin, time.Minute)

	r.Get("/v1/healthz", app.Health)

	r.Route("/timelines", func(r chi.Router) {
		r.Post("/", app.TimelineCreate)
		r.Get("/{id}", app.TimelineGet)
	})

	r.Route("/segments", func(r chi.Router) {
		r.Get("/modes", app.SegmentModes)
		r.Post("/validate", app.SegmentValidate)
		r.Post("/create", app.SegmentCreate)
		r.With(generationLimit).Post("/generate-timeline", app.SegmentGenerateTimeline)
		r.Get("/{id}", app.SegmentsByTimeline)
		r.With(generationLimit).Post("/{id}/generate", app.SegmentGenerate)
		r.Patch("/{id}", app.SegmentUpdate)
		r.Delete("/{id}", app.SegmentDelete)
	})

	r.Route("/enhancement", func(r chi.Router) {
		r.Get("/upscalers", app.UpscalerList)
		r.Get("/upscalers/{id}", app.UpscalerGet)
		r.Post("/segment/{id}/queue", app.EnhancementQueue)
		r.Get("/segment/{id}", app.EnhancementBySegment)
		r.Get("/jobs/pending/{timelineID}", app.EnhancementPendingByTimeline)
		r.Get("/jobs/{jobID}", app.EnhancementJobGet)
		r.With(generationLimit).Post("/timeline/{id}/enhance-all", app.EnhancementTimeline)
	})

	// Locally stored frames and thumbnails when the filesystem backend is
	// active; S3 serves its own urls.
	if cfg.StorageBackend == "filesystem" {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StoragePath)))
		r.Get("/static/*", fileServer.ServeHTTP)
	}

	return r
}
