package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"biblestudy/internal/http/handlers"
	"biblestudy/internal/infra"
	"biblestudy/internal/middleware"
)

// NewRouter wires the API routes with the shared middleware chain. lookup may
// be nil when no GeoIP database is configured.
func NewRouter(cfg *infra.Config, logger infra.Logger, app *handlers.App, lookup middleware.CountryLookup) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
		middleware.CORS(cfg.CORSAllowedOrigins),
		middleware.Translation(cfg.DefaultTranslation, lookup),
		middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/studies", func(r chi.Router) {
		r.Post("/", app.StudiesCreate)
		r.Get("/{id}", app.StudiesGet)
		r.Get("/{id}/days", app.StudiesDays)
		r.Delete("/{id}", app.StudiesCancel)
	})

	return r
}
