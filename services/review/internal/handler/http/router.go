package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/healthapp/reviews/pkg/health"
	"github.com/healthapp/reviews/pkg/middleware"
	"github.com/healthapp/reviews/services/review/internal/auth"
)

// RouterDeps bundles everything NewRouter wires together.
type RouterDeps struct {
	Reviews     ReviewService
	Ratings     RatingReader
	Moderation  ModerationService
	Tokens      middleware.TokenValidator
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Health      *health.Handler
	Gatherer    prometheus.Gatherer
	CORS        middleware.CORSConfig
	Logger      *slog.Logger
}

// NewRouter creates a chi router with all review service routes registered.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(d.CORS))
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestLogging(d.Logger))
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(middleware.Tracing("review-service"))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	// Health check endpoints
	r.Get("/health/live", d.Health.LivenessHandler())
	r.Get("/health/ready", d.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))

	reviewHandler := NewReviewHandler(d.Reviews, d.Ratings, d.Logger)
	moderationHandler := NewModerationHandler(d.Moderation, d.Logger)

	// Per-doctor listing is public; a token only adds the caller's votes.
	r.Route("/api/v1/doctors/{doctorId}/reviews", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.With(middleware.OptionalAuth(d.Tokens)).Get("/", reviewHandler.ListDoctorReviews)
		r.Get("/rating", reviewHandler.DoctorRating)
		r.With(middleware.Auth(d.Tokens), middleware.RequireRole(auth.RoleDoctor)).
			Post("/{reviewId}/respond", reviewHandler.Respond)
	})

	r.Route("/api/v1/reviews", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.With(middleware.OptionalAuth(d.Tokens)).Get("/{reviewId}", reviewHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(d.Tokens))

			r.With(middleware.RequireRole(auth.RolePatient)).Post("/", reviewHandler.Submit)
			r.Get("/mine", reviewHandler.ListMine)

			r.Group(func(r chi.Router) {
				if d.RateLimiter != nil {
					r.Use(d.RateLimiter.Middleware)
				}
				r.Post("/{reviewId}/vote", reviewHandler.Vote)
				r.Post("/{reviewId}/report", reviewHandler.Report)
			})
		})
	})

	r.Route("/api/v1/moderation", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(d.Tokens))
		r.Use(middleware.RequireRole(auth.RoleModerator, auth.RoleAdmin))

		r.Get("/reviews/pending", moderationHandler.Pending)
		r.Get("/reviews/flagged", moderationHandler.Flagged)
		r.Put("/reviews/{reviewId}", moderationHandler.Moderate)
		r.Get("/stats", moderationHandler.Stats)
	})

	return r
}
