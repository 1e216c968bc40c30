package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	apperrors "github.com/healthapp/reviews/pkg/errors"
	"github.com/healthapp/reviews/services/review/internal/domain"
	"github.com/healthapp/reviews/services/review/internal/listing"
	"github.com/healthapp/reviews/services/review/internal/repository"
)

// RatingService serves and rebuilds per-doctor rating aggregates. Reads go
// through the cache; a stored aggregate is rebuilt on demand when missing.
type RatingService struct {
	reviews repository.ReviewRepository
	store   repository.RatingRepository
	cache   repository.RatingCache
	events  EventPublisher
	lookups *prometheus.CounterVec
	logger  *slog.Logger
	now     func() time.Time
}

// NewRatingService creates a rating service. The cache lookup counter is
// registered with reg.
func NewRatingService(
	reviews repository.ReviewRepository,
	store repository.RatingRepository,
	cache repository.RatingCache,
	events EventPublisher,
	reg prometheus.Registerer,
	logger *slog.Logger,
) *RatingService {
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "review_rating_cache_lookups_total",
		Help: "Rating aggregate cache lookups by result.",
	}, []string{"result"})
	reg.MustRegister(lookups)

	return &RatingService{
		reviews: reviews,
		store:   store,
		cache:   cache,
		events:  events,
		lookups: lookups,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the doctor's aggregate.
func (s *RatingService) Get(ctx context.Context, doctorID string) (*domain.DoctorRating, error) {
	rating, err := s.cache.Get(ctx, doctorID)
	if err == nil {
		s.lookups.WithLabelValues("hit").Inc()
		return rating, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		s.lookups.WithLabelValues("error").Inc()
		s.logger.WarnContext(ctx, "rating cache read failed",
			slog.String("doctor_id", doctorID),
			slog.String("error", err.Error()),
		)
	} else {
		s.lookups.WithLabelValues("miss").Inc()
	}

	rating, err = s.store.Get(ctx, doctorID)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return s.Recompute(ctx, doctorID)
	case err != nil:
		return nil, fmt.Errorf("get stored rating: %w", err)
	}

	if err := s.cache.Set(ctx, rating); err != nil {
		s.logger.WarnContext(ctx, "rating cache write failed",
			slog.String("doctor_id", doctorID),
			slog.String("error", err.Error()),
		)
	}
	return rating, nil
}

// Recompute rebuilds the doctor's aggregate from approved reviews, stores
// it, drops the cached copy and announces the new values.
func (s *RatingService) Recompute(ctx context.Context, doctorID string) (*domain.DoctorRating, error) {
	reviews, err := s.reviews.ListForRating(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list reviews for rating: %w", err)
	}

	rating := listing.Rate(doctorID, reviews, s.now())
	if err := s.store.Upsert(ctx, rating); err != nil {
		return nil, fmt.Errorf("store rating: %w", err)
	}
	if err := s.cache.Invalidate(ctx, doctorID); err != nil {
		s.logger.WarnContext(ctx, "rating cache invalidation failed",
			slog.String("doctor_id", doctorID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.events.PublishRatingUpdated(ctx, rating); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish rating_updated event",
			slog.String("doctor_id", doctorID),
			slog.String("error", err.Error()),
		)
	}
	return rating, nil
}
