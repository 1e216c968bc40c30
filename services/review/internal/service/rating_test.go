package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/healthapp/reviews/pkg/errors"
	"github.com/healthapp/reviews/services/review/internal/domain"
)

type ratingFixture struct {
	svc     *RatingService
	reviews *mockReviewRepo
	store   *mockRatingStore
	cache   *mockRatingCache
	events  *mockPublisher
}

func newRatingFixture() *ratingFixture {
	f := &ratingFixture{
		reviews: new(mockReviewRepo),
		store:   new(mockRatingStore),
		cache:   new(mockRatingCache),
		events:  new(mockPublisher),
	}
	f.svc = NewRatingService(f.reviews, f.store, f.cache, f.events, prometheus.NewRegistry(), newTestLogger())
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func TestRatingService_Get_CacheHit(t *testing.T) {
	f := newRatingFixture()
	ctx := context.Background()

	cached := domain.EmptyRating("doc-1")
	f.cache.On("Get", ctx, "doc-1").Return(cached, nil)

	got, err := f.svc.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Same(t, cached, got)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.svc.lookups.WithLabelValues("hit")))
	f.store.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestRatingService_Get_MissFillsCache(t *testing.T) {
	f := newRatingFixture()
	ctx := context.Background()

	stored := domain.EmptyRating("doc-1")
	stored.Distribution.Total = 7
	f.cache.On("Get", ctx, "doc-1").Return(nil, apperrors.NotFound("cached rating", "doc-1"))
	f.store.On("Get", ctx, "doc-1").Return(stored, nil)
	f.cache.On("Set", ctx, stored).Return(errors.New("redis down"))

	got, err := f.svc.Get(ctx, "doc-1")
	require.NoError(t, err, "cache write failures are logged only")
	assert.Equal(t, 7, got.Distribution.Total)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.svc.lookups.WithLabelValues("miss")))
	f.cache.AssertExpectations(t)
}

func TestRatingService_Get_NoAggregateRecomputes(t *testing.T) {
	f := newRatingFixture()
	ctx := context.Background()

	f.cache.On("Get", ctx, "doc-1").Return(nil, errors.New("redis down"))
	f.store.On("Get", ctx, "doc-1").Return(nil, apperrors.NotFound("rating", "doc-1"))
	f.reviews.On("ListForRating", ctx, "doc-1").Return([]domain.Review{
		{OverallRating: 5, Channel: domain.ChannelVideo},
		{OverallRating: 3, Channel: domain.ChannelVideo},
	}, nil)
	f.store.On("Upsert", ctx, mock.AnythingOfType("*domain.DoctorRating")).Return(nil)
	f.cache.On("Invalidate", ctx, "doc-1").Return(nil)
	f.events.On("PublishRatingUpdated", ctx, mock.AnythingOfType("*domain.DoctorRating")).Return(nil)

	got, err := f.svc.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Distribution.Total)
	assert.InDelta(t, 4.0, got.Distribution.Mean, 0.001)
	assert.InDelta(t, 50.0, got.RecommendationRate, 0.001)
	assert.Equal(t, fixedNow, got.LastUpdated)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.svc.lookups.WithLabelValues("error")))
	f.store.AssertExpectations(t)
	f.events.AssertExpectations(t)
}

func TestRatingService_Recompute_EmptyDoctor(t *testing.T) {
	f := newRatingFixture()
	ctx := context.Background()

	f.reviews.On("ListForRating", ctx, "doc-3").Return(nil, nil)
	f.store.On("Upsert", ctx, mock.AnythingOfType("*domain.DoctorRating")).Return(nil)
	f.cache.On("Invalidate", ctx, "doc-3").Return(errors.New("redis down"))
	f.events.On("PublishRatingUpdated", ctx, mock.Anything).Return(errors.New("broker down"))

	got, err := f.svc.Recompute(ctx, "doc-3")
	require.NoError(t, err)
	assert.Zero(t, got.Distribution.Total)
	assert.Zero(t, got.RecommendationRate)
	assert.NotNil(t, got.Channels)
}

func TestRatingService_Recompute_StoreError(t *testing.T) {
	f := newRatingFixture()
	ctx := context.Background()

	f.reviews.On("ListForRating", ctx, "doc-1").Return([]domain.Review{{OverallRating: 4}}, nil)
	f.store.On("Upsert", ctx, mock.Anything).Return(errors.New("db down"))

	_, err := f.svc.Recompute(ctx, "doc-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store rating")
	f.cache.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
}
