package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/healthapp/reviews/pkg/errors"
	"github.com/healthapp/reviews/services/review/internal/domain"
)

const keyPrefix = "review:rating:"

// RatingCache implements repository.RatingCache using Redis.
type RatingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRatingCache creates a Redis-backed rating cache whose entries expire
// after ttl.
func NewRatingCache(client *redis.Client, ttl time.Duration) *RatingCache {
	return &RatingCache{
		client: client,
		ttl:    ttl,
	}
}

// Get returns the cached aggregate for a doctor.
func (c *RatingCache) Get(ctx context.Context, doctorID string) (*domain.DoctorRating, error) {
	data, err := c.client.Get(ctx, keyPrefix+doctorID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("cached rating", doctorID)
		}
		return nil, fmt.Errorf("redis get rating: %w", err)
	}

	var rating domain.DoctorRating
	if err := json.Unmarshal(data, &rating); err != nil {
		return nil, fmt.Errorf("unmarshal rating: %w", err)
	}
	return &rating, nil
}

// Set stores rating with the configured TTL.
func (c *RatingCache) Set(ctx context.Context, rating *domain.DoctorRating) error {
	data, err := json.Marshal(rating)
	if err != nil {
		return fmt.Errorf("marshal rating: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+rating.DoctorID, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set rating: %w", err)
	}
	return nil
}

// Invalidate drops the cached aggregate for a doctor.
func (c *RatingCache) Invalidate(ctx context.Context, doctorID string) error {
	if err := c.client.Del(ctx, keyPrefix+doctorID).Err(); err != nil {
		return fmt.Errorf("redis del rating: %w", err)
	}
	return nil
}
