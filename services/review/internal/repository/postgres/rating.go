package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/healthapp/reviews/pkg/database"
	apperrors "github.com/healthapp/reviews/pkg/errors"
	"github.com/healthapp/reviews/services/review/internal/domain"
)

// RatingRepository stores the per-doctor rating aggregate in PostgreSQL.
type RatingRepository struct {
	pool database.DBTX
}

// NewRatingRepository creates a new PostgreSQL-backed rating repository.
func NewRatingRepository(pool database.DBTX) *RatingRepository {
	return &RatingRepository{pool: pool}
}

// Get returns the stored aggregate for a doctor.
func (r *RatingRepository) Get(ctx context.Context, doctorID string) (_ *domain.DoctorRating, err error) {
	query := `
		SELECT one_star_count, two_star_count, three_star_count, four_star_count, five_star_count,
		       total_reviews, average_rating, avg_wait_time, avg_bedside_manner, avg_explanation,
		       channel_ratings, recommendation_rate, last_updated
		FROM doctor_rating_aggregates
		WHERE doctor_id = $1`

	ctx, end := database.TraceQuery(ctx, "GetRating", query)
	defer func() { end(err) }()

	rating := domain.EmptyRating(doctorID)
	d := &rating.Distribution
	var channels []byte
	err = r.pool.QueryRow(ctx, query, doctorID).Scan(
		&d.Counts[0], &d.Counts[1], &d.Counts[2], &d.Counts[3], &d.Counts[4],
		&d.Total, &d.Mean, &rating.AvgWaitTime, &rating.AvgBedsideManner, &rating.AvgExplanation,
		&channels, &rating.RecommendationRate, &rating.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("rating", doctorID)
		}
		return nil, fmt.Errorf("get rating: %w", err)
	}
	if len(channels) > 0 {
		if err = json.Unmarshal(channels, &rating.Channels); err != nil {
			return nil, fmt.Errorf("decode channel ratings: %w", err)
		}
	}
	return rating, nil
}

// Upsert replaces the stored aggregate for rating.DoctorID.
func (r *RatingRepository) Upsert(ctx context.Context, rating *domain.DoctorRating) (err error) {
	query := `
		INSERT INTO doctor_rating_aggregates (
			doctor_id, one_star_count, two_star_count, three_star_count, four_star_count, five_star_count,
			total_reviews, average_rating, avg_wait_time, avg_bedside_manner, avg_explanation,
			channel_ratings, recommendation_rate, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (doctor_id) DO UPDATE SET
			one_star_count = EXCLUDED.one_star_count,
			two_star_count = EXCLUDED.two_star_count,
			three_star_count = EXCLUDED.three_star_count,
			four_star_count = EXCLUDED.four_star_count,
			five_star_count = EXCLUDED.five_star_count,
			total_reviews = EXCLUDED.total_reviews,
			average_rating = EXCLUDED.average_rating,
			avg_wait_time = EXCLUDED.avg_wait_time,
			avg_bedside_manner = EXCLUDED.avg_bedside_manner,
			avg_explanation = EXCLUDED.avg_explanation,
			channel_ratings = EXCLUDED.channel_ratings,
			recommendation_rate = EXCLUDED.recommendation_rate,
			last_updated = EXCLUDED.last_updated`

	ctx, end := database.TraceQuery(ctx, "UpsertRating", query)
	defer func() { end(err) }()

	channels := rating.Channels
	if channels == nil {
		channels = map[domain.ConsultationChannel]domain.ChannelRating{}
	}
	encoded, err := json.Marshal(channels)
	if err != nil {
		return fmt.Errorf("encode channel ratings: %w", err)
	}

	d := rating.Distribution
	_, err = r.pool.Exec(ctx, query,
		rating.DoctorID,
		d.Counts[0], d.Counts[1], d.Counts[2], d.Counts[3], d.Counts[4],
		d.Total, d.Mean,
		rating.AvgWaitTime, rating.AvgBedsideManner, rating.AvgExplanation,
		encoded, rating.RecommendationRate, rating.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	return nil
}
