package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/healthapp/reviews/pkg/kafka"
	"github.com/healthapp/reviews/services/review/internal/domain"
)

// ConsumedTopics lists the topics the rating projector subscribes to.
var ConsumedTopics = []string{TopicReviewSubmitted, TopicReviewModerated}

// RatingRecomputer rebuilds a doctor's rating aggregate.
type RatingRecomputer interface {
	Recompute(ctx context.Context, doctorID string) (*domain.DoctorRating, error)
}

// Consumer keeps rating aggregates in step with submitted and moderated
// reviews.
type Consumer struct {
	ratings RatingRecomputer
	logger  *slog.Logger
}

// NewConsumer creates a new rating projector.
func NewConsumer(ratings RatingRecomputer, logger *slog.Logger) *Consumer {
	return &Consumer{
		ratings: ratings,
		logger:  logger,
	}
}

// Handle dispatches an event by type. Unknown types are ignored.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicReviewSubmitted:
		return c.HandleReviewSubmitted(ctx, event)
	case TopicReviewModerated:
		return c.HandleReviewModerated(ctx, event)
	default:
		c.logger.DebugContext(ctx, "ignoring event",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

// HandleReviewSubmitted recomputes the doctor's aggregate when an approved
// review arrives. Pending reviews do not count until moderated.
func (c *Consumer) HandleReviewSubmitted(ctx context.Context, event *pkgkafka.Event) error {
	data, err := pkgkafka.DecodeData[ReviewSubmittedData](event)
	if err != nil {
		return err
	}
	if data.Status != domain.StatusApproved {
		return nil
	}
	return c.recompute(ctx, data.DoctorID, data.ReviewID)
}

// HandleReviewModerated recomputes the doctor's aggregate after any status
// change, since the review may have entered or left the approved set.
func (c *Consumer) HandleReviewModerated(ctx context.Context, event *pkgkafka.Event) error {
	data, err := pkgkafka.DecodeData[ReviewModeratedData](event)
	if err != nil {
		return err
	}
	return c.recompute(ctx, data.DoctorID, data.ReviewID)
}

func (c *Consumer) recompute(ctx context.Context, doctorID, reviewID string) error {
	if doctorID == "" {
		return fmt.Errorf("event for review %s has no doctor_id", reviewID)
	}
	rating, err := c.ratings.Recompute(ctx, doctorID)
	if err != nil {
		return fmt.Errorf("recompute rating for doctor %s: %w", doctorID, err)
	}
	c.logger.InfoContext(ctx, "rating aggregate updated",
		slog.String("doctor_id", doctorID),
		slog.String("review_id", reviewID),
		slog.Int("total_reviews", rating.Distribution.Total),
	)
	return nil
}
