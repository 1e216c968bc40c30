package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pkgkafka "github.com/healthapp/reviews/pkg/kafka"
	"github.com/healthapp/reviews/services/review/internal/domain"
)

// Kafka topics for review domain events.
var (
	TopicReviewSubmitted = pkgkafka.Topic("review", "submitted")
	TopicReviewVoted     = pkgkafka.Topic("review", "voted")
	TopicReviewReported  = pkgkafka.Topic("review", "reported")
	TopicReviewResponded = pkgkafka.Topic("review", "responded")
	TopicReviewModerated = pkgkafka.Topic("review", "moderated")
	TopicRatingUpdated   = pkgkafka.Topic("review", "rating_updated")
)

// Aggregate types.
const (
	AggregateTypeReview = "review"
	AggregateTypeDoctor = "doctor"
)

// SourceReviewService identifies events originating from the review service.
const SourceReviewService = "review-service"

// ReviewSubmittedData is the payload for a review.submitted event.
type ReviewSubmittedData struct {
	ReviewID       string              `json:"review_id"`
	DoctorID       string              `json:"doctor_id"`
	PatientID      string              `json:"patient_id"`
	ConsultationID string              `json:"consultation_id"`
	OverallRating  int                 `json:"overall_rating"`
	Status         domain.ReviewStatus `json:"status"`
}

// ReviewVotedData is the payload for a review.voted event.
type ReviewVotedData struct {
	ReviewID        string            `json:"review_id"`
	UserID          string            `json:"user_id"`
	Action          domain.VoteAction `json:"action"`
	Vote            domain.VoteType   `json:"vote,omitempty"`
	HelpfulCount    int               `json:"helpful_count"`
	NotHelpfulCount int               `json:"not_helpful_count"`
}

// ReviewReportedData is the payload for a review.reported event.
type ReviewReportedData struct {
	ReportID   string              `json:"report_id"`
	ReviewID   string              `json:"review_id"`
	ReporterID string              `json:"reporter_id"`
	Reason     domain.ReportReason `json:"reason"`
	Flagged    bool                `json:"flagged"`
}

// ReviewRespondedData is the payload for a review.responded event.
type ReviewRespondedData struct {
	ReviewID    string    `json:"review_id"`
	DoctorID    string    `json:"doctor_id"`
	PatientID   string    `json:"patient_id"`
	RespondedAt time.Time `json:"responded_at"`
}

// ReviewModeratedData is the payload for a review.moderated event.
type ReviewModeratedData struct {
	ReviewID    string              `json:"review_id"`
	DoctorID    string              `json:"doctor_id"`
	Status      domain.ReviewStatus `json:"status"`
	ModeratorID string              `json:"moderator_id"`
}

// RatingUpdatedData is the payload for a review.rating_updated event.
type RatingUpdatedData struct {
	DoctorID           string  `json:"doctor_id"`
	AverageRating      float64 `json:"average_rating"`
	TotalReviews       int     `json:"total_reviews"`
	RecommendationRate float64 `json:"recommendation_rate"`
}

// publisher is the part of *pkgkafka.Producer the review producer uses.
type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes review domain events to Kafka.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the review service.
func NewProducer(kafka publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateType, aggregateID string, data any) error {
	event, err := pkgkafka.NewEvent(ctx, topic, aggregateType, aggregateID, SourceReviewService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

// PublishReviewSubmitted publishes a review.submitted event keyed by doctor so
// the rating projector sees a doctor's reviews in order.
func (p *Producer) PublishReviewSubmitted(ctx context.Context, review *domain.Review) error {
	return p.publish(ctx, TopicReviewSubmitted, AggregateTypeDoctor, review.DoctorID, ReviewSubmittedData{
		ReviewID:       review.ID,
		DoctorID:       review.DoctorID,
		PatientID:      review.PatientID,
		ConsultationID: review.ConsultationID,
		OverallRating:  review.OverallRating,
		Status:         review.Status,
	})
}

// PublishReviewVoted publishes a review.voted event.
func (p *Producer) PublishReviewVoted(ctx context.Context, userID string, result *domain.VoteResult) error {
	return p.publish(ctx, TopicReviewVoted, AggregateTypeReview, result.ReviewID, ReviewVotedData{
		ReviewID:        result.ReviewID,
		UserID:          userID,
		Action:          result.Action,
		Vote:            result.Vote,
		HelpfulCount:    result.HelpfulCount,
		NotHelpfulCount: result.NotHelpfulCount,
	})
}

// PublishReviewReported publishes a review.reported event.
func (p *Producer) PublishReviewReported(ctx context.Context, report *domain.Report, flagged bool) error {
	return p.publish(ctx, TopicReviewReported, AggregateTypeReview, report.ReviewID, ReviewReportedData{
		ReportID:   report.ID,
		ReviewID:   report.ReviewID,
		ReporterID: report.ReporterID,
		Reason:     report.Reason,
		Flagged:    flagged,
	})
}

// PublishReviewResponded publishes a review.responded event so the patient
// can be notified.
func (p *Producer) PublishReviewResponded(ctx context.Context, review *domain.Review) error {
	data := ReviewRespondedData{
		ReviewID:  review.ID,
		DoctorID:  review.DoctorID,
		PatientID: review.PatientID,
	}
	if review.DoctorResponse != nil {
		data.RespondedAt = review.DoctorResponse.RespondedAt
	}
	return p.publish(ctx, TopicReviewResponded, AggregateTypeReview, review.ID, data)
}

// PublishReviewModerated publishes a review.moderated event keyed by doctor.
func (p *Producer) PublishReviewModerated(ctx context.Context, review *domain.Review, moderatorID string) error {
	return p.publish(ctx, TopicReviewModerated, AggregateTypeDoctor, review.DoctorID, ReviewModeratedData{
		ReviewID:    review.ID,
		DoctorID:    review.DoctorID,
		Status:      review.Status,
		ModeratorID: moderatorID,
	})
}

// PublishRatingUpdated publishes a review.rating_updated event.
func (p *Producer) PublishRatingUpdated(ctx context.Context, rating *domain.DoctorRating) error {
	return p.publish(ctx, TopicRatingUpdated, AggregateTypeDoctor, rating.DoctorID, RatingUpdatedData{
		DoctorID:           rating.DoctorID,
		AverageRating:      rating.Distribution.Mean,
		TotalReviews:       rating.Distribution.Total,
		RecommendationRate: rating.RecommendationRate,
	})
}
