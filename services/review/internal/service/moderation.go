package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/healthapp/reviews/pkg/errors"
	"github.com/healthapp/reviews/pkg/pagination"
	"github.com/healthapp/reviews/services/review/internal/domain"
	"github.com/healthapp/reviews/services/review/internal/repository"
)

// ModerationService implements the moderator queue and status changes.
type ModerationService struct {
	reviews repository.ReviewRepository
	reports repository.ReportRepository
	events  EventPublisher
	logger  *slog.Logger
	now     func() time.Time
}

// NewModerationService creates a new moderation service.
func NewModerationService(
	reviews repository.ReviewRepository,
	reports repository.ReportRepository,
	events EventPublisher,
	logger *slog.Logger,
) *ModerationService {
	return &ModerationService{
		reviews: reviews,
		reports: reports,
		events:  events,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Queue returns the PENDING or FLAGGED reviews, newest first.
func (s *ModerationService) Queue(ctx context.Context, status domain.ReviewStatus, params pagination.Params) (*pagination.Result[domain.Review], error) {
	if status != domain.StatusPending && status != domain.StatusFlagged {
		return nil, apperrors.InvalidInput(fmt.Sprintf("no moderation queue for status %q", status))
	}
	reviews, total, err := s.reviews.List(ctx, repository.ReviewFilter{Status: status, Page: params})
	if err != nil {
		return nil, fmt.Errorf("list %s reviews: %w", status, err)
	}
	res := pagination.NewResult(reviews, total, params)
	return &res, nil
}

// Moderate moves a review to status and closes its pending reports.
func (s *ModerationService) Moderate(ctx context.Context, reviewID, moderatorID string, status domain.ReviewStatus, notes string) (*domain.Review, error) {
	if !status.Valid() || status == domain.StatusPending {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid moderation status %q", status))
	}

	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	m := repository.Moderation{
		Status:      status,
		Notes:       sanitizeText(notes),
		ModeratorID: moderatorID,
		At:          s.now(),
	}
	if err := s.reviews.UpdateStatus(ctx, reviewID, m); err != nil {
		return nil, fmt.Errorf("update review status: %w", err)
	}
	previous := review.Status
	review.Status = m.Status
	review.ModerationNotes = m.Notes
	review.UpdatedAt = m.At

	resolution := domain.ReportReviewed
	if status == domain.StatusApproved {
		resolution = domain.ReportDismissed
	}
	if err := s.reports.Resolve(ctx, reviewID, resolution); err != nil {
		return nil, fmt.Errorf("resolve reports: %w", err)
	}

	if err := s.events.PublishReviewModerated(ctx, review, moderatorID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.moderated event",
			slog.String("review_id", reviewID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review moderated",
		slog.String("review_id", reviewID),
		slog.String("moderator_id", moderatorID),
		slog.String("from", string(previous)),
		slog.String("to", string(status)),
	)
	return review, nil
}

// Stats summarises the moderation queues.
func (s *ModerationService) Stats(ctx context.Context) (*domain.ModerationStats, error) {
	counts, err := s.reviews.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count reviews: %w", err)
	}
	pendingReports, err := s.reports.CountPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("count reports: %w", err)
	}
	return &domain.ModerationStats{
		Pending:        counts[domain.StatusPending],
		Flagged:        counts[domain.StatusFlagged],
		PendingReports: pendingReports,
	}, nil
}
