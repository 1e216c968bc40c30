package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	apperrors "github.com/healthapp/reviews/pkg/errors"
	"github.com/healthapp/reviews/pkg/pagination"
	"github.com/healthapp/reviews/services/review/internal/domain"
	"github.com/healthapp/reviews/services/review/internal/listing"
	"github.com/healthapp/reviews/services/review/internal/repository"
	"github.com/healthapp/reviews/services/review/internal/submission"
)

// SubmitInput is a validated caller plus the review they are submitting.
type SubmitInput struct {
	PatientID         string
	AuthorDisplayName string
	Submission        submission.Submission
}

// ListQuery selects a page of a doctor's public reviews.
type ListQuery struct {
	Sort    domain.SortCriterion
	Rating  domain.FilterCriterion
	Channel domain.ConsultationChannel
	Page    pagination.Params
}

// Viewer identifies who is reading. The zero value is an anonymous reader.
type Viewer struct {
	UserID    string
	Moderator bool
}

// RatingReader returns a doctor's rating aggregate.
type RatingReader interface {
	Get(ctx context.Context, doctorID string) (*domain.DoctorRating, error)
}

// ReviewService implements the business logic for review operations.
type ReviewService struct {
	reviews       repository.ReviewRepository
	votes         repository.VoteRepository
	reports       repository.ReportRepository
	ratings       RatingReader
	events        EventPublisher
	moderator     AutoModerator
	flagThreshold int
	logger        *slog.Logger
	now           func() time.Time
}

// NewReviewService creates a new review service.
func NewReviewService(
	reviews repository.ReviewRepository,
	votes repository.VoteRepository,
	reports repository.ReportRepository,
	ratings RatingReader,
	events EventPublisher,
	moderator AutoModerator,
	flagThreshold int,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		reviews:       reviews,
		votes:         votes,
		reports:       reports,
		ratings:       ratings,
		events:        events,
		moderator:     moderator,
		flagThreshold: flagThreshold,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Submit sanitizes and validates a new review, rejects a second review for
// the same consultation, and stores it with an auto-moderated status.
func (s *ReviewService) Submit(ctx context.Context, in SubmitInput) (*domain.Review, error) {
	if in.PatientID == "" {
		return nil, apperrors.Unauthorized("patient identity required")
	}
	sub := in.Submission
	if sub.DoctorID == "" {
		return nil, apperrors.InvalidInput("doctor_id is required")
	}
	if sub.ConsultationID == "" {
		return nil, apperrors.InvalidInput("consultation_id is required")
	}
	if sub.Channel != "" && !sub.Channel.Valid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown consultation channel %q", sub.Channel))
	}

	sub.Title = sanitizeText(sub.Title)
	sub.Body = sanitizeText(sub.Body)
	sub, err := submission.Validate(sub)
	if err != nil {
		return nil, err
	}

	exists, err := s.reviews.ExistsForConsultation(ctx, in.PatientID, sub.ConsultationID)
	if err != nil {
		return nil, fmt.Errorf("check existing review: %w", err)
	}
	if exists {
		return nil, apperrors.AlreadyExists("review", "consultation_id", sub.ConsultationID)
	}

	status, notes := s.moderator.Decide(sub.Body)
	now := s.now()
	review := &domain.Review{
		ID:                uuid.New().String(),
		DoctorID:          sub.DoctorID,
		PatientID:         in.PatientID,
		ConsultationID:    sub.ConsultationID,
		AuthorDisplayName: sanitizeText(in.AuthorDisplayName),
		IsAnonymous:       sub.IsAnonymous,
		OverallRating:     sub.OverallRating,
		SubRatings:        sub.SubRatings,
		Title:             sub.Title,
		Body:              sub.Body,
		Channel:           sub.Channel,
		IsVerifiedPatient: true,
		PositiveTags:      sub.PositiveTags,
		ImprovementTags:   sub.ImprovementTags,
		Status:            status,
		ModerationNotes:   notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.reviews.Create(ctx, review); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create review: %w", err)
	}

	if err := s.events.PublishReviewSubmitted(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.submitted event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review submitted",
		slog.String("review_id", review.ID),
		slog.String("doctor_id", review.DoctorID),
		slog.String("status", string(review.Status)),
		slog.Int("rating", review.OverallRating),
	)

	return review, nil
}

// Get returns a review as the viewer may see it. Reviews that are not public
// are visible only to their author and to moderators.
func (s *ReviewService) Get(ctx context.Context, id string, viewer Viewer) (*domain.Review, error) {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !review.Status.Public() && !viewer.Moderator && viewer.UserID != review.PatientID {
		return nil, apperrors.NotFound("review", id)
	}
	if viewer.UserID != "" {
		votes, err := s.votes.UserVotes(ctx, viewer.UserID, []string{id})
		if err != nil {
			return nil, fmt.Errorf("get user vote: %w", err)
		}
		review.CurrentUserVote = votes[id]
	}
	out := review.Redact(viewer.UserID, viewer.Moderator)
	return &out, nil
}

// ListDoctorReviews returns one page of a doctor's approved reviews with the
// doctor's rating distribution and the viewer's votes.
func (s *ReviewService) ListDoctorReviews(ctx context.Context, doctorID string, q ListQuery, viewer Viewer) (*listing.Page, error) {
	if doctorID == "" {
		return nil, apperrors.InvalidInput("doctor_id is required")
	}
	if q.Page.PerPage == 0 {
		q.Page = pagination.DefaultParams()
	}

	reviews, total, err := s.reviews.List(ctx, repository.ReviewFilter{
		DoctorID: doctorID,
		Status:   domain.StatusApproved,
		Rating:   q.Rating,
		Channel:  q.Channel,
		Sort:     q.Sort,
		Page:     q.Page,
	})
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	rating, err := s.ratings.Get(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("get rating summary: %w", err)
	}

	if err := s.attachVotes(ctx, viewer, reviews); err != nil {
		return nil, err
	}
	for i := range reviews {
		reviews[i] = reviews[i].Redact(viewer.UserID, viewer.Moderator)
	}

	page := listing.NewPage(pagination.NewResult(reviews, total, q.Page), rating.Distribution)
	return &page, nil
}

// ListMine returns the patient's own reviews in every status.
func (s *ReviewService) ListMine(ctx context.Context, patientID string, params pagination.Params) (*pagination.Result[domain.Review], error) {
	if patientID == "" {
		return nil, apperrors.Unauthorized("patient identity required")
	}
	reviews, total, err := s.reviews.List(ctx, repository.ReviewFilter{PatientID: patientID, Page: params})
	if err != nil {
		return nil, fmt.Errorf("list own reviews: %w", err)
	}
	for i := range reviews {
		reviews[i] = reviews[i].Redact(patientID, false)
	}
	res := pagination.NewResult(reviews, total, params)
	return &res, nil
}

func (s *ReviewService) attachVotes(ctx context.Context, viewer Viewer, reviews []domain.Review) error {
	if viewer.UserID == "" || len(reviews) == 0 {
		return nil
	}
	ids := make([]string, len(reviews))
	for i, r := range reviews {
		ids[i] = r.ID
	}
	votes, err := s.votes.UserVotes(ctx, viewer.UserID, ids)
	if err != nil {
		return fmt.Errorf("get user votes: %w", err)
	}
	for i := range reviews {
		reviews[i].CurrentUserVote = votes[reviews[i].ID]
	}
	return nil
}

// Vote toggles the user's helpful vote on a public review.
func (s *ReviewService) Vote(ctx context.Context, reviewID, userID string, vote domain.VoteType) (*domain.VoteResult, error) {
	if !vote.Valid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown vote type %q", vote))
	}
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if !review.Status.Public() {
		return nil, apperrors.NotFound("review", reviewID)
	}

	result, err := s.votes.Cast(ctx, reviewID, userID, vote)
	if err != nil {
		return nil, fmt.Errorf("cast vote: %w", err)
	}

	if err := s.events.PublishReviewVoted(ctx, userID, result); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.voted event",
			slog.String("review_id", reviewID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review vote recorded",
		slog.String("review_id", reviewID),
		slog.String("action", string(result.Action)),
	)
	return result, nil
}

// Report records a user's report. The review is flagged for moderation once
// it collects the configured number of reports.
func (s *ReviewService) Report(ctx context.Context, reviewID, reporterID string, reason domain.ReportReason, description string) (*domain.Report, error) {
	if !reason.Valid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown report reason %q", reason))
	}
	description = sanitizeText(description)
	if utf8.RuneCountInString(description) > domain.MaxReportDescription {
		return nil, apperrors.ValidationFailed("description too long")
	}

	report := &domain.Report{
		ID:          uuid.New().String(),
		ReviewID:    reviewID,
		ReporterID:  reporterID,
		Reason:      reason,
		Description: description,
		Status:      domain.ReportPending,
		CreatedAt:   s.now(),
	}

	flagged, err := s.reports.Create(ctx, report, s.flagThreshold)
	if err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) || errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("create report: %w", err)
	}

	if err := s.events.PublishReviewReported(ctx, report, flagged); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.reported event",
			slog.String("review_id", reviewID),
			slog.String("error", err.Error()),
		)
	}

	if flagged {
		s.logger.WarnContext(ctx, "review flagged after reports",
			slog.String("review_id", reviewID),
			slog.Int("threshold", s.flagThreshold),
		)
		if review, err := s.reviews.GetByID(ctx, reviewID); err == nil {
			if err := s.events.PublishReviewModerated(ctx, review, SystemModeratorID); err != nil {
				s.logger.ErrorContext(ctx, "failed to publish review.moderated event",
					slog.String("review_id", reviewID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	return report, nil
}

// Respond stores the doctor's public reply. Only the reviewed doctor may
// respond, and only once.
func (s *ReviewService) Respond(ctx context.Context, reviewID, doctorID, text string) (*domain.Review, error) {
	text = sanitizeText(text)
	if text == "" {
		return nil, apperrors.ValidationFailed("response text required")
	}
	if utf8.RuneCountInString(text) > MaxResponseLength {
		return nil, apperrors.ValidationFailed("response text too long")
	}

	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review.DoctorID != doctorID {
		return nil, apperrors.Forbidden("only the reviewed doctor can respond")
	}
	if review.DoctorResponse != nil {
		return nil, apperrors.Conflict("review already has a doctor response")
	}

	resp := domain.DoctorResponse{Text: text, RespondedAt: s.now()}
	if err := s.reviews.SetResponse(ctx, reviewID, resp); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("set response: %w", err)
	}
	review.DoctorResponse = &resp
	review.UpdatedAt = resp.RespondedAt

	if err := s.events.PublishReviewResponded(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.responded event",
			slog.String("review_id", reviewID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "doctor responded to review",
		slog.String("review_id", reviewID),
		slog.String("doctor_id", doctorID),
	)

	out := review.Redact(doctorID, false)
	return &out, nil
}
