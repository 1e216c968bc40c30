package repository

import (
	"context"
	"time"

	"github.com/healthapp/reviews/pkg/pagination"
	"github.com/healthapp/reviews/services/review/internal/domain"
)

// ReviewFilter defines filter criteria for listing reviews. Empty fields do
// not filter.
type ReviewFilter struct {
	DoctorID  string
	PatientID string
	Status    domain.ReviewStatus
	Rating    domain.FilterCriterion
	Channel   domain.ConsultationChannel
	Sort      domain.SortCriterion
	Page      pagination.Params
}

// Moderation is a status change made by a moderator.
type Moderation struct {
	Status      domain.ReviewStatus
	Notes       string
	ModeratorID string
	At          time.Time
}

// ReviewRepository defines persistence operations for reviews.
type ReviewRepository interface {
	// Create inserts a new review. A second review for the same patient and
	// consultation fails with ErrAlreadyExists.
	Create(ctx context.Context, review *domain.Review) error

	// GetByID retrieves a review by its identifier.
	GetByID(ctx context.Context, id string) (*domain.Review, error)

	// ExistsForConsultation reports whether the patient already reviewed
	// the consultation.
	ExistsForConsultation(ctx context.Context, patientID, consultationID string) (bool, error)

	// List returns one page of reviews matching filter and the total count.
	List(ctx context.Context, filter ReviewFilter) ([]domain.Review, int, error)

	// ListForRating returns every approved review of a doctor with only the
	// fields the rating aggregate needs.
	ListForRating(ctx context.Context, doctorID string) ([]domain.Review, error)

	// SetResponse stores the doctor's reply. It fails with ErrConflict if
	// the review already has one.
	SetResponse(ctx context.Context, id string, resp domain.DoctorResponse) error

	// UpdateStatus applies a moderation decision.
	UpdateStatus(ctx context.Context, id string, m Moderation) error

	// CountByStatus returns the number of reviews per status.
	CountByStatus(ctx context.Context) (map[domain.ReviewStatus]int, error)
}

// VoteRepository records helpful/not-helpful votes.
type VoteRepository interface {
	// Cast toggles userID's vote on a review: a new vote is added, the same
	// vote again is removed, a different vote replaces the old one. The
	// review's counters are recomputed in the same transaction.
	Cast(ctx context.Context, reviewID, userID string, vote domain.VoteType) (*domain.VoteResult, error)

	// UserVotes returns userID's votes on the given reviews.
	UserVotes(ctx context.Context, userID string, reviewIDs []string) (map[string]domain.VoteType, error)
}

// ReportRepository records reports against reviews.
type ReportRepository interface {
	// Create stores a report and bumps the review's report count. When the
	// count reaches flagThreshold an approved review becomes FLAGGED. A
	// second report by the same user fails with ErrAlreadyExists.
	Create(ctx context.Context, report *domain.Report, flagThreshold int) (flagged bool, err error)

	// CountPending returns the number of unhandled reports.
	CountPending(ctx context.Context) (int, error)

	// Resolve marks every pending report on a review as handled.
	Resolve(ctx context.Context, reviewID string, status domain.ReportStatus) error
}

// RatingRepository persists the per-doctor rating aggregate.
type RatingRepository interface {
	// Get returns the stored aggregate or ErrNotFound.
	Get(ctx context.Context, doctorID string) (*domain.DoctorRating, error)

	// Upsert replaces the stored aggregate.
	Upsert(ctx context.Context, rating *domain.DoctorRating) error
}

// RatingCache caches rating aggregates in front of RatingRepository.
type RatingCache interface {
	// Get returns a cached aggregate or ErrNotFound on a miss.
	Get(ctx context.Context, doctorID string) (*domain.DoctorRating, error)
	Set(ctx context.Context, rating *domain.DoctorRating) error
	Invalidate(ctx context.Context, doctorID string) error
}
