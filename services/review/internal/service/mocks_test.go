package service

import (
	"context"
	"log/slog"
	"os"

	"github.com/stretchr/testify/mock"

	"github.com/healthapp/reviews/services/review/internal/domain"
	"github.com/healthapp/reviews/services/review/internal/repository"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- review repository ---

type mockReviewRepo struct {
	mock.Mock
}

func (m *mockReviewRepo) Create(ctx context.Context, review *domain.Review) error {
	return m.Called(ctx, review).Error(0)
}

func (m *mockReviewRepo) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*domain.Review), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReviewRepo) ExistsForConsultation(ctx context.Context, patientID, consultationID string) (bool, error) {
	args := m.Called(ctx, patientID, consultationID)
	return args.Bool(0), args.Error(1)
}

func (m *mockReviewRepo) List(ctx context.Context, filter repository.ReviewFilter) ([]domain.Review, int, error) {
	args := m.Called(ctx, filter)
	var reviews []domain.Review
	if r := args.Get(0); r != nil {
		reviews = r.([]domain.Review)
	}
	return reviews, args.Int(1), args.Error(2)
}

func (m *mockReviewRepo) ListForRating(ctx context.Context, doctorID string) ([]domain.Review, error) {
	args := m.Called(ctx, doctorID)
	var reviews []domain.Review
	if r := args.Get(0); r != nil {
		reviews = r.([]domain.Review)
	}
	return reviews, args.Error(1)
}

func (m *mockReviewRepo) SetResponse(ctx context.Context, id string, resp domain.DoctorResponse) error {
	return m.Called(ctx, id, resp).Error(0)
}

func (m *mockReviewRepo) UpdateStatus(ctx context.Context, id string, mod repository.Moderation) error {
	return m.Called(ctx, id, mod).Error(0)
}

func (m *mockReviewRepo) CountByStatus(ctx context.Context) (map[domain.ReviewStatus]int, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.(map[domain.ReviewStatus]int), args.Error(1)
	}
	return nil, args.Error(1)
}

// --- vote repository ---

type mockVoteRepo struct {
	mock.Mock
}

func (m *mockVoteRepo) Cast(ctx context.Context, reviewID, userID string, vote domain.VoteType) (*domain.VoteResult, error) {
	args := m.Called(ctx, reviewID, userID, vote)
	if r := args.Get(0); r != nil {
		return r.(*domain.VoteResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockVoteRepo) UserVotes(ctx context.Context, userID string, reviewIDs []string) (map[string]domain.VoteType, error) {
	args := m.Called(ctx, userID, reviewIDs)
	if r := args.Get(0); r != nil {
		return r.(map[string]domain.VoteType), args.Error(1)
	}
	return nil, args.Error(1)
}

// --- report repository ---

type mockReportRepo struct {
	mock.Mock
}

func (m *mockReportRepo) Create(ctx context.Context, report *domain.Report, flagThreshold int) (bool, error) {
	args := m.Called(ctx, report, flagThreshold)
	return args.Bool(0), args.Error(1)
}

func (m *mockReportRepo) CountPending(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockReportRepo) Resolve(ctx context.Context, reviewID string, status domain.ReportStatus) error {
	return m.Called(ctx, reviewID, status).Error(0)
}

// --- rating store and cache ---

type mockRatingStore struct {
	mock.Mock
}

func (m *mockRatingStore) Get(ctx context.Context, doctorID string) (*domain.DoctorRating, error) {
	args := m.Called(ctx, doctorID)
	if r := args.Get(0); r != nil {
		return r.(*domain.DoctorRating), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRatingStore) Upsert(ctx context.Context, rating *domain.DoctorRating) error {
	return m.Called(ctx, rating).Error(0)
}

type mockRatingCache struct {
	mock.Mock
}

func (m *mockRatingCache) Get(ctx context.Context, doctorID string) (*domain.DoctorRating, error) {
	args := m.Called(ctx, doctorID)
	if r := args.Get(0); r != nil {
		return r.(*domain.DoctorRating), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRatingCache) Set(ctx context.Context, rating *domain.DoctorRating) error {
	return m.Called(ctx, rating).Error(0)
}

func (m *mockRatingCache) Invalidate(ctx context.Context, doctorID string) error {
	return m.Called(ctx, doctorID).Error(0)
}

// --- rating reader ---

type mockRatingReader struct {
	mock.Mock
}

func (m *mockRatingReader) Get(ctx context.Context, doctorID string) (*domain.DoctorRating, error) {
	args := m.Called(ctx, doctorID)
	if r := args.Get(0); r != nil {
		return r.(*domain.DoctorRating), args.Error(1)
	}
	return nil, args.Error(1)
}

// --- event publisher ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishReviewSubmitted(ctx context.Context, review *domain.Review) error {
	return m.Called(ctx, review).Error(0)
}

func (m *mockPublisher) PublishReviewVoted(ctx context.Context, userID string, result *domain.VoteResult) error {
	return m.Called(ctx, userID, result).Error(0)
}

func (m *mockPublisher) PublishReviewReported(ctx context.Context, report *domain.Report, flagged bool) error {
	return m.Called(ctx, report, flagged).Error(0)
}

func (m *mockPublisher) PublishReviewResponded(ctx context.Context, review *domain.Review) error {
	return m.Called(ctx, review).Error(0)
}

func (m *mockPublisher) PublishReviewModerated(ctx context.Context, review *domain.Review, moderatorID string) error {
	return m.Called(ctx, review, moderatorID).Error(0)
}

func (m *mockPublisher) PublishRatingUpdated(ctx context.Context, rating *domain.DoctorRating) error {
	return m.Called(ctx, rating).Error(0)
}
