package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/healthapp/reviews/pkg/errors"
	"github.com/healthapp/reviews/pkg/pagination"
	"github.com/healthapp/reviews/services/review/internal/domain"
	"github.com/healthapp/reviews/services/review/internal/repository"
	"github.com/healthapp/reviews/services/review/internal/submission"
)

var fixedNow = time.Date(2026, 4, 10, 14, 0, 0, 0, time.UTC)

type reviewFixture struct {
	svc     *ReviewService
	reviews *mockReviewRepo
	votes   *mockVoteRepo
	reports *mockReportRepo
	ratings *mockRatingReader
	events  *mockPublisher
}

func newReviewFixture() *reviewFixture {
	f := &reviewFixture{
		reviews: new(mockReviewRepo),
		votes:   new(mockVoteRepo),
		reports: new(mockReportRepo),
		ratings: new(mockRatingReader),
		events:  new(mockPublisher),
	}
	moderator := AutoModerator{
		Enabled:   true,
		MinChars:  10,
		Profanity: regexp.MustCompile(`(?i)\b(badword1|badword2)\b`),
	}
	f.svc = NewReviewService(f.reviews, f.votes, f.reports, f.ratings, f.events, moderator, 5, newTestLogger())
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func validInput() SubmitInput {
	return SubmitInput{
		PatientID:         "pat-1",
		AuthorDisplayName: "Jane D.",
		Submission: submission.Submission{
			DoctorID:       "doc-1",
			ConsultationID: "con-1",
			Channel:        domain.ChannelVideo,
			OverallRating:  4,
			Body:           "  The doctor explained <b>everything</b> clearly.  ",
			PositiveTags:   domain.NewTagSet("Caring", "Caring"),
		},
	}
}

func storedReview(status domain.ReviewStatus) *domain.Review {
	return &domain.Review{
		ID:            "rev-1",
		DoctorID:      "doc-1",
		PatientID:     "pat-1",
		OverallRating: 5,
		Body:          "Clear and kind, would visit again.",
		Status:        status,
		CreatedAt:     fixedNow,
	}
}

// ============================================================
// Submit
// ============================================================

func TestSubmit_ApprovesCleanReview(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	f.reviews.On("ExistsForConsultation", ctx, "pat-1", "con-1").Return(false, nil)
	f.reviews.On("Create", ctx, mock.AnythingOfType("*domain.Review")).Return(nil)
	f.events.On("PublishReviewSubmitted", ctx, mock.AnythingOfType("*domain.Review")).Return(nil)

	review, err := f.svc.Submit(ctx, validInput())
	require.NoError(t, err)
	assert.NotEmpty(t, review.ID)
	assert.Equal(t, "The doctor explained everything clearly.", review.Body)
	assert.Equal(t, domain.StatusApproved, review.Status)
	assert.Equal(t, domain.TagSet{"Caring"}, review.PositiveTags)
	assert.True(t, review.IsVerifiedPatient)
	assert.Equal(t, fixedNow, review.CreatedAt)
	f.reviews.AssertExpectations(t)
	f.events.AssertExpectations(t)
}

func TestSubmit_ProfanityGoesToPending(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	in := validInput()
	in.Submission.Body = "This visit was BADWORD1 and far too long."

	f.reviews.On("ExistsForConsultation", ctx, "pat-1", "con-1").Return(false, nil)
	f.reviews.On("Create", ctx, mock.AnythingOfType("*domain.Review")).Return(nil)
	f.events.On("PublishReviewSubmitted", ctx, mock.Anything).Return(errors.New("broker down"))

	review, err := f.svc.Submit(ctx, in)
	require.NoError(t, err, "publish failures do not fail the submit")
	assert.Equal(t, domain.StatusPending, review.Status)
	assert.Equal(t, "profanity filter match", review.ModerationNotes)
}

func TestSubmit_ValidationRunsAfterSanitizing(t *testing.T) {
	f := newReviewFixture()

	in := validInput()
	in.Submission.Body = "<p><em><strong>short</strong></em></p>"

	_, err := f.svc.Submit(context.Background(), in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidationFailed))
	assert.Contains(t, err.Error(), "review text too short")
	f.reviews.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmit_Duplicate(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	f.reviews.On("ExistsForConsultation", ctx, "pat-1", "con-1").Return(true, nil)

	_, err := f.svc.Submit(ctx, validInput())
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyExists))
	f.reviews.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmit_MissingFields(t *testing.T) {
	f := newReviewFixture()

	in := validInput()
	in.PatientID = ""
	_, err := f.svc.Submit(context.Background(), in)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))

	in = validInput()
	in.Submission.ConsultationID = ""
	_, err = f.svc.Submit(context.Background(), in)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	in = validInput()
	in.Submission.Channel = "CARRIER_PIGEON"
	_, err = f.svc.Submit(context.Background(), in)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

// ============================================================
// Get / List
// ============================================================

func TestGet_HidesNonPublicFromOthers(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	f.reviews.On("GetByID", ctx, "rev-1").Return(storedReview(domain.StatusPending), nil)

	_, err := f.svc.Get(ctx, "rev-1", Viewer{})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	f.votes.On("UserVotes", ctx, "pat-1", []string{"rev-1"}).Return(map[string]domain.VoteType{}, nil)
	got, err := f.svc.Get(ctx, "rev-1", Viewer{UserID: "pat-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestGet_AnonymousRedaction(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	stored := storedReview(domain.StatusApproved)
	stored.IsAnonymous = true
	stored.AuthorDisplayName = "Jane D."
	stored.ModerationNotes = "checked"
	f.reviews.On("GetByID", ctx, "rev-1").Return(stored, nil)
	f.votes.On("UserVotes", ctx, "user-2", []string{"rev-1"}).
		Return(map[string]domain.VoteType{"rev-1": domain.VoteHelpful}, nil)

	got, err := f.svc.Get(ctx, "rev-1", Viewer{UserID: "user-2"})
	require.NoError(t, err)
	assert.Empty(t, got.PatientID)
	assert.Equal(t, domain.AnonymousDisplayName, got.DisplayName())
	assert.Empty(t, got.ModerationNotes)
	assert.Equal(t, domain.VoteHelpful, got.CurrentUserVote)
}

func TestListDoctorReviews(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	params := pagination.New(1, 2)
	filter := repository.ReviewFilter{
		DoctorID: "doc-1",
		Status:   domain.StatusApproved,
		Rating:   domain.FilterCriterion(5),
		Sort:     domain.SortHelpful,
		Page:     params,
	}
	r1, r2 := *storedReview(domain.StatusApproved), *storedReview(domain.StatusApproved)
	r2.ID = "rev-2"
	f.reviews.On("List", ctx, filter).Return([]domain.Review{r1, r2}, 3, nil)

	rating := domain.EmptyRating("doc-1")
	rating.Distribution = domain.RatingDistribution{Counts: [5]int{0, 0, 0, 0, 3}, Total: 3, Mean: 5}
	f.ratings.On("Get", ctx, "doc-1").Return(rating, nil)
	f.votes.On("UserVotes", ctx, "user-9", []string{"rev-1", "rev-2"}).
		Return(map[string]domain.VoteType{"rev-2": domain.VoteNotHelpful}, nil)

	page, err := f.svc.ListDoctorReviews(ctx, "doc-1", ListQuery{
		Sort:   domain.SortHelpful,
		Rating: domain.FilterCriterion(5),
		Page:   params,
	}, Viewer{UserID: "user-9"})
	require.NoError(t, err)
	assert.Len(t, page.Reviews, 2)
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 2, page.TotalPages)
	assert.True(t, page.HasNext())
	assert.Equal(t, 3, page.Summary.Total)
	assert.Empty(t, page.Reviews[0].CurrentUserVote)
	assert.Equal(t, domain.VoteNotHelpful, page.Reviews[1].CurrentUserVote)
}

func TestListDoctorReviews_AnonymousReaderSkipsVotes(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	f.reviews.On("List", ctx, mock.AnythingOfType("repository.ReviewFilter")).Return([]domain.Review{}, 0, nil)
	f.ratings.On("Get", ctx, "doc-1").Return(domain.EmptyRating("doc-1"), nil)

	page, err := f.svc.ListDoctorReviews(ctx, "doc-1", ListQuery{}, Viewer{})
	require.NoError(t, err)
	assert.Empty(t, page.Reviews)
	assert.Equal(t, pagination.DefaultPerPage, page.PerPage)
	f.votes.AssertNotCalled(t, "UserVotes", mock.Anything, mock.Anything, mock.Anything)
}

func TestListMine(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	params := pagination.DefaultParams()
	f.reviews.On("List", ctx, repository.ReviewFilter{PatientID: "pat-1", Page: params}).
		Return([]domain.Review{*storedReview(domain.StatusPending)}, 1, nil)

	res, err := f.svc.ListMine(ctx, "pat-1", params)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalCount)
	assert.Equal(t, "pat-1", res.Data[0].PatientID)
}

// ============================================================
// Vote
// ============================================================

func TestVote_Success(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	result := &domain.VoteResult{ReviewID: "rev-1", Action: domain.VoteAdded, Vote: domain.VoteHelpful, HelpfulCount: 11, NotHelpfulCount: 2}
	f.reviews.On("GetByID", ctx, "rev-1").Return(storedReview(domain.StatusApproved), nil)
	f.votes.On("Cast", ctx, "rev-1", "user-2", domain.VoteHelpful).Return(result, nil)
	f.events.On("PublishReviewVoted", ctx, "user-2", result).Return(nil)

	got, err := f.svc.Vote(ctx, "rev-1", "user-2", domain.VoteHelpful)
	require.NoError(t, err)
	assert.Equal(t, 11, got.HelpfulCount)
	f.events.AssertExpectations(t)
}

func TestVote_Rejections(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	_, err := f.svc.Vote(ctx, "rev-1", "user-2", "MAYBE")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	f.reviews.On("GetByID", ctx, "rev-1").Return(storedReview(domain.StatusHidden), nil)
	_, err = f.svc.Vote(ctx, "rev-1", "user-2", domain.VoteHelpful)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	f.votes.AssertNotCalled(t, "Cast", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// ============================================================
// Report
// ============================================================

func TestReport_Success(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	f.reports.On("Create", ctx, mock.AnythingOfType("*domain.Report"), 5).Return(false, nil)
	f.events.On("PublishReviewReported", ctx, mock.AnythingOfType("*domain.Report"), false).Return(nil)

	report, err := f.svc.Report(ctx, "rev-1", "user-3", domain.ReasonFake, "  not a <i>real</i> patient ")
	require.NoError(t, err)
	assert.Equal(t, "not a real patient", report.Description)
	assert.Equal(t, domain.ReportPending, report.Status)
	assert.Equal(t, fixedNow, report.CreatedAt)
	f.reviews.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestReport_FlaggingAnnouncesModeration(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	flagged := storedReview(domain.StatusFlagged)
	f.reports.On("Create", ctx, mock.Anything, 5).Return(true, nil)
	f.events.On("PublishReviewReported", ctx, mock.Anything, true).Return(nil)
	f.reviews.On("GetByID", ctx, "rev-1").Return(flagged, nil)
	f.events.On("PublishReviewModerated", ctx, flagged, SystemModeratorID).Return(nil)

	_, err := f.svc.Report(ctx, "rev-1", "user-3", domain.ReasonSpam, "")
	require.NoError(t, err)
	f.events.AssertExpectations(t)
}

func TestReport_Rejections(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	_, err := f.svc.Report(ctx, "rev-1", "user-3", "BORING", "")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	_, err = f.svc.Report(ctx, "rev-1", "user-3", domain.ReasonOther, strings.Repeat("x", domain.MaxReportDescription+1))
	assert.True(t, errors.Is(err, apperrors.ErrValidationFailed))

	f.reports.On("Create", ctx, mock.Anything, 5).Return(false, apperrors.AlreadyExists("report", "review_id", "rev-1"))
	_, err = f.svc.Report(ctx, "rev-1", "user-3", domain.ReasonSpam, "")
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyExists))
}

// ============================================================
// Respond
// ============================================================

func TestRespond_Success(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	f.reviews.On("GetByID", ctx, "rev-1").Return(storedReview(domain.StatusApproved), nil)
	f.reviews.On("SetResponse", ctx, "rev-1", domain.DoctorResponse{Text: "Thank you!", RespondedAt: fixedNow}).Return(nil)
	f.events.On("PublishReviewResponded", ctx, mock.AnythingOfType("*domain.Review")).Return(nil)

	got, err := f.svc.Respond(ctx, "rev-1", "doc-1", "<p>Thank you!</p>")
	require.NoError(t, err)
	require.NotNil(t, got.DoctorResponse)
	assert.Equal(t, "Thank you!", got.DoctorResponse.Text)
	assert.Equal(t, fixedNow, got.UpdatedAt)
	f.events.AssertExpectations(t)
}

func TestRespond_Rejections(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	_, err := f.svc.Respond(ctx, "rev-1", "doc-1", " <br/> ")
	assert.True(t, errors.Is(err, apperrors.ErrValidationFailed))

	_, err = f.svc.Respond(ctx, "rev-1", "doc-1", strings.Repeat("a", MaxResponseLength+1))
	assert.True(t, errors.Is(err, apperrors.ErrValidationFailed))

	answered := storedReview(domain.StatusApproved)
	answered.DoctorResponse = &domain.DoctorResponse{Text: "earlier", RespondedAt: fixedNow}
	f.reviews.On("GetByID", ctx, "rev-1").Return(answered, nil)

	_, err = f.svc.Respond(ctx, "rev-1", "doc-2", "Not my patient")
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	_, err = f.svc.Respond(ctx, "rev-1", "doc-1", "Second reply")
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	f.reviews.AssertNotCalled(t, "SetResponse", mock.Anything, mock.Anything, mock.Anything)
}

// ============================================================
// AutoModerator
// ============================================================

func TestAutoModerator_Decide(t *testing.T) {
	m := AutoModerator{Enabled: true, MinChars: 10, Profanity: regexp.MustCompile(`(?i)\b(badword1|badword2)\b`)}

	status, _ := m.Decide("A thorough and kind doctor.")
	assert.Equal(t, domain.StatusApproved, status)

	status, notes := m.Decide("ok")
	assert.Equal(t, domain.StatusPending, status)
	assert.Equal(t, "text below auto-approve length", notes)

	status, _ = m.Decide("the badword2 visit was bad")
	assert.Equal(t, domain.StatusPending, status)

	status, _ = m.Decide("notbadword1 is a substring only")
	assert.Equal(t, domain.StatusApproved, status)

	m.Enabled = false
	status, _ = m.Decide("A thorough and kind doctor.")
	assert.Equal(t, domain.StatusPending, status)
}
