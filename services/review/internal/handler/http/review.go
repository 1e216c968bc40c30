package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/healthapp/reviews/pkg/errors"
	"github.com/healthapp/reviews/pkg/httputil"
	"github.com/healthapp/reviews/pkg/middleware"
	"github.com/healthapp/reviews/pkg/pagination"
	"github.com/healthapp/reviews/pkg/validator"
	"github.com/healthapp/reviews/services/review/internal/auth"
	"github.com/healthapp/reviews/services/review/internal/domain"
	"github.com/healthapp/reviews/services/review/internal/listing"
	"github.com/healthapp/reviews/services/review/internal/service"
	"github.com/healthapp/reviews/services/review/internal/submission"
)

// ReviewService is the review business logic the handlers call.
type ReviewService interface {
	Submit(ctx context.Context, in service.SubmitInput) (*domain.Review, error)
	Get(ctx context.Context, id string, viewer service.Viewer) (*domain.Review, error)
	ListDoctorReviews(ctx context.Context, doctorID string, q service.ListQuery, viewer service.Viewer) (*listing.Page, error)
	ListMine(ctx context.Context, patientID string, params pagination.Params) (*pagination.Result[domain.Review], error)
	Vote(ctx context.Context, reviewID, userID string, vote domain.VoteType) (*domain.VoteResult, error)
	Report(ctx context.Context, reviewID, reporterID string, reason domain.ReportReason, description string) (*domain.Report, error)
	Respond(ctx context.Context, reviewID, doctorID, text string) (*domain.Review, error)
}

// RatingReader serves doctor rating aggregates.
type RatingReader interface {
	Get(ctx context.Context, doctorID string) (*domain.DoctorRating, error)
}

// ReviewHandler handles HTTP requests for review endpoints.
type ReviewHandler struct {
	reviews ReviewService
	ratings RatingReader
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(reviews ReviewService, ratings RatingReader, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		reviews: reviews,
		ratings: ratings,
		logger:  logger,
	}
}

// --- Request DTOs ---

// SubmitReviewRequest is the JSON request body for submitting a review.
// Rating, text and tag rules are checked by the submission validator so the
// messages match what the client form reports.
type SubmitReviewRequest struct {
	DoctorID          string            `json:"doctor_id" validate:"required,uuid"`
	ConsultationID    string            `json:"consultation_id" validate:"required,uuid"`
	Channel           string            `json:"consultation_channel" validate:"omitempty,oneof=VIDEO IN_PERSON AUDIO"`
	OverallRating     int               `json:"overall_rating"`
	SubRatings        domain.SubRatings `json:"sub_ratings"`
	Title             string            `json:"title"`
	Body              string            `json:"review_text"`
	IsAnonymous       bool              `json:"is_anonymous"`
	PositiveTags      domain.TagSet     `json:"positive_tags"`
	ImprovementTags   domain.TagSet     `json:"improvement_tags"`
	AuthorDisplayName string            `json:"author_display_name" validate:"max=100"`
}

// VoteRequest is the JSON request body for voting on a review.
type VoteRequest struct {
	VoteType string `json:"vote_type" validate:"required"`
}

// ReportRequest is the JSON request body for reporting a review.
type ReportRequest struct {
	Reason      string `json:"reason" validate:"required"`
	Description string `json:"description" validate:"max=500"`
}

// RespondRequest is the JSON request body for a doctor's reply.
type RespondRequest struct {
	Response string `json:"response" validate:"required,max=1000"`
}

func viewerFrom(r *http.Request) service.Viewer {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		return service.Viewer{}
	}
	return service.Viewer{
		UserID:    claims.UserID,
		Moderator: claims.Role == auth.RoleModerator || claims.Role == auth.RoleAdmin,
	}
}

// --- Handlers ---

// ListDoctorReviews handles GET /api/v1/doctors/{doctorId}/reviews
func (h *ReviewHandler) ListDoctorReviews(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := httputil.ParseUUID(w, chi.URLParam(r, "doctorId"))
	if !ok {
		return
	}

	q := r.URL.Query()
	sort, err := domain.ParseSort(q.Get("sort"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	rating, err := domain.ParseFilter(q.Get("rating"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	channel, err := domain.ParseChannel(q.Get("channel"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	page, err := h.reviews.ListDoctorReviews(r.Context(), doctorID.String(), service.ListQuery{
		Sort:    sort,
		Rating:  rating,
		Channel: channel,
		Page:    pagination.FromValues(q),
	}, viewerFrom(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: page.Reviews,
		Meta: map[string]any{
			"summary":     page.Summary,
			"total_count": page.TotalCount,
			"page":        page.Page,
			"per_page":    page.PerPage,
			"total_pages": page.TotalPages,
		},
	})
}

// DoctorRating handles GET /api/v1/doctors/{doctorId}/reviews/rating
func (h *ReviewHandler) DoctorRating(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := httputil.ParseUUID(w, chi.URLParam(r, "doctorId"))
	if !ok {
		return
	}
	rating, err := h.ratings.Get(r.Context(), doctorID.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, rating)
}

// Respond handles POST /api/v1/doctors/{doctorId}/reviews/{reviewId}/respond
func (h *ReviewHandler) Respond(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := httputil.ParseUUID(w, chi.URLParam(r, "doctorId"))
	if !ok {
		return
	}
	reviewID, ok := httputil.ParseUUID(w, chi.URLParam(r, "reviewId"))
	if !ok {
		return
	}
	if middleware.UserIDFromContext(r.Context()) != doctorID.String() {
		httputil.WriteError(w, r, apperrors.Forbidden("doctors can only respond to their own reviews"), h.logger)
		return
	}

	var req RespondRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	review, err := h.reviews.Respond(r.Context(), reviewID.String(), doctorID.String(), req.Response)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, review)
}

// Submit handles POST /api/v1/reviews
func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitReviewRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	review, err := h.reviews.Submit(r.Context(), service.SubmitInput{
		PatientID:         middleware.UserIDFromContext(r.Context()),
		AuthorDisplayName: req.AuthorDisplayName,
		Submission: submission.Submission{
			DoctorID:        req.DoctorID,
			ConsultationID:  req.ConsultationID,
			Channel:         domain.ConsultationChannel(req.Channel),
			OverallRating:   req.OverallRating,
			SubRatings:      req.SubRatings,
			Title:           req.Title,
			Body:            req.Body,
			IsAnonymous:     req.IsAnonymous,
			PositiveTags:    req.PositiveTags,
			ImprovementTags: req.ImprovementTags,
		},
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, review)
}

// Get handles GET /api/v1/reviews/{reviewId}
func (h *ReviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	reviewID, ok := httputil.ParseUUID(w, chi.URLParam(r, "reviewId"))
	if !ok {
		return
	}
	review, err := h.reviews.Get(r.Context(), reviewID.String(), viewerFrom(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, review)
}

// ListMine handles GET /api/v1/reviews/mine
func (h *ReviewHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	res, err := h.reviews.ListMine(r.Context(), middleware.UserIDFromContext(r.Context()), pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, res)
}

// Vote handles POST /api/v1/reviews/{reviewId}/vote
func (h *ReviewHandler) Vote(w http.ResponseWriter, r *http.Request) {
	reviewID, ok := httputil.ParseUUID(w, chi.URLParam(r, "reviewId"))
	if !ok {
		return
	}
	var req VoteRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	vote, err := domain.ParseVoteType(req.VoteType)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	result, err := h.reviews.Vote(r.Context(), reviewID.String(), middleware.UserIDFromContext(r.Context()), vote)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, result)
}

// Report handles POST /api/v1/reviews/{reviewId}/report
func (h *ReviewHandler) Report(w http.ResponseWriter, r *http.Request) {
	reviewID, ok := httputil.ParseUUID(w, chi.URLParam(r, "reviewId"))
	if !ok {
		return
	}
	var req ReportRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	reason, err := domain.ParseReportReason(req.Reason)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	report, err := h.reviews.Report(r.Context(), reviewID.String(), middleware.UserIDFromContext(r.Context()), reason, req.Description)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusAccepted, domain.ReportAck{
		ReviewID:    report.ReviewID,
		SubmittedAt: report.CreatedAt,
	})
}
