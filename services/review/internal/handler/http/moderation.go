package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/healthapp/reviews/pkg/httputil"
	"github.com/healthapp/reviews/pkg/middleware"
	"github.com/healthapp/reviews/pkg/pagination"
	"github.com/healthapp/reviews/pkg/validator"
	"github.com/healthapp/reviews/services/review/internal/domain"
)

// ModerationService is the moderation business logic the handlers call.
type ModerationService interface {
	Queue(ctx context.Context, status domain.ReviewStatus, params pagination.Params) (*pagination.Result[domain.Review], error)
	Moderate(ctx context.Context, reviewID, moderatorID string, status domain.ReviewStatus, notes string) (*domain.Review, error)
	Stats(ctx context.Context) (*domain.ModerationStats, error)
}

// ModerationHandler handles HTTP requests for moderator endpoints.
type ModerationHandler struct {
	service ModerationService
	logger  *slog.Logger
}

// NewModerationHandler creates a new moderation HTTP handler.
func NewModerationHandler(svc ModerationService, logger *slog.Logger) *ModerationHandler {
	return &ModerationHandler{
		service: svc,
		logger:  logger,
	}
}

// ModerateRequest is the JSON request body for a moderation decision.
type ModerateRequest struct {
	Status string `json:"status" validate:"required,oneof=APPROVED REJECTED FLAGGED HIDDEN"`
	Notes  string `json:"notes" validate:"max=1000"`
}

func (h *ModerationHandler) queue(status domain.ReviewStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := h.service.Queue(r.Context(), status, pagination.FromRequest(r))
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		httputil.WriteData(w, http.StatusOK, res)
	}
}

// Pending handles GET /api/v1/moderation/reviews/pending
func (h *ModerationHandler) Pending(w http.ResponseWriter, r *http.Request) {
	h.queue(domain.StatusPending)(w, r)
}

// Flagged handles GET /api/v1/moderation/reviews/flagged
func (h *ModerationHandler) Flagged(w http.ResponseWriter, r *http.Request) {
	h.queue(domain.StatusFlagged)(w, r)
}

// Moderate handles PUT /api/v1/moderation/reviews/{reviewId}
func (h *ModerationHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	reviewID, ok := httputil.ParseUUID(w, chi.URLParam(r, "reviewId"))
	if !ok {
		return
	}
	var req ModerateRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	review, err := h.service.Moderate(r.Context(), reviewID.String(), middleware.UserIDFromContext(r.Context()),
		domain.ReviewStatus(req.Status), req.Notes)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, review)
}

// Stats handles GET /api/v1/moderation/stats
func (h *ModerationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, stats)
}
