package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/healthapp/reviews/pkg/database"
	apperrors "github.com/healthapp/reviews/pkg/errors"
	"github.com/healthapp/reviews/pkg/pagination"
	"github.com/healthapp/reviews/services/review/internal/domain"
	"github.com/healthapp/reviews/services/review/internal/repository"
)

const reviewColumns = `id, doctor_id, patient_id, consultation_id, author_display_name, is_anonymous,
	overall_rating, wait_time_rating, bedside_manner_rating, explanation_rating,
	title, review_text, consultation_channel, is_verified, positive_tags, improvement_tags,
	doctor_response, doctor_responded_at, helpful_count, not_helpful_count, report_count,
	status, moderation_notes, created_at, updated_at`

// ReviewRepository implements review persistence operations using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts a new doctor review.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) (err error) {
	query := `
		INSERT INTO doctor_reviews (` + reviewColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		        $17, $18, $19, $20, $21, $22, $23, $24, $25)`

	ctx, end := database.TraceQuery(ctx, "CreateReview", query)
	defer func() { end(err) }()

	var respText *string
	var respAt *time.Time
	if review.DoctorResponse != nil {
		respText, respAt = &review.DoctorResponse.Text, &review.DoctorResponse.RespondedAt
	}

	_, err = r.pool.Exec(ctx, query,
		review.ID,
		review.DoctorID,
		review.PatientID,
		review.ConsultationID,
		review.AuthorDisplayName,
		review.IsAnonymous,
		review.OverallRating,
		nullableRating(review.SubRatings.WaitTime),
		nullableRating(review.SubRatings.BedsideManner),
		nullableRating(review.SubRatings.Explanation),
		review.Title,
		review.Body,
		string(review.Channel),
		review.IsVerifiedPatient,
		tagArray(review.PositiveTags),
		tagArray(review.ImprovementTags),
		respText,
		respAt,
		review.HelpfulCount,
		review.NotHelpfulCount,
		review.ReportCount,
		string(review.Status),
		review.ModerationNotes,
		review.CreatedAt,
		review.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("review", "consultation_id", review.ConsultationID)
		}
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// GetByID retrieves a review by its identifier.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (_ *domain.Review, err error) {
	query := `SELECT ` + reviewColumns + ` FROM doctor_reviews WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetReview", query)
	defer func() { end(err) }()

	review, err := scanReview(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return review, nil
}

// ExistsForConsultation reports whether the patient already reviewed the
// consultation.
func (r *ReviewRepository) ExistsForConsultation(ctx context.Context, patientID, consultationID string) (exists bool, err error) {
	query := `SELECT EXISTS(SELECT 1 FROM doctor_reviews WHERE patient_id = $1 AND consultation_id = $2)`

	ctx, end := database.TraceQuery(ctx, "ReviewExists", query)
	defer func() { end(err) }()

	if err = r.pool.QueryRow(ctx, query, patientID, consultationID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check existing review: %w", err)
	}
	return exists, nil
}

// List returns one page of reviews matching filter along with the total count.
func (r *ReviewRepository) List(ctx context.Context, filter repository.ReviewFilter) (_ []domain.Review, _ int, err error) {
	var (
		conditions []string
		args       []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if filter.DoctorID != "" {
		add("doctor_id = $%d", filter.DoctorID)
	}
	if filter.PatientID != "" {
		add("patient_id = $%d", filter.PatientID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.Rating.Active() {
		add("overall_rating = $%d", int(filter.Rating))
	}
	if filter.Channel != "" {
		add("consultation_channel = $%d", string(filter.Channel))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page.PerPage == 0 {
		page = pagination.DefaultParams()
	}
	args = append(args, page.PerPage, page.Offset)

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM doctor_reviews
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		reviewColumns, where, orderBy(filter.Sort), len(args)-1, len(args))

	ctx, end := database.TraceQuery(ctx, "ListReviews", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []domain.Review{}
	total := 0
	for rows.Next() {
		review, err := scanReview(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, *review)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}
	return reviews, total, nil
}

// ListForRating returns every approved review of a doctor.
func (r *ReviewRepository) ListForRating(ctx context.Context, doctorID string) (_ []domain.Review, err error) {
	query := `
		SELECT overall_rating, wait_time_rating, bedside_manner_rating, explanation_rating, consultation_channel
		FROM doctor_reviews
		WHERE doctor_id = $1 AND status = $2`

	ctx, end := database.TraceQuery(ctx, "ListReviewsForRating", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, doctorID, string(domain.StatusApproved))
	if err != nil {
		return nil, fmt.Errorf("list reviews for rating: %w", err)
	}
	defer rows.Close()

	var reviews []domain.Review
	for rows.Next() {
		var (
			rv                     domain.Review
			wait, bedside, explain *int
			channel                string
		)
		if err := rows.Scan(&rv.OverallRating, &wait, &bedside, &explain, &channel); err != nil {
			return nil, fmt.Errorf("scan rating row: %w", err)
		}
		rv.DoctorID = doctorID
		rv.Channel = domain.ConsultationChannel(channel)
		rv.SubRatings = domain.SubRatings{WaitTime: deref(wait), BedsideManner: deref(bedside), Explanation: deref(explain)}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rating rows: %w", err)
	}
	return reviews, nil
}

// SetResponse stores the doctor's reply unless one already exists.
func (r *ReviewRepository) SetResponse(ctx context.Context, id string, resp domain.DoctorResponse) (err error) {
	query := `
		UPDATE doctor_reviews
		SET doctor_response = $2, doctor_responded_at = $3, updated_at = $3
		WHERE id = $1 AND doctor_response IS NULL`

	ctx, end := database.TraceQuery(ctx, "SetReviewResponse", query)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, query, id, resp.Text, resp.RespondedAt)
	if err != nil {
		return fmt.Errorf("set review response: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Conflict("review already has a doctor response")
	}
	return nil
}

// UpdateStatus applies a moderation decision.
func (r *ReviewRepository) UpdateStatus(ctx context.Context, id string, m repository.Moderation) (err error) {
	query := `
		UPDATE doctor_reviews
		SET status = $2, moderation_notes = $3, moderated_by = $4, moderated_at = $5, updated_at = $5
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "UpdateReviewStatus", query)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, query, id, string(m.Status), m.Notes, m.ModeratorID, m.At)
	if err != nil {
		return fmt.Errorf("update review status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("review", id)
	}
	return nil
}

// CountByStatus returns the number of reviews per status.
func (r *ReviewRepository) CountByStatus(ctx context.Context) (_ map[domain.ReviewStatus]int, err error) {
	query := `SELECT status, COUNT(*) FROM doctor_reviews GROUP BY status`

	ctx, end := database.TraceQuery(ctx, "CountReviewsByStatus", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count reviews by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.ReviewStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[domain.ReviewStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}

func orderBy(sort domain.SortCriterion) string {
	switch sort {
	case domain.SortHelpful:
		return "helpful_count DESC, created_at DESC, id"
	case domain.SortRating:
		return "overall_rating DESC, created_at DESC, id"
	default:
		return "created_at DESC, id"
	}
}

// scanReview reads reviewColumns, plus any extra trailing destinations.
func scanReview(row pgx.Row, extra ...any) (*domain.Review, error) {
	var (
		rv                     domain.Review
		wait, bedside, explain *int
		channel, status        string
		positive, improvement  []string
		respText               *string
		respAt                 *time.Time
	)
	dest := []any{
		&rv.ID, &rv.DoctorID, &rv.PatientID, &rv.ConsultationID, &rv.AuthorDisplayName, &rv.IsAnonymous,
		&rv.OverallRating, &wait, &bedside, &explain,
		&rv.Title, &rv.Body, &channel, &rv.IsVerifiedPatient, &positive, &improvement,
		&respText, &respAt, &rv.HelpfulCount, &rv.NotHelpfulCount, &rv.ReportCount,
		&status, &rv.ModerationNotes, &rv.CreatedAt, &rv.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	rv.SubRatings = domain.SubRatings{WaitTime: deref(wait), BedsideManner: deref(bedside), Explanation: deref(explain)}
	rv.Channel = domain.ConsultationChannel(channel)
	rv.Status = domain.ReviewStatus(status)
	rv.PositiveTags = domain.NewTagSet(positive...)
	rv.ImprovementTags = domain.NewTagSet(improvement...)
	if respText != nil {
		rv.DoctorResponse = &domain.DoctorResponse{Text: *respText}
		if respAt != nil {
			rv.DoctorResponse.RespondedAt = *respAt
		}
	}
	return &rv, nil
}

func nullableRating(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func tagArray(s domain.TagSet) []string {
	if s == nil {
		return []string{}
	}
	return []string(s)
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
