package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/healthapp/reviews/pkg/database"
	apperrors "github.com/healthapp/reviews/pkg/errors"
	"github.com/healthapp/reviews/services/review/internal/domain"
)

// ReportRepository implements review report persistence using PostgreSQL.
type ReportRepository struct {
	pool database.DBTX
}

// NewReportRepository creates a new PostgreSQL-backed report repository.
func NewReportRepository(pool database.DBTX) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// Create stores the report and bumps the review's report count. An approved
// review whose count reaches flagThreshold is moved to FLAGGED; flagged is
// true only for the report that caused the transition.
func (r *ReportRepository) Create(ctx context.Context, report *domain.Report, flagThreshold int) (flagged bool, err error) {
	ctx, end := database.TraceQuery(ctx, "CreateReport", "INSERT INTO review_reports")
	defer func() { end(err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	insert := `
		INSERT INTO review_reports (id, review_id, reporter_id, reason, description, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = tx.Exec(ctx, insert,
		report.ID,
		report.ReviewID,
		report.ReporterID,
		string(report.Reason),
		report.Description,
		string(report.Status),
		report.CreatedAt,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return false, apperrors.AlreadyExists("report", "review_id", report.ReviewID)
		case isForeignKeyViolation(err):
			return false, apperrors.NotFound("review", report.ReviewID)
		}
		return false, fmt.Errorf("insert report: %w", err)
	}

	bump := `
		UPDATE doctor_reviews r SET
			report_count = r.report_count + 1,
			status = CASE WHEN r.report_count + 1 >= $2 AND r.status = 'APPROVED' THEN 'FLAGGED' ELSE r.status END,
			updated_at = NOW()
		FROM (SELECT id, status FROM doctor_reviews WHERE id = $1 FOR UPDATE) prev
		WHERE r.id = prev.id
		RETURNING r.status, prev.status`

	var newStatus, oldStatus string
	if err = tx.QueryRow(ctx, bump, report.ReviewID, flagThreshold).Scan(&newStatus, &oldStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, apperrors.NotFound("review", report.ReviewID)
		}
		return false, fmt.Errorf("bump report count: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}
	return newStatus != oldStatus && domain.ReviewStatus(newStatus) == domain.StatusFlagged, nil
}

// CountPending returns the number of reports awaiting a moderator.
func (r *ReportRepository) CountPending(ctx context.Context) (n int, err error) {
	query := `SELECT COUNT(*) FROM review_reports WHERE status = $1`

	ctx, end := database.TraceQuery(ctx, "CountPendingReports", query)
	defer func() { end(err) }()

	if err = r.pool.QueryRow(ctx, query, string(domain.ReportPending)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending reports: %w", err)
	}
	return n, nil
}

// Resolve closes every pending report on a review with the given status.
func (r *ReportRepository) Resolve(ctx context.Context, reviewID string, status domain.ReportStatus) (err error) {
	query := `UPDATE review_reports SET status = $2 WHERE review_id = $1 AND status = $3`

	ctx, end := database.TraceQuery(ctx, "ResolveReports", query)
	defer func() { end(err) }()

	if _, err = r.pool.Exec(ctx, query, reviewID, string(status), string(domain.ReportPending)); err != nil {
		return fmt.Errorf("resolve reports: %w", err)
	}
	return nil
}

// isForeignKeyViolation reports whether err is a PostgreSQL foreign key
// violation (SQLSTATE 23503).
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
