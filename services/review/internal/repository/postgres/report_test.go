package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/healthapp/reviews/pkg/errors"
	"github.com/healthapp/reviews/services/review/internal/domain"
)

func sampleReport() *domain.Report {
	return &domain.Report{
		ID:          "rep-1",
		ReviewID:    "rev-1",
		ReporterID:  "user-9",
		Reason:      domain.ReasonSpam,
		Description: "links to a pharmacy",
		Status:      domain.ReportPending,
		CreatedAt:   now,
	}
}

func expectReportInsert(mock pgxmock.PgxPoolIface, rep *domain.Report) *pgxmock.ExpectedExec {
	mock.ExpectBegin()
	return mock.ExpectExec("INSERT INTO review_reports").
		WithArgs(rep.ID, rep.ReviewID, rep.ReporterID, "SPAM", rep.Description, "PENDING", rep.CreatedAt)
}

func TestReportRepository_Create_Flags(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReportRepository(mock)

	rep := sampleReport()
	expectReportInsert(mock, rep).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("UPDATE doctor_reviews r SET").
		WithArgs("rev-1", 5).
		WillReturnRows(pgxmock.NewRows([]string{"status", "status"}).AddRow("FLAGGED", "APPROVED"))
	mock.ExpectCommit()

	flagged, err := repo.Create(context.Background(), rep, 5)
	require.NoError(t, err)
	assert.True(t, flagged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepository_Create_BelowThreshold(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReportRepository(mock)

	rep := sampleReport()
	expectReportInsert(mock, rep).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("UPDATE doctor_reviews r SET").
		WithArgs("rev-1", 5).
		WillReturnRows(pgxmock.NewRows([]string{"status", "status"}).AddRow("APPROVED", "APPROVED"))
	mock.ExpectCommit()

	flagged, err := repo.Create(context.Background(), rep, 5)
	require.NoError(t, err)
	assert.False(t, flagged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepository_Create_Duplicate(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReportRepository(mock)

	rep := sampleReport()
	expectReportInsert(mock, rep).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), rep, 5)
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyExists))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepository_Create_UnknownReview(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReportRepository(mock)

	rep := sampleReport()
	expectReportInsert(mock, rep).WillReturnError(&pgconn.PgError{Code: "23503"})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), rep, 5)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepository_CountPendingAndResolve(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewReportRepository(mock)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("PENDING").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectExec("UPDATE review_reports SET status").
		WithArgs("rev-1", "DISMISSED", "PENDING").
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	n, err := repo.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	require.NoError(t, repo.Resolve(context.Background(), "rev-1", domain.ReportDismissed))
	assert.NoError(t, mock.ExpectationsWereMet())
}
