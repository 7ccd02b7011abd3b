package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/substitution-api/internal/models"
)

var (
	requestCols    = []string{"id", "teacher_id", "date_needed", "subject", "period", "status", "substitute_id", "reason", "activity_details", "activity_file_url", "reviewed_by", "reviewed_at", "created_at"}
	commitmentCols = []string{"id", "substitute_id", "date_needed", "period"}
	monday         = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
)

func lockedRequestRow(status string) *sqlmock.Rows {
	return sqlmock.NewRows(requestCols).
		AddRow("req-1", "teacher-1", monday, "Science 8", "7:40 AM - 8:40 AM", status, nil, "seminar", "worksheet p.4", nil, nil, nil, time.Now())
}

func TestRequestRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	req := &models.CoverageRequest{TeacherID: "teacher-1", DateNeeded: monday, Subject: "Science 8", Period: "7:40 AM - 8:40 AM", ActivityDetails: "worksheet"}
	require.NoError(t, repo.Create(context.Background(), req))
	require.NotEmpty(t, req.ID)
	require.Equal(t, models.RequestStatusPending, req.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryApprove(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM requests WHERE id = $1 FOR UPDATE")).
		WithArgs("req-1").
		WillReturnRows(lockedRequestRow("pending"))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("substitute:sub-1|2025-03-03").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'approved' AND substitute_id = $1 AND date_needed = $2 AND id <> $3")).
		WithArgs("sub-1", "2025-03-03", "req-1").
		WillReturnRows(sqlmock.NewRows(commitmentCols).AddRow("req-0", "sub-1", monday, "1:00 PM - 2:00 PM"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE requests SET status = 'approved'")).
		WithArgs("req-1", "sub-1", "admin-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var seen []models.Commitment
	approved, err := repo.Approve(context.Background(), ApproveParams{ID: "req-1", SubstituteID: "sub-1", ReviewedBy: "admin-1", ReviewedAt: time.Now()},
		func(req models.CoverageRequest, existing []models.Commitment) error {
			seen = existing
			return nil
		})
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusApproved, approved.Status)
	require.Equal(t, "sub-1", *approved.SubstituteID)
	require.Len(t, seen, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryApproveAlreadyHandled(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("req-1").
		WillReturnRows(lockedRequestRow("rejected"))
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), ApproveParams{ID: "req-1", SubstituteID: "sub-1"}, nil)
	require.ErrorIs(t, err, ErrRequestNotPending)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryApproveLosesCompareAndSwap(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WillReturnRows(lockedRequestRow("pending"))
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE requests SET status = 'approved'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), ApproveParams{ID: "req-1", SubstituteID: "sub-1"}, nil)
	require.ErrorIs(t, err, ErrRequestNotPending)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryApproveGuardAborts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	busy := errors.New("substitute busy")
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WillReturnRows(lockedRequestRow("pending"))
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("substitute_id = $1 AND date_needed = $2")).
		WillReturnRows(sqlmock.NewRows(commitmentCols).AddRow("req-0", "sub-1", monday, "8:00 AM - 9:00 AM"))
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), ApproveParams{ID: "req-1", SubstituteID: "sub-1"},
		func(models.CoverageRequest, []models.Commitment) error { return busy })
	require.ErrorIs(t, err, busy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryApproveMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), ApproveParams{ID: "nope", SubstituteID: "sub-1"}, nil)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryReject(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE requests SET status = 'rejected'")).
		WithArgs("req-1", "admin-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE requests SET status = 'rejected'")).
		WithArgs("req-1", "admin-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Reject(context.Background(), "req-1", "admin-1", time.Now()))
	require.ErrorIs(t, repo.Reject(context.Background(), "req-1", "admin-2", time.Now()), ErrRequestNotPending)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListPendingQueue(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	viewCols := append(append([]string{}, requestCols...), "teacher_name", "teacher_email", "substitute_name", "substitute_email")
	rows := sqlmock.NewRows(viewCols).
		AddRow("req-1", "teacher-1", monday, "Science 8", "Whole Day", "pending", nil, nil, "worksheet", nil, nil, nil, time.Now(), "Juan Dela Cruz", "juan@school.edu", nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.status IN ($1) ORDER BY r.date_needed ASC, r.created_at ASC, r.id LIMIT 50 OFFSET 0")).
		WithArgs("pending").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM requests r WHERE r.status IN ($1)")).
		WithArgs("pending").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.CoverageRequestFilter{
		Status:  []models.RequestStatus{models.RequestStatusPending},
		OrderBy: "date_asc",
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, items, 1)
	require.Equal(t, "Juan Dela Cruz", items[0].TeacherName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListApprovedOn(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'approved' AND date_needed = $1")).
		WithArgs("2025-03-03").
		WillReturnRows(sqlmock.NewRows(commitmentCols).AddRow("req-9", "sub-1", monday, "Whole Day"))

	commitments, err := repo.ListApprovedOn(context.Background(), monday)
	require.NoError(t, err)
	require.Len(t, commitments, 1)
	require.Equal(t, "sub-1", commitments[0].SubstituteID)
	require.NoError(t, mock.ExpectationsWereMet())
}
