package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/substitution-api/internal/models"
)

// ErrRequestNotPending is returned when a review targets a request that already left pending.
var ErrRequestNotPending = errors.New("request is no longer pending")

const requestColumns = `id, teacher_id, date_needed, subject, period, status, substitute_id, reason, activity_details,
       activity_file_url, reviewed_by, reviewed_at, created_at`

const requestViewSelect = `SELECT r.id, r.teacher_id, r.date_needed, r.subject, r.period, r.status, r.substitute_id, r.reason,
       r.activity_details, r.activity_file_url, r.reviewed_by, r.reviewed_at, r.created_at,
       t.full_name AS teacher_name, t.email AS teacher_email,
       s.full_name AS substitute_name, s.email AS substitute_email
FROM requests r
JOIN profiles t ON t.id = r.teacher_id
LEFT JOIN profiles s ON s.id = r.substitute_id`

// RequestRepository persists coverage requests.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// SubstituteLockKey is the advisory lock key serialising approvals for one substitute and date.
func SubstituteLockKey(substituteID string, date time.Time) string {
	return "substitute:" + substituteID + "|" + date.Format("2006-01-02")
}

// Create inserts a new pending request.
func (r *RequestRepository) Create(ctx context.Context, req *models.CoverageRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.RequestStatusPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO requests
	(id, teacher_id, date_needed, subject, period, status, substitute_id, reason, activity_details, activity_file_url, reviewed_by, reviewed_at, created_at)
	VALUES (:id, :teacher_id, :date_needed, :subject, :period, :status, :substitute_id, :reason, :activity_details, :activity_file_url, :reviewed_by, :reviewed_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// GetByID fetches a request with requester and substitute names.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.CoverageRequestView, error) {
	var view models.CoverageRequestView
	if err := r.db.GetContext(ctx, &view, requestViewSelect+` WHERE r.id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	return &view, nil
}

// List returns requests matching the filter with the total count.
func (r *RequestRepository) List(ctx context.Context, filter models.CoverageRequestFilter) ([]models.CoverageRequestView, int, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("r.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("r.teacher_id = $%d", len(args)))
	}
	if filter.SubstituteID != "" {
		args = append(args, filter.SubstituteID)
		conditions = append(conditions, fmt.Sprintf("r.substitute_id = $%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, filter.DateFrom.Format("2006-01-02"))
		conditions = append(conditions, fmt.Sprintf("r.date_needed >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, filter.DateTo.Format("2006-01-02"))
		conditions = append(conditions, fmt.Sprintf("r.date_needed <= $%d", len(args)))
	}
	if filter.Before != nil {
		args = append(args, filter.Before.Format("2006-01-02"))
		conditions = append(conditions, fmt.Sprintf("r.date_needed < $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	orderBy := "r.date_needed DESC, r.created_at DESC"
	switch filter.OrderBy {
	case "date_asc":
		orderBy = "r.date_needed ASC, r.created_at ASC"
	case "created_desc":
		orderBy = "r.created_at DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("%s%s ORDER BY %s, r.id LIMIT %d OFFSET %d", requestViewSelect, where, orderBy, pageSize, offset)
	var items []models.CoverageRequestView
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM requests r"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}
	return items, total, nil
}

// ListApprovedOn returns every approved commitment dated date.
func (r *RequestRepository) ListApprovedOn(ctx context.Context, date time.Time) ([]models.Commitment, error) {
	const query = `SELECT id, substitute_id, date_needed, period FROM requests
WHERE status = 'approved' AND date_needed = $1 AND substitute_id IS NOT NULL`
	var commitments []models.Commitment
	if err := r.db.SelectContext(ctx, &commitments, query, date.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("list approved commitments: %w", err)
	}
	return commitments, nil
}

// ApproveParams groups the assignment written by Approve.
type ApproveParams struct {
	ID           string
	SubstituteID string
	ReviewedBy   string
	ReviewedAt   time.Time
}

// CommitmentGuard vets an assignment against the substitute's existing commitments on
// the same date. A non-nil error aborts the approval.
type CommitmentGuard func(req models.CoverageRequest, existing []models.Commitment) error

// Approve assigns a substitute atomically. The request row is locked, concurrent approvals
// for the same substitute and date are serialised, guard sees the committed state, and the
// final update only succeeds while the request is still pending.
func (r *RequestRepository) Approve(ctx context.Context, params ApproveParams, guard CommitmentGuard) (req *models.CoverageRequest, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin approval transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.CoverageRequest
	if err = tx.GetContext(ctx, &current, `SELECT `+requestColumns+` FROM requests WHERE id = $1 FOR UPDATE`, params.ID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock request: %w", err)
	}
	if current.Status != models.RequestStatusPending {
		return nil, ErrRequestNotPending
	}

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, SubstituteLockKey(params.SubstituteID, current.DateNeeded)); err != nil {
		return nil, fmt.Errorf("lock substitute day: %w", err)
	}

	if guard != nil {
		var existing []models.Commitment
		const commitmentsQuery = `SELECT id, substitute_id, date_needed, period FROM requests
WHERE status = 'approved' AND substitute_id = $1 AND date_needed = $2 AND id <> $3`
		if err = tx.SelectContext(ctx, &existing, commitmentsQuery, params.SubstituteID, current.DateNeeded.Format("2006-01-02"), params.ID); err != nil {
			return nil, fmt.Errorf("load substitute commitments: %w", err)
		}
		if err = guard(current, existing); err != nil {
			return nil, err
		}
	}

	const updateQuery = `UPDATE requests SET status = 'approved', substitute_id = $2, reviewed_by = $3, reviewed_at = $4
WHERE id = $1 AND status = 'pending'`
	res, err := tx.ExecContext(ctx, updateQuery, params.ID, params.SubstituteID, params.ReviewedBy, params.ReviewedAt)
	if err != nil {
		return nil, fmt.Errorf("approve request: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check approval rows: %w", err)
	}
	if rows == 0 {
		return nil, ErrRequestNotPending
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approval: %w", err)
	}

	current.Status = models.RequestStatusApproved
	current.SubstituteID = &params.SubstituteID
	current.ReviewedBy = &params.ReviewedBy
	current.ReviewedAt = &params.ReviewedAt
	return &current, nil
}

// Reject moves a pending request to rejected. ErrRequestNotPending is returned when the
// request is missing or already reviewed.
func (r *RequestRepository) Reject(ctx context.Context, id, reviewedBy string, reviewedAt time.Time) error {
	const query = `UPDATE requests SET status = 'rejected', reviewed_by = $2, reviewed_at = $3
WHERE id = $1 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id, reviewedBy, reviewedAt)
	if err != nil {
		return fmt.Errorf("reject request: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rejection rows: %w", err)
	}
	if rows == 0 {
		return ErrRequestNotPending
	}
	return nil
}

// CountByStatus aggregates requests per status, optionally restricted to one date.
func (r *RequestRepository) CountByStatus(ctx context.Context, date *time.Time) ([]models.RequestStatusCount, error) {
	query := `SELECT status, COUNT(*) AS total FROM requests`
	var args []interface{}
	if date != nil {
		args = append(args, date.Format("2006-01-02"))
		query += ` WHERE date_needed = $1`
	}
	query += ` GROUP BY status ORDER BY status`

	var counts []models.RequestStatusCount
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("count requests by status: %w", err)
	}
	return counts, nil
}
