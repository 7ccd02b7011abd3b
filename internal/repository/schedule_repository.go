package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/substitution-api/internal/models"
)

const scheduleColumns = `id, teacher_id, day_of_week, time_start, time_end, subject, department, school_year, semester, specific_date, created_at`

// ScheduleRepository persists teacher timetable blocks.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs the repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// ImportLockKey is the advisory lock key serialising writes to one teacher's term timetable.
func ImportLockKey(teacherID string, term models.Term) string {
	return "import:" + teacherID + "|" + term.SchoolYear + "|" + term.Semester
}

// ReplaceSlots writes blocks for one teacher and term in a single transaction. Each block
// first removes whatever occupies its (day, time_start) slot, so re-running an import
// converges on the same rows. A date-pinned block takes over the weekly block at its slot.
func (r *ScheduleRepository) ReplaceSlots(ctx context.Context, teacherID string, term models.Term, blocks []models.ScheduleBlock) (written int, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin schedule import transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ImportLockKey(teacherID, term)); err != nil {
		return 0, fmt.Errorf("lock teacher timetable: %w", err)
	}

	const deleteQuery = `DELETE FROM teacher_schedules
WHERE teacher_id = $1 AND school_year = $2 AND semester = $3 AND day_of_week = $4 AND time_start = $5`
	const insertQuery = `INSERT INTO teacher_schedules (` + scheduleColumns + `)
VALUES (:id, :teacher_id, :day_of_week, :time_start, :time_end, :subject, :department, :school_year, :semester, :specific_date, :created_at)`

	now := time.Now().UTC()
	for i := range blocks {
		block := &blocks[i]
		block.TeacherID = teacherID
		block.SchoolYear = term.SchoolYear
		block.Semester = term.Semester
		if block.ID == "" {
			block.ID = uuid.NewString()
		}
		if block.CreatedAt.IsZero() {
			block.CreatedAt = now
		}
		if _, err = tx.ExecContext(ctx, deleteQuery, teacherID, term.SchoolYear, term.Semester, block.DayOfWeek, block.TimeStart); err != nil {
			return 0, fmt.Errorf("clear schedule slot %d %s: %w", block.DayOfWeek, block.TimeStart, err)
		}
		if _, err = tx.NamedExecContext(ctx, insertQuery, block); err != nil {
			return 0, fmt.Errorf("insert schedule slot %d %s: %w", block.DayOfWeek, block.TimeStart, err)
		}
		written++
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit schedule import: %w", err)
	}
	return written, nil
}

// FindByID returns a block by identifier.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.ScheduleBlock, error) {
	query := `SELECT ` + scheduleColumns + ` FROM teacher_schedules WHERE id = $1`
	var block models.ScheduleBlock
	if err := r.db.GetContext(ctx, &block, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find schedule block: %w", err)
	}
	return &block, nil
}

// List returns blocks matching the filter ordered by day then insertion.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleBlock, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)))
	}
	if filter.Term.SchoolYear != "" {
		args = append(args, filter.Term.SchoolYear)
		conditions = append(conditions, fmt.Sprintf("school_year = $%d", len(args)))
	}
	if filter.Term.Semester != "" {
		args = append(args, filter.Term.Semester)
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)))
	}
	if filter.DayOfWeek > 0 {
		args = append(args, filter.DayOfWeek)
		conditions = append(conditions, fmt.Sprintf("day_of_week = $%d", len(args)))
	}
	if filter.On != nil {
		args = append(args, filter.On.Format("2006-01-02"))
		conditions = append(conditions, fmt.Sprintf("(specific_date IS NULL OR specific_date = $%d)", len(args)))
	}

	var builder strings.Builder
	builder.WriteString(`SELECT ` + scheduleColumns + ` FROM teacher_schedules`)
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY day_of_week ASC, created_at ASC, id ASC")

	var blocks []models.ScheduleBlock
	if err := r.db.SelectContext(ctx, &blocks, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list schedule blocks: %w", err)
	}
	return blocks, nil
}

// Delete removes a block. sql.ErrNoRows is returned when nothing matched.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM teacher_schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule block: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check schedule delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListDepartmentTeachers returns the distinct teachers holding classes in a department.
func (r *ScheduleRepository) ListDepartmentTeachers(ctx context.Context, department string, term models.Term) ([]models.DepartmentTeacher, error) {
	args := []interface{}{department}
	query := `SELECT p.id, p.full_name, p.email, COUNT(s.id) AS classes
FROM teacher_schedules s
JOIN profiles p ON p.id = s.teacher_id
WHERE s.department = $1`
	if term.SchoolYear != "" {
		args = append(args, term.SchoolYear)
		query += fmt.Sprintf(" AND s.school_year = $%d", len(args))
	}
	if term.Semester != "" {
		args = append(args, term.Semester)
		query += fmt.Sprintf(" AND s.semester = $%d", len(args))
	}
	query += " GROUP BY p.id, p.full_name, p.email ORDER BY p.full_name ASC, p.id ASC"

	var teachers []models.DepartmentTeacher
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, fmt.Errorf("list department teachers: %w", err)
	}
	return teachers, nil
}

// ListDepartments returns every department that has at least one block.
func (r *ScheduleRepository) ListDepartments(ctx context.Context) ([]string, error) {
	var departments []string
	if err := r.db.SelectContext(ctx, &departments, `SELECT DISTINCT department FROM teacher_schedules ORDER BY department ASC`); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return departments, nil
}
