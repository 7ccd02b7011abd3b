package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/substitution-api/internal/dto"
	"github.com/noah-isme/substitution-api/internal/models"
	appErrors "github.com/noah-isme/substitution-api/pkg/errors"
	"github.com/noah-isme/substitution-api/pkg/timetable"
)

type scheduleRepository interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleBlock, error)
	FindByID(ctx context.Context, id string) (*models.ScheduleBlock, error)
	ReplaceSlots(ctx context.Context, teacherID string, term models.Term, blocks []models.ScheduleBlock) (int, error)
	Delete(ctx context.Context, id string) error
	ListDepartments(ctx context.Context) ([]string, error)
}

// ScheduleService manages teacher timetables outside of bulk imports.
type ScheduleService struct {
	repo      scheduleRepository
	profiles  profileFinder
	roster    rosterInvalidator
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService instantiates ScheduleService. roster may be nil.
func NewScheduleService(repo scheduleRepository, profiles profileFinder, roster rosterInvalidator, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repo: repo, profiles: profiles, roster: roster, audit: audit, validator: validate, logger: logger}
}

// List returns a teacher's blocks for a term ordered by weekday then start time.
func (s *ScheduleService) List(ctx context.Context, teacherID string, query dto.ScheduleQuery) ([]models.ScheduleBlock, error) {
	if query.Term.SchoolYear == "" || query.Term.Semester == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "school year and semester are required")
	}
	blocks, err := s.repo.List(ctx, models.ScheduleFilter{
		TeacherID:  teacherID,
		Department: strings.TrimSpace(query.Department),
		Term:       query.Term,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to list schedules")
	}
	sortBlocks(blocks)
	return blocks, nil
}

// ForDate returns the caller's blocks held on the weekday of date. Weekends have none.
func (s *ScheduleService) ForDate(ctx context.Context, teacherID string, date time.Time, term models.Term) ([]models.ScheduleBlock, error) {
	if term.SchoolYear == "" || term.Semester == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "school year and semester are required")
	}
	day := timetable.Weekday(date)
	if !timetable.IsSchoolDay(day) {
		return []models.ScheduleBlock{}, nil
	}
	blocks, err := s.repo.List(ctx, models.ScheduleFilter{TeacherID: teacherID, Term: term, DayOfWeek: day, On: &date})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to list schedules")
	}
	sortBlocks(blocks)
	return blocks, nil
}

// Create adds one block, replacing whatever occupied the same slot.
func (s *ScheduleService) Create(ctx context.Context, teacherID string, req dto.CreateScheduleBlockRequest, activeTerm models.Term, actorID string) (*models.ScheduleBlock, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	term := models.Term{SchoolYear: strings.TrimSpace(req.SchoolYear), Semester: strings.TrimSpace(req.Semester)}.Or(activeTerm)
	if term.SchoolYear == "" || term.Semester == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "school year and semester are required")
	}

	start, err := timetable.Canonical(req.TimeStart)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time_start")
	}
	end, err := timetable.Canonical(req.TimeEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time_end")
	}
	if _, err := timetable.NewInterval(start, end); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "time_end must be after time_start")
	}

	block := models.ScheduleBlock{
		TeacherID:  teacherID,
		DayOfWeek:  req.DayOfWeek,
		TimeStart:  start,
		TimeEnd:    end,
		Subject:    strings.TrimSpace(req.Subject),
		Department: strings.TrimSpace(req.Department),
	}
	if req.SpecificDate != "" {
		date, err := time.Parse("2006-01-02", req.SpecificDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "specific_date must be YYYY-MM-DD")
		}
		if timetable.Weekday(date) != req.DayOfWeek {
			return nil, appErrors.Clone(appErrors.ErrValidation, "specific_date does not fall on day_of_week")
		}
		block.SpecificDate = &date
	}

	if _, err := s.profiles.FindByID(ctx, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load teacher")
	}

	blocks := []models.ScheduleBlock{block}
	if _, err := s.repo.ReplaceSlots(ctx, teacherID, term, blocks); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "slot is already taken")
		}
		key := teacherID + "/" + timetable.DayName(block.DayOfWeek) + "/" + start
		s.logger.Error("schedule block write failed", zap.String("op", "insert schedule block"), zap.String("key", key), zap.Error(err))
		return nil, appErrors.Store(err, "insert schedule block", key)
	}
	created := blocks[0]

	if s.roster != nil {
		s.roster.Invalidate(ctx, created.Department)
	}
	payload, _ := json.Marshal(created)
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     optionalString(actorID),
		Action:     models.AuditActionScheduleCreate,
		Resource:   models.AuditResourceSchedule,
		ResourceID: &created.ID,
		NewValues:  payload,
	})
	return &created, nil
}

// Delete removes one block.
func (s *ScheduleService) Delete(ctx context.Context, id, actorID string) error {
	block, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule block not found")
		}
		return appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load schedule block")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule block not found")
		}
		return appErrors.Store(err, "delete schedule block", id)
	}

	if s.roster != nil {
		s.roster.Invalidate(ctx, block.Department)
	}
	payload, _ := json.Marshal(block)
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     optionalString(actorID),
		Action:     models.AuditActionScheduleDelete,
		Resource:   models.AuditResourceSchedule,
		ResourceID: &block.ID,
		OldValues:  payload,
	})
	return nil
}

// Departments lists every department that has at least one block.
func (s *ScheduleService) Departments(ctx context.Context) ([]string, error) {
	departments, err := s.repo.ListDepartments(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to list departments")
	}
	if departments == nil {
		departments = []string{}
	}
	return departments, nil
}

func (s *ScheduleService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = "schedule-service"
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

// sortBlocks orders by weekday then start minute. Unparseable start times sort last within their day.
func sortBlocks(blocks []models.ScheduleBlock) {
	minute := func(b models.ScheduleBlock) int {
		m, err := timetable.ParseMinutes(b.TimeStart)
		if err != nil {
			return 24 * 60
		}
		return m
	}
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].DayOfWeek != blocks[j].DayOfWeek {
			return blocks[i].DayOfWeek < blocks[j].DayOfWeek
		}
		return minute(blocks[i]) < minute(blocks[j])
	})
}
