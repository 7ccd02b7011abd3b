package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/substitution-api/internal/dto"
	"github.com/noah-isme/substitution-api/internal/models"
	"github.com/noah-isme/substitution-api/internal/repository"
	"github.com/noah-isme/substitution-api/pkg/timetable"
)

const (
	importInvalidMessage = "Teacher id, teacher name, department, term and a non-empty timetable are required."
	importFailedMessage  = "Import failed while saving the timetable. Please try again."
)

type slotWriter interface {
	ReplaceSlots(ctx context.Context, teacherID string, term models.Term, blocks []models.ScheduleBlock) (int, error)
}

type rosterInvalidator interface {
	Invalidate(ctx context.Context, department string)
}

// ImportService runs the timetable scavenger and persists the slots it finds.
type ImportService struct {
	store     slotWriter
	audit     auditLogger
	roster    rosterInvalidator
	metrics   *MetricsService
	scanner   *timetable.Scanner
	validator *validator.Validate
	logger    *zap.Logger
}

// ImportServiceOption configures the service.
type ImportServiceOption func(*ImportService)

// WithImportScanner overrides the default substring scanner.
func WithImportScanner(scanner *timetable.Scanner) ImportServiceOption {
	return func(s *ImportService) {
		if scanner != nil {
			s.scanner = scanner
		}
	}
}

// WithImportRoster invalidates the department roster after a successful import.
func WithImportRoster(roster rosterInvalidator) ImportServiceOption {
	return func(s *ImportService) {
		s.roster = roster
	}
}

// WithImportMetrics records import outcomes.
func WithImportMetrics(metrics *MetricsService) ImportServiceOption {
	return func(s *ImportService) {
		s.metrics = metrics
	}
}

// NewImportService constructs an ImportService.
func NewImportService(store slotWriter, audit auditLogger, validate *validator.Validate, logger *zap.Logger, opts ...ImportServiceOption) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &ImportService{
		store:     store,
		audit:     audit,
		scanner:   timetable.NewScanner(nil, 0),
		validator: validate,
		logger:    logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Import extracts one teacher's timetable block and replaces the matching slots. Every
// failure is reported through the result; nothing is written unless the teacher is found.
func (s *ImportService) Import(ctx context.Context, req dto.ImportTimetableRequest, actorID string) models.ImportResult {
	result := s.importTimetable(ctx, req, actorID)
	s.metrics.RecordImport(result.Success, result.Count)
	return result
}

func (s *ImportService) importTimetable(ctx context.Context, req dto.ImportTimetableRequest, actorID string) models.ImportResult {
	req.TeacherName = strings.TrimSpace(req.TeacherName)
	req.Department = strings.TrimSpace(req.Department)
	if err := s.validator.Struct(req); err != nil || len(bytes.TrimSpace(req.Content)) == 0 {
		return models.ImportResult{Success: false, Message: importInvalidMessage}
	}

	rows, err := timetable.ReadRows(req.Format, bytes.NewReader(req.Content))
	if err != nil {
		s.logger.Warn("timetable decode failed", zap.String("teacher_id", req.TeacherID), zap.String("format", string(req.Format)), zap.Error(err))
		return models.ImportResult{Success: false, Message: "Could not read the timetable file."}
	}

	scan := s.scanner.Scan(rows, req.TeacherName)
	if !scan.Found {
		return models.ImportResult{Success: false, Message: fmt.Sprintf("Scavenger failed to find %q.", scan.Token)}
	}

	blocks := make([]models.ScheduleBlock, 0, len(scan.Slots))
	for _, slot := range scan.Slots {
		blocks = append(blocks, models.ScheduleBlock{
			TeacherID:  req.TeacherID,
			DayOfWeek:  slot.Day,
			TimeStart:  slot.Start,
			TimeEnd:    slot.End,
			Subject:    slot.Subject,
			Department: req.Department,
			SchoolYear: req.Term.SchoolYear,
			Semester:   req.Term.Semester,
		})
	}

	written := 0
	if len(blocks) > 0 {
		written, err = s.store.ReplaceSlots(ctx, req.TeacherID, req.Term, blocks)
		if err != nil {
			s.logger.Error("timetable import write failed",
				zap.String("op", "replace slots"),
				zap.String("key", repository.ImportLockKey(req.TeacherID, req.Term)),
				zap.Int("slots", len(blocks)),
				zap.Error(err))
			return models.ImportResult{Success: false, Message: importFailedMessage}
		}
	}

	s.logger.Info("timetable imported",
		zap.String("teacher_id", req.TeacherID),
		zap.String("token", scan.Token),
		zap.Int("name_row", scan.NameRow),
		zap.String("stop", string(scan.Stop)),
		zap.Int("slots", written))

	if s.roster != nil {
		s.roster.Invalidate(ctx, req.Department)
	}
	s.emitAudit(ctx, actorID, req, written)

	return models.ImportResult{
		Success: true,
		Count:   written,
		Message: fmt.Sprintf("Successfully imported & organized %d classes for %s.", written, req.Department),
	}
}

func (s *ImportService) emitAudit(ctx context.Context, actorID string, req dto.ImportTimetableRequest, written int) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"department":  req.Department,
		"school_year": req.Term.SchoolYear,
		"semester":    req.Term.Semester,
		"count":       written,
	})
	teacherID := req.TeacherID
	log := &models.AuditLog{
		UserID:     optionalString(actorID),
		Action:     models.AuditActionScheduleImport,
		Resource:   models.AuditResourceSchedule,
		ResourceID: &teacherID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "timetable-import",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
