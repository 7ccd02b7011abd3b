package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/substitution-api/internal/models"
	appErrors "github.com/noah-isme/substitution-api/pkg/errors"
	"github.com/noah-isme/substitution-api/pkg/timetable"
)

type scheduleReader interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleBlock, error)
}

type commitmentReader interface {
	ListApprovedOn(ctx context.Context, date time.Time) ([]models.Commitment, error)
}

type candidateLister interface {
	ListCandidates(ctx context.Context, exclude string) ([]models.AvailabilityCandidate, error)
}

type requestFinder interface {
	GetByID(ctx context.Context, id string) (*models.CoverageRequestView, error)
}

// AvailabilityService answers who is free to cover a slot. Every lookup reads Postgres
// directly; no cache sits in front of it.
type AvailabilityService struct {
	schedules   scheduleReader
	commitments commitmentReader
	candidates  candidateLister
	requests    requestFinder
	wholeDay    timetable.Interval
	logger      *zap.Logger
}

// NewAvailabilityService constructs the matcher. A zero wholeDay falls back to the default school day.
func NewAvailabilityService(schedules scheduleReader, commitments commitmentReader, candidates candidateLister, requests requestFinder, wholeDay timetable.Interval, logger *zap.Logger) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if wholeDay.End <= wholeDay.Start {
		wholeDay = timetable.DefaultSchoolDay
	}
	return &AvailabilityService{
		schedules:   schedules,
		commitments: commitments,
		candidates:  candidates,
		requests:    requests,
		wholeDay:    wholeDay,
		logger:      logger,
	}
}

// WholeDay returns the window a "Whole Day" period covers.
func (s *AvailabilityService) WholeDay() timetable.Interval {
	return s.wholeDay
}

// FindAvailable lists teachers with no class and no approved substitution overlapping the
// queried period, ordered by full name then id. The requester is never included.
func (s *AvailabilityService) FindAvailable(ctx context.Context, q models.AvailabilityQuery) ([]models.AvailabilityCandidate, error) {
	if q.Term.SchoolYear == "" || q.Term.Semester == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "school year and semester are required")
	}
	if q.Date.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date is required")
	}
	window, err := s.window(q.PeriodStart, q.PeriodEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid period")
	}
	return s.available(ctx, q.Date, window, q.ExcludeTeacherID, q.Term)
}

// FindForRequest lists candidates for a stored request, deriving date and period from it.
func (s *AvailabilityService) FindForRequest(ctx context.Context, requestID string, term models.Term) ([]models.AvailabilityCandidate, error) {
	view, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load request")
	}
	return s.ForRequest(ctx, &view.CoverageRequest, term)
}

// ForRequest lists candidates for an already loaded request.
func (s *AvailabilityService) ForRequest(ctx context.Context, req *models.CoverageRequest, term models.Term) ([]models.AvailabilityCandidate, error) {
	if term.SchoolYear == "" || term.Semester == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "school year and semester are required")
	}
	window, err := timetable.ParsePeriod(req.Period, s.wholeDay)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "request period is malformed")
	}
	return s.available(ctx, req.DateNeeded, window, req.TeacherID, term)
}

func (s *AvailabilityService) window(start, end string) (timetable.Interval, error) {
	if start == timetable.WholeDayPeriod || end == timetable.WholeDayPeriod {
		return s.wholeDay, nil
	}
	return timetable.NewInterval(start, end)
}

func (s *AvailabilityService) available(ctx context.Context, date time.Time, window timetable.Interval, exclude string, term models.Term) ([]models.AvailabilityCandidate, error) {
	busy, err := s.busyTeachers(ctx, date, window, term)
	if err != nil {
		return nil, err
	}

	pool, err := s.candidates.ListCandidates(ctx, exclude)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to list teachers")
	}

	free := make([]models.AvailabilityCandidate, 0, len(pool))
	for _, candidate := range pool {
		if candidate.ID == exclude {
			continue
		}
		if _, taken := busy[candidate.ID]; taken {
			continue
		}
		free = append(free, candidate)
	}
	return free, nil
}

// busyTeachers collects everyone with a class or an approved substitution overlapping window on date.
func (s *AvailabilityService) busyTeachers(ctx context.Context, date time.Time, window timetable.Interval, term models.Term) (map[string]struct{}, error) {
	busy := make(map[string]struct{})

	if day := timetable.Weekday(date); timetable.IsSchoolDay(day) {
		blocks, err := s.schedules.List(ctx, models.ScheduleFilter{Term: term, DayOfWeek: day, On: &date})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load schedules")
		}
		for _, block := range blocks {
			slot, err := timetable.NewInterval(block.TimeStart, block.TimeEnd)
			if err != nil {
				// an unreadable block still blocks its teacher
				s.logger.Warn("unparseable schedule block", zap.String("block_id", block.ID), zap.String("start", block.TimeStart), zap.String("end", block.TimeEnd))
				busy[block.TeacherID] = struct{}{}
				continue
			}
			if slot.Overlaps(window) {
				busy[block.TeacherID] = struct{}{}
			}
		}
	}

	commitments, err := s.commitments.ListApprovedOn(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load approved substitutions")
	}
	for _, c := range commitments {
		slot, err := timetable.ParsePeriod(c.Period, s.wholeDay)
		if err != nil || slot.Overlaps(window) {
			busy[c.SubstituteID] = struct{}{}
		}
	}
	return busy, nil
}
