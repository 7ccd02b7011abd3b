package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/substitution-api/internal/models"
	appErrors "github.com/noah-isme/substitution-api/pkg/errors"
)

type rosterRepository interface {
	ListDepartmentTeachers(ctx context.Context, department string, term models.Term) ([]models.DepartmentTeacher, error)
}

type rosterStore interface {
	Get(ctx context.Context, department string, term models.Term) ([]models.DepartmentTeacher, bool)
	Put(ctx context.Context, department string, term models.Term, roster []models.DepartmentTeacher)
}

// RosterService lists the teachers who hold classes in a department.
type RosterService struct {
	repo   rosterRepository
	cache  rosterStore
	logger *zap.Logger
}

// NewRosterService constructs the service. cache may be nil.
func NewRosterService(repo rosterRepository, cache rosterStore, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{repo: repo, cache: cache, logger: logger}
}

// Teachers returns the department roster for term, served from cache when possible.
func (s *RosterService) Teachers(ctx context.Context, department string, term models.Term) ([]models.DepartmentTeacher, bool, error) {
	department = strings.TrimSpace(department)
	if department == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "department is required")
	}
	if term.SchoolYear == "" || term.Semester == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "school year and semester are required")
	}

	if s.cache != nil {
		if roster, ok := s.cache.Get(ctx, department, term); ok {
			return roster, true, nil
		}
	}

	roster, err := s.repo.ListDepartmentTeachers(ctx, department, term)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to list department teachers")
	}
	if roster == nil {
		roster = []models.DepartmentTeacher{}
	}
	if s.cache != nil {
		s.cache.Put(ctx, department, term, roster)
	}
	return roster, false, nil
}
