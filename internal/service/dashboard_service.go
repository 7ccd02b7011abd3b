package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/substitution-api/internal/models"
	appErrors "github.com/noah-isme/substitution-api/pkg/errors"
)

type requestCounter interface {
	CountByStatus(ctx context.Context, date *time.Time) ([]models.RequestStatusCount, error)
	List(ctx context.Context, filter models.CoverageRequestFilter) ([]models.CoverageRequestView, int, error)
}

type roleCounter interface {
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
}

// DashboardService composes the admin landing page.
type DashboardService struct {
	requests requestCounter
	users    roleCounter
	logger   *zap.Logger
}

// NewDashboardService constructs the dashboard service.
func NewDashboardService(requests requestCounter, users roleCounter, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{requests: requests, users: users, logger: logger}
}

// Summary returns request counters, the teacher headcount and the substitutions running on date.
func (s *DashboardService) Summary(ctx context.Context, date time.Time) (*models.DashboardSummary, error) {
	counts, err := s.requests.CountByStatus(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to count requests")
	}
	teachers, err := s.users.CountByRole(ctx, models.RoleTeacher)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to count teachers")
	}
	day := startOfDay(date)
	substitutions, _, err := s.requests.List(ctx, models.CoverageRequestFilter{
		Status:   []models.RequestStatus{models.RequestStatusApproved},
		DateFrom: &day,
		DateTo:   &day,
		OrderBy:  "created_desc",
		Page:     1,
		PageSize: 200,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to list substitutions")
	}
	if substitutions == nil {
		substitutions = []models.CoverageRequestView{}
	}

	summary := &models.DashboardSummary{
		Date:          day.Format("2006-01-02"),
		Teachers:      teachers,
		Substitutions: substitutions,
	}
	for _, c := range counts {
		switch c.Status {
		case models.RequestStatusPending:
			summary.PendingRequests = c.Total
		case models.RequestStatusApproved:
			summary.ApprovedRequests = c.Total
		case models.RequestStatusRejected:
			summary.RejectedRequests = c.Total
		}
	}
	return summary, nil
}
