package service

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/noah-isme/substitution-api/internal/models"
	"github.com/noah-isme/substitution-api/internal/repository"
)

var activeTerm = models.Term{SchoolYear: "2025-2026", Semester: "1st Semester"}

func day(value string) time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return t
}

func strPtr(v string) *string { return &v }

type auditStub struct {
	logs []*models.AuditLog
	err  error
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return a.err
}

type scheduleStoreStub struct {
	blocks      []models.ScheduleBlock
	departments []string
	roster      []models.DepartmentTeacher
	listErr     error
	replaceErr  error
	replaced    [][]models.ScheduleBlock
	filters     []models.ScheduleFilter
	rosterCalls int
}

func (s *scheduleStoreStub) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleBlock, error) {
	s.filters = append(s.filters, filter)
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.ScheduleBlock
	for _, b := range s.blocks {
		if filter.TeacherID != "" && b.TeacherID != filter.TeacherID {
			continue
		}
		if filter.Term.SchoolYear != "" && (b.SchoolYear != filter.Term.SchoolYear || b.Semester != filter.Term.Semester) {
			continue
		}
		if filter.DayOfWeek > 0 && b.DayOfWeek != filter.DayOfWeek {
			continue
		}
		if filter.Department != "" && b.Department != filter.Department {
			continue
		}
		if filter.On != nil && b.SpecificDate != nil && !b.SpecificDate.Equal(*filter.On) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *scheduleStoreStub) FindByID(ctx context.Context, id string) (*models.ScheduleBlock, error) {
	for _, b := range s.blocks {
		if b.ID == id {
			copy := b
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *scheduleStoreStub) ReplaceSlots(ctx context.Context, teacherID string, term models.Term, blocks []models.ScheduleBlock) (int, error) {
	if s.replaceErr != nil {
		return 0, s.replaceErr
	}
	for i := range blocks {
		if blocks[i].ID == "" {
			blocks[i].ID = "block-new"
		}
		blocks[i].TeacherID = teacherID
		blocks[i].SchoolYear = term.SchoolYear
		blocks[i].Semester = term.Semester
	}
	s.replaced = append(s.replaced, append([]models.ScheduleBlock(nil), blocks...))
	return len(blocks), nil
}

func (s *scheduleStoreStub) Delete(ctx context.Context, id string) error {
	for i, b := range s.blocks {
		if b.ID == id {
			s.blocks = append(s.blocks[:i], s.blocks[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *scheduleStoreStub) ListDepartments(ctx context.Context) ([]string, error) {
	return s.departments, s.listErr
}

func (s *scheduleStoreStub) ListDepartmentTeachers(ctx context.Context, department string, term models.Term) ([]models.DepartmentTeacher, error) {
	s.rosterCalls++
	return s.roster, s.listErr
}

type requestStoreStub struct {
	views      map[string]*models.CoverageRequestView
	createErr  error
	approveErr error
	listErr    error
	created    []*models.CoverageRequest
	filters    []models.CoverageRequestFilter
	counts     []models.RequestStatusCount
	approvals  int
}

func newRequestStoreStub(views ...models.CoverageRequestView) *requestStoreStub {
	stub := &requestStoreStub{views: make(map[string]*models.CoverageRequestView)}
	for i := range views {
		v := views[i]
		stub.views[v.ID] = &v
	}
	return stub
}

func (s *requestStoreStub) Create(ctx context.Context, req *models.CoverageRequest) error {
	if s.createErr != nil {
		return s.createErr
	}
	if req.ID == "" {
		req.ID = "req-new"
	}
	s.created = append(s.created, req)
	s.views[req.ID] = &models.CoverageRequestView{CoverageRequest: *req}
	return nil
}

func (s *requestStoreStub) GetByID(ctx context.Context, id string) (*models.CoverageRequestView, error) {
	v, ok := s.views[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *v
	return &copy, nil
}

func (s *requestStoreStub) List(ctx context.Context, filter models.CoverageRequestFilter) ([]models.CoverageRequestView, int, error) {
	s.filters = append(s.filters, filter)
	if s.listErr != nil {
		return nil, 0, s.listErr
	}
	var out []models.CoverageRequestView
	for _, v := range s.views {
		if len(filter.Status) > 0 && !hasStatus(filter.Status, v.Status) {
			continue
		}
		if filter.TeacherID != "" && v.TeacherID != filter.TeacherID {
			continue
		}
		if filter.SubstituteID != "" && (v.SubstituteID == nil || *v.SubstituteID != filter.SubstituteID) {
			continue
		}
		if filter.Before != nil && !v.DateNeeded.Before(*filter.Before) {
			continue
		}
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (s *requestStoreStub) ListApprovedOn(ctx context.Context, date time.Time) ([]models.Commitment, error) {
	var out []models.Commitment
	for _, v := range s.views {
		if v.Status == models.RequestStatusApproved && v.DateNeeded.Equal(date) && v.SubstituteID != nil {
			out = append(out, models.Commitment{RequestID: v.ID, SubstituteID: *v.SubstituteID, DateNeeded: v.DateNeeded, Period: v.Period})
		}
	}
	return out, nil
}

func (s *requestStoreStub) Approve(ctx context.Context, params repository.ApproveParams, guard repository.CommitmentGuard) (*models.CoverageRequest, error) {
	s.approvals++
	if s.approveErr != nil {
		return nil, s.approveErr
	}
	v, ok := s.views[params.ID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if v.Status != models.RequestStatusPending {
		return nil, repository.ErrRequestNotPending
	}
	if guard != nil {
		var existing []models.Commitment
		for _, other := range s.views {
			if other.ID != v.ID && other.Status == models.RequestStatusApproved && other.SubstituteID != nil &&
				*other.SubstituteID == params.SubstituteID && other.DateNeeded.Equal(v.DateNeeded) {
				existing = append(existing, models.Commitment{RequestID: other.ID, SubstituteID: *other.SubstituteID, DateNeeded: other.DateNeeded, Period: other.Period})
			}
		}
		if err := guard(v.CoverageRequest, existing); err != nil {
			return nil, err
		}
	}
	v.Status = models.RequestStatusApproved
	v.SubstituteID = &params.SubstituteID
	v.ReviewedBy = &params.ReviewedBy
	v.ReviewedAt = &params.ReviewedAt
	approved := v.CoverageRequest
	return &approved, nil
}

func (s *requestStoreStub) Reject(ctx context.Context, id, reviewedBy string, reviewedAt time.Time) error {
	v, ok := s.views[id]
	if !ok || v.Status != models.RequestStatusPending {
		return repository.ErrRequestNotPending
	}
	v.Status = models.RequestStatusRejected
	v.ReviewedBy = &reviewedBy
	v.ReviewedAt = &reviewedAt
	return nil
}

func (s *requestStoreStub) CountByStatus(ctx context.Context, date *time.Time) ([]models.RequestStatusCount, error) {
	return s.counts, s.listErr
}

func hasStatus(statuses []models.RequestStatus, status models.RequestStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type profileStoreStub struct {
	users     map[string]*models.User
	findErr   error
	updateErr error
	teachers  int
	auditLogs []*models.AuditLog
}

func newProfileStoreStub(users ...models.User) *profileStoreStub {
	stub := &profileStoreStub{users: make(map[string]*models.User)}
	for i := range users {
		u := users[i]
		stub.users[u.ID] = &u
	}
	return stub
}

func (p *profileStoreStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if p.findErr != nil {
		return nil, p.findErr
	}
	u, ok := p.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *u
	return &copy, nil
}

func (p *profileStoreStub) ListCandidates(ctx context.Context, exclude string) ([]models.AvailabilityCandidate, error) {
	var out []models.AvailabilityCandidate
	for _, u := range p.users {
		if u.Active && u.Role == models.RoleTeacher && u.ID != exclude {
			out = append(out, models.AvailabilityCandidate{ID: u.ID, FullName: u.FullName, Email: u.Email})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FullName != out[j].FullName {
			return out[i].FullName < out[j].FullName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (p *profileStoreStub) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var out []models.User
	for _, u := range p.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, len(out), nil
}

func (p *profileStoreStub) UpdateRole(ctx context.Context, id string, role models.UserRole) error {
	if p.updateErr != nil {
		return p.updateErr
	}
	u, ok := p.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Role = role
	return nil
}

func (p *profileStoreStub) CountByRole(ctx context.Context, role models.UserRole) (int, error) {
	return p.teachers, nil
}

func (p *profileStoreStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	p.auditLogs = append(p.auditLogs, log)
	return nil
}

// faculty is the shared roster used across service tests.
func faculty() *profileStoreStub {
	return newProfileStoreStub(
		models.User{ID: "t-ana", FullName: "Ana Reyes", Email: "ana@school.test", Role: models.RoleTeacher, Active: true},
		models.User{ID: "t-ben", FullName: "Ben Cruz", Email: "ben@school.test", Role: models.RoleTeacher, Active: true},
		models.User{ID: "t-carla", FullName: "Carla Diaz", Email: "carla@school.test", Role: models.RoleTeacher, Active: true},
		models.User{ID: "t-dan", FullName: "Dan Uy", Email: "dan@school.test", Role: models.RoleTeacher, Active: false},
		models.User{ID: "t-zoe", FullName: "Zoe Lim", Email: "zoe@school.test", Role: models.RoleTeacher, Active: true},
		models.User{ID: "admin-1", FullName: "Zed Admin", Email: "admin@school.test", Role: models.RoleAdmin, Active: true},
	)
}
