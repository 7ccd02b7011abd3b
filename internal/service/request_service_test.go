package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/substitution-api/internal/dto"
	"github.com/noah-isme/substitution-api/internal/models"
	"github.com/noah-isme/substitution-api/internal/repository"
	appErrors "github.com/noah-isme/substitution-api/pkg/errors"
	"github.com/noah-isme/substitution-api/pkg/timetable"
)

var pdfHeader = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")

type fileStoreStub struct {
	files   map[string][]byte
	putErr  error
	deleted []string
}

func (f *fileStoreStub) PutStream(key string, r io.Reader) (int64, error) {
	if f.putErr != nil {
		return 0, f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	if f.files == nil {
		f.files = make(map[string][]byte)
	}
	f.files[key] = data
	return int64(len(data)), nil
}

func (f *fileStoreStub) Delete(key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.files, key)
	return nil
}

type requestFixture struct {
	svc       *RequestService
	requests  *requestStoreStub
	schedules *scheduleStoreStub
	files     *fileStoreStub
	audit     *auditStub
	metrics   *MetricsService
}

var fixedNow = time.Date(2025, 6, 4, 8, 30, 0, 0, time.UTC)

func newRequestFixture(views ...models.CoverageRequestView) *requestFixture {
	schedules := &scheduleStoreStub{blocks: []models.ScheduleBlock{
		block("b-ana-mon", "t-ana", 1, "9:00 AM", "10:00 AM"),
		block("b-ben-mon", "t-ben", 1, "1:00 PM", "2:00 PM"),
	}}
	requests := newRequestStoreStub(views...)
	availability := NewAvailabilityService(schedules, requests, faculty(), requests, timetable.DefaultSchoolDay, nil)
	files := &fileStoreStub{}
	audit := &auditStub{}
	metrics := NewMetricsService()
	svc := NewRequestService(requests, schedules, availability, audit, nil, nil,
		WithRequestAttachments(files, AttachmentConfig{
			PublicBaseURL: "https://files.school.test/sub-activities/",
			MaxSizeBytes:  1024,
			AllowedMIMEs:  []string{"application/pdf", "image/png"},
		}),
		WithRequestMetrics(metrics),
		WithRequestClock(func() time.Time { return fixedNow }),
	)
	return &requestFixture{svc: svc, requests: requests, schedules: schedules, files: files, audit: audit, metrics: metrics}
}

func pending(id, teacher, date, period string) models.CoverageRequestView {
	return models.CoverageRequestView{CoverageRequest: models.CoverageRequest{
		ID: id, TeacherID: teacher, DateNeeded: day(date), Subject: "7A", Period: period, Status: models.RequestStatusPending,
	}}
}

var ana = models.Principal{ID: "t-ana", FullName: "Ana Reyes", Role: models.RoleTeacher}
var reviewer = models.Principal{ID: "admin-1", FullName: "Zed Admin", Role: models.RoleAdmin}

func TestSubmitWholeDayRequest(t *testing.T) {
	f := newRequestFixture()

	req, err := f.svc.Submit(context.Background(), dto.SubmitCoverageRequest{
		DateNeeded: "2025-06-09", WholeDay: true, Reason: " seminar ", ActivityDetails: "Worksheet p. 12",
	}, nil, ana)
	require.NoError(t, err)

	assert.Equal(t, models.WholeDaySubject, req.Subject)
	assert.Equal(t, timetable.WholeDayPeriod, req.Period)
	assert.Equal(t, models.RequestStatusPending, req.Status)
	assert.Nil(t, req.SubstituteID)
	require.NotNil(t, req.Reason)
	assert.Equal(t, "seminar", *req.Reason)
	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, models.AuditActionRequestSubmit, f.audit.logs[0].Action)
}

func TestSubmitForScheduleBlockUsesBlockPeriod(t *testing.T) {
	f := newRequestFixture()

	req, err := f.svc.Submit(context.Background(), dto.SubmitCoverageRequest{
		DateNeeded: "2025-06-09", ScheduleID: "b-ana-mon", ActivityDetails: "Quiz",
	}, nil, ana)
	require.NoError(t, err)
	assert.Equal(t, "9:00 AM - 10:00 AM", req.Period)
	assert.Equal(t, "7A", req.Subject)

	_, err = f.svc.Submit(context.Background(), dto.SubmitCoverageRequest{
		DateNeeded: "2025-06-10", ScheduleID: "b-ana-mon", ActivityDetails: "Quiz",
	}, nil, ana)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Submit(context.Background(), dto.SubmitCoverageRequest{
		DateNeeded: "2025-06-09", ScheduleID: "b-ben-mon", ActivityDetails: "Quiz",
	}, nil, ana)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestSubmitRequiresBlockOrWholeDay(t *testing.T) {
	f := newRequestFixture()

	_, err := f.svc.Submit(context.Background(), dto.SubmitCoverageRequest{DateNeeded: "2025-06-09", ActivityDetails: "Quiz"}, nil, ana)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Submit(context.Background(), dto.SubmitCoverageRequest{DateNeeded: "2025-06-09", WholeDay: true}, nil, ana)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Empty(t, f.requests.created)
}

func TestSubmitStoresAttachmentAndPersistsPublicURL(t *testing.T) {
	f := newRequestFixture()

	req, err := f.svc.Submit(context.Background(), dto.SubmitCoverageRequest{
		DateNeeded: "2025-06-09", WholeDay: true, ActivityDetails: "See worksheet",
	}, &dto.Attachment{Filename: "Worksheet.PDF", Size: int64(len(pdfHeader)), Content: bytes.NewReader(pdfHeader)}, ana)
	require.NoError(t, err)

	key := "t-ana-1749025800.pdf"
	assert.Equal(t, pdfHeader, f.files.files[key])
	require.NotNil(t, req.ActivityFileURL)
	assert.Equal(t, "https://files.school.test/sub-activities/"+key, *req.ActivityFileURL)
}

func TestSubmitAbortsWhenUploadFails(t *testing.T) {
	f := newRequestFixture()
	f.files.putErr = errors.New("bucket unavailable")

	_, err := f.svc.Submit(context.Background(), dto.SubmitCoverageRequest{
		DateNeeded: "2025-06-09", WholeDay: true, ActivityDetails: "See worksheet",
	}, &dto.Attachment{Filename: "w.pdf", Size: int64(len(pdfHeader)), Content: bytes.NewReader(pdfHeader)}, ana)

	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrUpload)
	assert.Equal(t, 502, appErrors.FromError(err).Status)
	assert.Empty(t, f.requests.created)
}

func TestSubmitRejectsDisallowedAttachment(t *testing.T) {
	f := newRequestFixture()

	_, err := f.svc.Submit(context.Background(), dto.SubmitCoverageRequest{
		DateNeeded: "2025-06-09", WholeDay: true, ActivityDetails: "See worksheet",
	}, &dto.Attachment{Filename: "notes.txt", Size: 5, Content: bytes.NewReader([]byte("hello"))}, ana)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Submit(context.Background(), dto.SubmitCoverageRequest{
		DateNeeded: "2025-06-09", WholeDay: true, ActivityDetails: "See worksheet",
	}, &dto.Attachment{Filename: "big.pdf", Size: 4096, Content: bytes.NewReader(pdfHeader)}, ana)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Empty(t, f.files.files)
}

func TestSubmitRemovesAttachmentWhenInsertFails(t *testing.T) {
	f := newRequestFixture()
	f.requests.createErr = errors.New("insert failed")

	_, err := f.svc.Submit(context.Background(), dto.SubmitCoverageRequest{
		DateNeeded: "2025-06-09", WholeDay: true, ActivityDetails: "See worksheet",
	}, &dto.Attachment{Filename: "w.pdf", Size: int64(len(pdfHeader)), Content: bytes.NewReader(pdfHeader)}, ana)

	assert.ErrorIs(t, err, appErrors.ErrStore)
	assert.Equal(t, []string{"t-ana-1749025800.pdf"}, f.files.deleted)
}

func TestApproveAssignsAvailableSubstitute(t *testing.T) {
	f := newRequestFixture(pending("r-1", "t-ana", "2025-06-09", "9:00 AM - 10:00 AM"))

	req, err := f.svc.Approve(context.Background(), "r-1", dto.ApproveCoverageRequest{SubstituteID: "t-ben"}, reviewer, activeTerm)
	require.NoError(t, err)

	assert.Equal(t, models.RequestStatusApproved, req.Status)
	require.NotNil(t, req.SubstituteID)
	assert.Equal(t, "t-ben", *req.SubstituteID)
	assert.Equal(t, "admin-1", *req.ReviewedBy)
	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, models.AuditActionRequestApprove, f.audit.logs[0].Action)
}

func TestApproveTwiceReportsConflict(t *testing.T) {
	f := newRequestFixture(pending("r-1", "t-ana", "2025-06-09", "9:00 AM - 10:00 AM"))

	_, err := f.svc.Approve(context.Background(), "r-1", dto.ApproveCoverageRequest{SubstituteID: "t-ben"}, reviewer, activeTerm)
	require.NoError(t, err)

	_, err = f.svc.Approve(context.Background(), "r-1", dto.ApproveCoverageRequest{SubstituteID: "t-carla"}, reviewer, activeTerm)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, "request already handled", appErrors.FromError(err).Message)

	_, err = f.svc.Reject(context.Background(), "r-1", dto.RejectCoverageRequest{}, reviewer)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, uint64(2), f.metrics.Snapshot().ReviewConflicts)
}

func TestApproveLosingRaceMapsToConflict(t *testing.T) {
	f := newRequestFixture(pending("r-1", "t-ana", "2025-06-09", "9:00 AM - 10:00 AM"))
	f.requests.approveErr = repository.ErrRequestNotPending

	_, err := f.svc.Approve(context.Background(), "r-1", dto.ApproveCoverageRequest{SubstituteID: "t-ben"}, reviewer, activeTerm)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, "request already handled", appErrors.FromError(err).Message)
}

func TestApproveRejectsBusySubstitute(t *testing.T) {
	f := newRequestFixture(
		pending("r-1", "t-carla", "2025-06-09", "9:00 AM - 10:00 AM"),
		pending("r-2", "t-ben", "2025-06-09", "1:00 PM - 2:00 PM"),
	)

	// Ana teaches Monday 9-10.
	_, err := f.svc.Approve(context.Background(), "r-1", dto.ApproveCoverageRequest{SubstituteID: "t-ana"}, reviewer, activeTerm)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Zero(t, f.requests.approvals)

	// Administrators are never in the substitute pool.
	_, err = f.svc.Approve(context.Background(), "r-2", dto.ApproveCoverageRequest{SubstituteID: "admin-1"}, reviewer, activeTerm)
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = f.svc.Approve(context.Background(), "r-2", dto.ApproveCoverageRequest{SubstituteID: "t-zoe"}, reviewer, activeTerm)
	require.NoError(t, err)

	whole := pending("r-3", "t-carla", "2025-06-09", timetable.WholeDayPeriod)
	f.requests.views[whole.ID] = &whole
	_, err = f.svc.Approve(context.Background(), "r-3", dto.ApproveCoverageRequest{SubstituteID: "t-zoe"}, reviewer, activeTerm)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestApproveGuardCatchesCommitmentMissedByPrecheck(t *testing.T) {
	f := newRequestFixture(pending("r-1", "t-carla", "2025-06-09", "9:00 AM - 10:00 AM"))
	f.svc.candidates = staticCandidates{candidates: []models.AvailabilityCandidate{{ID: "t-ben"}}}
	racing := approved("r-race", "t-ana", "t-ben", "2025-06-09", "9:30 AM - 10:30 AM")
	f.requests.views[racing.ID] = &racing

	_, err := f.svc.Approve(context.Background(), "r-1", dto.ApproveCoverageRequest{SubstituteID: "t-ben"}, reviewer, activeTerm)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, errSubstituteBusy.Error(), appErrors.FromError(err).Message)
	assert.Equal(t, models.RequestStatusPending, f.requests.views["r-1"].Status)
}

func TestApproveValidatesInput(t *testing.T) {
	f := newRequestFixture(pending("r-1", "t-ana", "2025-06-09", "9:00 AM - 10:00 AM"))

	_, err := f.svc.Approve(context.Background(), "r-1", dto.ApproveCoverageRequest{}, reviewer, activeTerm)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Approve(context.Background(), "r-1", dto.ApproveCoverageRequest{SubstituteID: "t-ana"}, reviewer, activeTerm)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Approve(context.Background(), "missing", dto.ApproveCoverageRequest{SubstituteID: "t-ben"}, reviewer, activeTerm)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestRejectPendingRequest(t *testing.T) {
	f := newRequestFixture(pending("r-1", "t-ana", "2025-06-09", "9:00 AM - 10:00 AM"))

	req, err := f.svc.Reject(context.Background(), "r-1", dto.RejectCoverageRequest{Note: "no coverage needed"}, reviewer)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusRejected, req.Status)
	assert.Nil(t, req.SubstituteID)
	assert.Equal(t, models.RequestStatusRejected, f.requests.views["r-1"].Status)

	_, err = f.svc.Approve(context.Background(), "r-1", dto.ApproveCoverageRequest{SubstituteID: "t-ben"}, reviewer, activeTerm)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestSubmitRejectsBlockWithUnreadableTimes(t *testing.T) {
	f := newRequestFixture()
	f.schedules.blocks = append(f.schedules.blocks, block("b-ana-late", "t-ana", 1, "5:00 PM", "6:00 AM"))

	_, err := f.svc.Submit(context.Background(), dto.SubmitCoverageRequest{
		DateNeeded: "2025-06-09", ScheduleID: "b-ana-late", ActivityDetails: "Quiz",
	}, nil, ana)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Empty(t, f.requests.created)
}

func TestQueueAnnotatesPendingRequestsWithCandidates(t *testing.T) {
	done := approved("r-0", "t-carla", "t-zoe", "2025-06-09", "1:00 PM - 2:00 PM")
	f := newRequestFixture(pending("r-1", "t-ana", "2025-06-09", "9:00 AM - 10:00 AM"), done)

	items, pagination, err := f.svc.Queue(context.Background(), dto.CoverageRequestQuery{}, activeTerm)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "r-1", items[0].ID)
	assert.Equal(t, []string{"Ben Cruz", "Carla Diaz", "Zoe Lim"}, names(items[0].Candidates))
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, "date_asc", f.requests.filters[0].OrderBy)
}

func TestQueueKeepsRequestWithUnreadablePeriod(t *testing.T) {
	f := newRequestFixture(
		pending("r-1", "t-ana", "2025-06-09", "5:00 PM - 6:00 AM"),
		pending("r-2", "t-ana", "2025-06-09", "9:00 AM - 10:00 AM"),
	)

	items, _, err := f.svc.Queue(context.Background(), dto.CoverageRequestQuery{}, activeTerm)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "r-1", items[0].ID)
	assert.NotNil(t, items[0].Candidates)
	assert.Empty(t, items[0].Candidates)
	assert.Equal(t, []string{"Ben Cruz", "Carla Diaz", "Zoe Lim"}, names(items[1].Candidates))
}

func TestHistoryListsPastCoverageOfCaller(t *testing.T) {
	past := approved("r-past", "t-carla", "t-ana", "2025-06-02", "9:00 AM - 10:00 AM")
	future := approved("r-future", "t-carla", "t-ana", "2025-06-09", "9:00 AM - 10:00 AM")
	other := approved("r-other", "t-carla", "t-ben", "2025-06-02", "9:00 AM - 10:00 AM")
	f := newRequestFixture(past, future, other)

	items, _, err := f.svc.History(context.Background(), "t-ana", dto.CoverageRequestQuery{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "r-past", items[0].ID)
	require.NotNil(t, f.requests.filters[0].Before)
	assert.Equal(t, "2025-06-04", f.requests.filters[0].Before.Format("2006-01-02"))
}

func TestMineListsOwnSubmissions(t *testing.T) {
	f := newRequestFixture(pending("r-1", "t-ana", "2025-06-09", "9:00 AM - 10:00 AM"), pending("r-2", "t-ben", "2025-06-09", "1:00 PM - 2:00 PM"))

	items, _, err := f.svc.Mine(context.Background(), "t-ana", dto.CoverageRequestQuery{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "r-1", items[0].ID)
}

type staticCandidates struct {
	candidates []models.AvailabilityCandidate
}

func (s staticCandidates) ForRequest(ctx context.Context, req *models.CoverageRequest, term models.Term) ([]models.AvailabilityCandidate, error) {
	return s.candidates, nil
}

func (s staticCandidates) WholeDay() timetable.Interval { return timetable.DefaultSchoolDay }
