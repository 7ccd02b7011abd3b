package service

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/substitution-api/internal/dto"
	"github.com/noah-isme/substitution-api/internal/models"
	"github.com/noah-isme/substitution-api/internal/repository"
	appErrors "github.com/noah-isme/substitution-api/pkg/errors"
	"github.com/noah-isme/substitution-api/pkg/timetable"
)

var errSubstituteBusy = errors.New("substitute already covers an overlapping period")

type requestStore interface {
	Create(ctx context.Context, req *models.CoverageRequest) error
	GetByID(ctx context.Context, id string) (*models.CoverageRequestView, error)
	List(ctx context.Context, filter models.CoverageRequestFilter) ([]models.CoverageRequestView, int, error)
	Approve(ctx context.Context, params repository.ApproveParams, guard repository.CommitmentGuard) (*models.CoverageRequest, error)
	Reject(ctx context.Context, id, reviewedBy string, reviewedAt time.Time) error
}

type blockFinder interface {
	FindByID(ctx context.Context, id string) (*models.ScheduleBlock, error)
}

type attachmentStore interface {
	PutStream(key string, r io.Reader) (int64, error)
	Delete(key string) error
}

type requestCandidates interface {
	ForRequest(ctx context.Context, req *models.CoverageRequest, term models.Term) ([]models.AvailabilityCandidate, error)
	WholeDay() timetable.Interval
}

// AttachmentConfig limits activity worksheet uploads.
type AttachmentConfig struct {
	PublicBaseURL string
	MaxSizeBytes  int64
	AllowedMIMEs  []string
}

// RequestService drives the coverage request workflow from submission to review.
type RequestService struct {
	requests    requestStore
	blocks      blockFinder
	files       attachmentStore
	candidates  requestCandidates
	audit       auditLogger
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	attachments AttachmentConfig
	now         func() time.Time
}

// RequestServiceOption configures the service.
type RequestServiceOption func(*RequestService)

// WithRequestAttachments enables worksheet uploads.
func WithRequestAttachments(files attachmentStore, cfg AttachmentConfig) RequestServiceOption {
	return func(s *RequestService) {
		s.files = files
		s.attachments = cfg
	}
}

// WithRequestMetrics records review outcomes.
func WithRequestMetrics(metrics *MetricsService) RequestServiceOption {
	return func(s *RequestService) {
		s.metrics = metrics
	}
}

// WithRequestClock overrides the clock used for review timestamps and upload keys.
func WithRequestClock(now func() time.Time) RequestServiceOption {
	return func(s *RequestService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRequestService constructs a RequestService.
func NewRequestService(requests requestStore, blocks blockFinder, candidates requestCandidates, audit auditLogger, validate *validator.Validate, logger *zap.Logger, opts ...RequestServiceOption) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &RequestService{
		requests:   requests,
		blocks:     blocks,
		candidates: candidates,
		audit:      audit,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Submit files a pending request for the caller. When an attachment is given it is stored
// first; a failed upload aborts the submission.
func (s *RequestService) Submit(ctx context.Context, req dto.SubmitCoverageRequest, attachment *dto.Attachment, actor models.Principal) (*models.CoverageRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := time.Parse("2006-01-02", req.DateNeeded)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date_needed must be YYYY-MM-DD")
	}

	subject, period := models.WholeDaySubject, timetable.WholeDayPeriod
	if !req.WholeDay {
		block, err := s.blocks.FindByID(ctx, req.ScheduleID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule block not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load schedule block")
		}
		if block.TeacherID != actor.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "schedule block belongs to another teacher")
		}
		if block.DayOfWeek != timetable.Weekday(date) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("schedule block is held on %s, not on %s", timetable.DayName(block.DayOfWeek), date.Weekday()))
		}
		subject = block.Subject
		period = timetable.FormatPeriod(block.TimeStart, block.TimeEnd)
		if _, err := timetable.ParsePeriod(period, timetable.DefaultSchoolDay); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("schedule block times %q cannot be read", period))
		}
	}

	request := &models.CoverageRequest{
		TeacherID:       actor.ID,
		DateNeeded:      date,
		Subject:         subject,
		Period:          period,
		Status:          models.RequestStatusPending,
		Reason:          optionalString(req.Reason),
		ActivityDetails: strings.TrimSpace(req.ActivityDetails),
	}

	var uploadedKey string
	if attachment != nil && attachment.Content != nil {
		key, url, err := s.storeAttachment(actor.ID, attachment)
		if err != nil {
			return nil, err
		}
		uploadedKey = key
		request.ActivityFileURL = &url
	}

	if err := s.requests.Create(ctx, request); err != nil {
		if uploadedKey != "" {
			if delErr := s.files.Delete(uploadedKey); delErr != nil {
				s.logger.Warn("failed to remove orphaned attachment", zap.String("key", uploadedKey), zap.Error(delErr))
			}
		}
		s.logger.Error("request insert failed", zap.String("op", "create request"), zap.String("key", actor.ID+"/"+req.DateNeeded), zap.Error(err))
		return nil, appErrors.Store(err, "create request", actor.ID+"/"+req.DateNeeded)
	}

	payload, _ := json.Marshal(request)
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     models.AuditActionRequestSubmit,
		Resource:   models.AuditResourceRequest,
		ResourceID: &request.ID,
		NewValues:  payload,
	})
	return request, nil
}

func (s *RequestService) storeAttachment(teacherID string, attachment *dto.Attachment) (string, string, error) {
	if s.files == nil {
		return "", "", appErrors.Clone(appErrors.ErrUpload, "attachment storage is not configured")
	}
	if s.attachments.MaxSizeBytes > 0 && attachment.Size > s.attachments.MaxSizeBytes {
		return "", "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("attachment exceeds %d bytes", s.attachments.MaxSizeBytes))
	}

	reader := bufio.NewReaderSize(attachment.Content, 512)
	head, _ := reader.Peek(512)
	mime := http.DetectContentType(head)
	if !s.mimeAllowed(mime) {
		return "", "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("attachment type %s is not allowed", mime))
	}

	key := fmt.Sprintf("%s-%d%s", teacherID, s.now().Unix(), strings.ToLower(filepath.Ext(attachment.Filename)))
	if _, err := s.files.PutStream(key, reader); err != nil {
		s.logger.Error("attachment upload failed", zap.String("key", key), zap.Error(err))
		return "", "", appErrors.Wrap(err, appErrors.ErrUpload.Code, appErrors.ErrUpload.Status, "failed to upload activity worksheet")
	}
	return key, strings.TrimRight(s.attachments.PublicBaseURL, "/") + "/" + key, nil
}

func (s *RequestService) mimeAllowed(mime string) bool {
	if len(s.attachments.AllowedMIMEs) == 0 {
		return true
	}
	base := strings.TrimSpace(strings.SplitN(mime, ";", 2)[0])
	for _, allowed := range s.attachments.AllowedMIMEs {
		if strings.EqualFold(allowed, base) {
			return true
		}
	}
	return false
}

// Mine lists the caller's own submissions, newest first.
func (s *RequestService) Mine(ctx context.Context, actorID string, query dto.CoverageRequestQuery) ([]models.CoverageRequestView, *models.Pagination, error) {
	filter := s.filterFrom(query)
	filter.TeacherID = actorID
	filter.OrderBy = "created_desc"
	return s.list(ctx, filter)
}

// History lists substitutions the caller covered before today, newest first.
func (s *RequestService) History(ctx context.Context, actorID string, query dto.CoverageRequestQuery) ([]models.CoverageRequestView, *models.Pagination, error) {
	today := startOfDay(s.now())
	filter := s.filterFrom(query)
	filter.Status = []models.RequestStatus{models.RequestStatusApproved}
	filter.SubstituteID = actorID
	filter.Before = &today
	return s.list(ctx, filter)
}

// Substitutions lists approved requests, newest date first.
func (s *RequestService) Substitutions(ctx context.Context, query dto.CoverageRequestQuery) ([]models.CoverageRequestView, *models.Pagination, error) {
	filter := s.filterFrom(query)
	filter.Status = []models.RequestStatus{models.RequestStatusApproved}
	return s.list(ctx, filter)
}

// Queue lists requests for review (pending by default) in date order, each with its candidates.
func (s *RequestService) Queue(ctx context.Context, query dto.CoverageRequestQuery, term models.Term) ([]dto.QueueItem, *models.Pagination, error) {
	filter := s.filterFrom(query)
	if len(filter.Status) == 0 {
		filter.Status = []models.RequestStatus{models.RequestStatusPending}
	}
	filter.OrderBy = "date_asc"
	views, pagination, err := s.list(ctx, filter)
	if err != nil {
		return nil, nil, err
	}

	items := make([]dto.QueueItem, 0, len(views))
	for i := range views {
		item := dto.QueueItem{CoverageRequestView: views[i], Candidates: []models.AvailabilityCandidate{}}
		if views[i].Status == models.RequestStatusPending {
			candidates, err := s.candidates.ForRequest(ctx, &views[i].CoverageRequest, term)
			switch {
			case errors.Is(err, appErrors.ErrValidation):
				s.logger.Warn("skipping candidates for unreadable request", zap.String("request_id", views[i].ID), zap.String("period", views[i].Period), zap.Error(err))
			case err != nil:
				return nil, nil, err
			default:
				item.Candidates = candidates
			}
		}
		items = append(items, item)
	}
	return items, pagination, nil
}

// Get returns one request.
func (s *RequestService) Get(ctx context.Context, id string) (*models.CoverageRequestView, error) {
	view, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to load request")
	}
	return view, nil
}

// Approve assigns a substitute to a pending request. The substitute's timetable is checked
// against a fresh read first; the repository then re-checks approved commitments under lock
// and only transitions a request that is still pending.
func (s *RequestService) Approve(ctx context.Context, id string, req dto.ApproveCoverageRequest, reviewer models.Principal, term models.Term) (*models.CoverageRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	view, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if view.Status.Terminal() {
		s.metrics.RecordReview("approve", "conflict")
		return nil, appErrors.Clone(appErrors.ErrConflict, "request already handled")
	}
	if req.SubstituteID == view.TeacherID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a teacher cannot cover their own request")
	}

	window, err := timetable.ParsePeriod(view.Period, s.candidates.WholeDay())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "request period is malformed")
	}
	available, err := s.candidates.ForRequest(ctx, &view.CoverageRequest, term)
	if err != nil {
		return nil, err
	}
	if !containsCandidate(available, req.SubstituteID) {
		s.metrics.RecordReview("approve", "conflict")
		return nil, appErrors.Clone(appErrors.ErrConflict, "substitute is not available for this period")
	}

	guard := func(_ models.CoverageRequest, existing []models.Commitment) error {
		for _, c := range existing {
			slot, err := timetable.ParsePeriod(c.Period, s.candidates.WholeDay())
			if err != nil || slot.Overlaps(window) {
				return errSubstituteBusy
			}
		}
		return nil
	}

	reviewedAt := s.now().UTC()
	approved, err := s.requests.Approve(ctx, repository.ApproveParams{
		ID:           id,
		SubstituteID: req.SubstituteID,
		ReviewedBy:   reviewer.ID,
		ReviewedAt:   reviewedAt,
	}, guard)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		case errors.Is(err, repository.ErrRequestNotPending):
			s.metrics.RecordReview("approve", "conflict")
			return nil, appErrors.Clone(appErrors.ErrConflict, "request already handled")
		case errors.Is(err, errSubstituteBusy):
			s.metrics.RecordReview("approve", "conflict")
			return nil, appErrors.Clone(appErrors.ErrConflict, errSubstituteBusy.Error())
		}
		s.metrics.RecordReview("approve", "error")
		s.logger.Error("approval failed", zap.String("op", "approve request"), zap.String("key", id), zap.Error(err))
		return nil, appErrors.Store(err, "approve request", id)
	}
	s.metrics.RecordReview("approve", "ok")

	oldValues, _ := json.Marshal(map[string]interface{}{"status": view.Status})
	newValues, _ := json.Marshal(map[string]interface{}{"status": approved.Status, "substitute_id": req.SubstituteID})
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &reviewer.ID,
		Action:     models.AuditActionRequestApprove,
		Resource:   models.AuditResourceRequest,
		ResourceID: &approved.ID,
		OldValues:  oldValues,
		NewValues:  newValues,
	})
	return approved, nil
}

// Reject declines a pending request. Reviewed requests are immutable.
func (s *RequestService) Reject(ctx context.Context, id string, req dto.RejectCoverageRequest, reviewer models.Principal) (*models.CoverageRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	view, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if view.Status.Terminal() {
		s.metrics.RecordReview("reject", "conflict")
		return nil, appErrors.Clone(appErrors.ErrConflict, "request already handled")
	}

	reviewedAt := s.now().UTC()
	if err := s.requests.Reject(ctx, id, reviewer.ID, reviewedAt); err != nil {
		if errors.Is(err, repository.ErrRequestNotPending) {
			s.metrics.RecordReview("reject", "conflict")
			return nil, appErrors.Clone(appErrors.ErrConflict, "request already handled")
		}
		s.metrics.RecordReview("reject", "error")
		s.logger.Error("rejection failed", zap.String("op", "reject request"), zap.String("key", id), zap.Error(err))
		return nil, appErrors.Store(err, "reject request", id)
	}
	s.metrics.RecordReview("reject", "ok")

	rejected := view.CoverageRequest
	rejected.Status = models.RequestStatusRejected
	rejected.ReviewedBy = &reviewer.ID
	rejected.ReviewedAt = &reviewedAt

	newValues, _ := json.Marshal(map[string]interface{}{"status": rejected.Status, "note": req.Note})
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &reviewer.ID,
		Action:     models.AuditActionRequestReject,
		Resource:   models.AuditResourceRequest,
		ResourceID: &rejected.ID,
		NewValues:  newValues,
	})
	return &rejected, nil
}

func (s *RequestService) filterFrom(query dto.CoverageRequestQuery) models.CoverageRequestFilter {
	return models.CoverageRequestFilter{
		Status:   query.Status,
		DateFrom: query.DateFrom,
		DateTo:   query.DateTo,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
}

func (s *RequestService) list(ctx context.Context, filter models.CoverageRequestFilter) ([]models.CoverageRequestView, *models.Pagination, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	views, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to list requests")
	}
	if views == nil {
		views = []models.CoverageRequestView{}
	}
	return views, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func (s *RequestService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = "request-service"
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func containsCandidate(candidates []models.AvailabilityCandidate, id string) bool {
	for _, c := range candidates {
		if c.ID == id {
			return true
		}
	}
	return false
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
