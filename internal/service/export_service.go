package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/substitution-api/internal/dto"
	"github.com/noah-isme/substitution-api/internal/models"
	appErrors "github.com/noah-isme/substitution-api/pkg/errors"
	"github.com/noah-isme/substitution-api/pkg/export"
	"github.com/noah-isme/substitution-api/pkg/storage"
)

const exportPageSize = 200

type substitutionLister interface {
	List(ctx context.Context, filter models.CoverageRequestFilter) ([]models.CoverageRequestView, int, error)
}

type fileStorage interface {
	Put(key string, data []byte) (string, error)
	Open(key string) (*os.File, error)
	Prune(ttl time.Duration) ([]string, error)
}

type urlSigner interface {
	Issue(exportID, key string) (string, time.Time, error)
	Verify(token string) (storage.DownloadGrant, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportService renders the substitution schedule and hands out signed download links.
type ExportService struct {
	requests substitutionLister
	storage  fileStorage
	signer   urlSigner
	logger   *zap.Logger
	cfg      ExportConfig
	now      func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(requests substitutionLister, storage fileStorage, signer urlSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{requests: requests, storage: storage, signer: signer, logger: logger, cfg: cfg, now: time.Now}
}

var substitutionColumns = []export.Column{
	{Key: "date", Label: "Date", Weight: 1},
	{Key: "period", Label: "Period", Weight: 1.6},
	{Key: "subject", Label: "Subject", Weight: 1.6},
	{Key: "absent", Label: "Absent Teacher", Weight: 1.6},
	{Key: "substitute", Label: "Substitute", Weight: 1.6},
	{Key: "activity", Label: "Activity", Weight: 2.6},
}

// Substitutions renders approved substitutions in the requested range and stores the file.
func (s *ExportService) Substitutions(ctx context.Context, format dto.ExportFormat, query dto.CoverageRequestQuery) (*dto.ExportResponse, error) {
	if format == "" {
		format = dto.ExportFormatCSV
	}
	if format != dto.ExportFormatCSV && format != dto.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %s", format))
	}

	rows, err := s.collect(ctx, query)
	if err != nil {
		return nil, err
	}
	table := export.Table{
		Title:    "Substitution Schedule",
		Subtitle: rangeLabel(query),
		Columns:  substitutionColumns,
		Rows:     rows,
	}

	var payload []byte
	switch format {
	case dto.ExportFormatPDF:
		payload, err = export.PDF(table, s.now().UTC())
	default:
		payload, err = export.CSV(table)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	id := uuid.NewString()
	key := fmt.Sprintf("substitutions-%s-%s.%s", s.now().UTC().Format("20060102"), id, format)
	if _, err := s.storage.Put(key, payload); err != nil {
		s.logger.Error("export write failed", zap.String("op", "store export"), zap.String("key", key), zap.Error(err))
		return nil, appErrors.Store(err, "store export", key)
	}

	token, expiresAt, err := s.signer.Issue(id, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export url")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &dto.ExportResponse{
		ID:        id,
		Format:    format,
		URL:       fmt.Sprintf("%s/exports/%s", prefix, token),
		ExpiresAt: expiresAt,
		Rows:      len(rows),
	}, nil
}

// Open validates a download token and opens the stored file.
func (s *ExportService) Open(token string) (*os.File, storage.DownloadGrant, error) {
	grant, err := s.signer.Verify(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, grant, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, grant, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	file, err := s.storage.Open(grant.Key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, grant, appErrors.Clone(appErrors.ErrNotFound, "export not found")
		}
		return nil, grant, appErrors.Store(err, "open export", grant.Key)
	}
	return file, grant, nil
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.Prune(ttl)
}

func (s *ExportService) collect(ctx context.Context, query dto.CoverageRequestQuery) ([]map[string]string, error) {
	filter := models.CoverageRequestFilter{
		Status:   []models.RequestStatus{models.RequestStatusApproved},
		DateFrom: query.DateFrom,
		DateTo:   query.DateTo,
		PageSize: exportPageSize,
	}
	var rows []map[string]string
	for page := 1; ; page++ {
		filter.Page = page
		views, total, err := s.requests.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "failed to list substitutions")
		}
		for _, v := range views {
			rows = append(rows, substitutionRow(v))
		}
		if len(views) < exportPageSize || len(rows) >= total {
			break
		}
	}
	return rows, nil
}

func substitutionRow(v models.CoverageRequestView) map[string]string {
	substitute := ""
	if v.SubstituteName != nil {
		substitute = *v.SubstituteName
	}
	return map[string]string{
		"date":       v.DateNeeded.Format("2006-01-02"),
		"period":     v.Period,
		"subject":    v.Subject,
		"absent":     v.TeacherName,
		"substitute": substitute,
		"activity":   v.ActivityDetails,
	}
}

func rangeLabel(query dto.CoverageRequestQuery) string {
	switch {
	case query.DateFrom != nil && query.DateTo != nil:
		return query.DateFrom.Format("2006-01-02") + " to " + query.DateTo.Format("2006-01-02")
	case query.DateFrom != nil:
		return "From " + query.DateFrom.Format("2006-01-02")
	case query.DateTo != nil:
		return "Until " + query.DateTo.Format("2006-01-02")
	}
	return "All approved substitutions"
}
