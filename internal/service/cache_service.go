package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/substitution-api/internal/models"
	appErrors "github.com/noah-isme/substitution-api/pkg/errors"
)

const rosterKeyPrefix = "roster:"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// RosterCache keeps department rosters keyed by department and term. Availability
// never reads through it.
type RosterCache struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewRosterCache constructs the roster cache. A nil repo or enabled=false turns every call into a no-op.
func NewRosterCache(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *RosterCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterCache{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (c *RosterCache) Enabled() bool {
	return c != nil && c.enabled && c.repo != nil
}

// RosterKey renders the cache key of one department roster.
func RosterKey(department string, term models.Term) string {
	return rosterKeyPrefix + departmentSlug(department) + ":" + term.SchoolYear + ":" + term.Semester
}

// Get loads a cached roster. It reports false on a miss or when the cache is unavailable.
func (c *RosterCache) Get(ctx context.Context, department string, term models.Term) ([]models.DepartmentTeacher, bool) {
	if !c.Enabled() {
		return nil, false
	}
	key := RosterKey(department, term)
	start := time.Now()
	var roster []models.DepartmentTeacher
	err := c.repo.Get(ctx, key, &roster)
	c.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			c.logger.Warn("roster cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return roster, true
}

// Put stores a roster. Failures are logged and swallowed.
func (c *RosterCache) Put(ctx context.Context, department string, term models.Term, roster []models.DepartmentTeacher) {
	if !c.Enabled() {
		return
	}
	key := RosterKey(department, term)
	start := time.Now()
	err := c.repo.Set(ctx, key, roster, c.ttl)
	c.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		c.logger.Warn("roster cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops every cached term of the department.
func (c *RosterCache) Invalidate(ctx context.Context, department string) {
	if !c.Enabled() {
		return
	}
	pattern := rosterKeyPrefix + departmentSlug(department) + ":*"
	if err := c.repo.DeleteByPattern(ctx, pattern); err != nil {
		c.logger.Warn("roster cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
	}
}

func departmentSlug(department string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(department)), " ", "-")
}
