package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/substitution-api/pkg/jobs"
)

// JobPruneExports removes rendered exports older than their link lifetime.
const JobPruneExports = "prune_exports"

type exportPruner interface {
	Cleanup(ttl time.Duration) ([]string, error)
}

// MaintenanceWorker handles background housekeeping jobs.
type MaintenanceWorker struct {
	exports exportPruner
	logger  *zap.Logger
}

// NewMaintenanceWorker constructs the worker.
func NewMaintenanceWorker(exports exportPruner, logger *zap.Logger) *MaintenanceWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceWorker{exports: exports, logger: logger}
}

// Handle dispatches a job by type. Unknown types are logged and dropped.
func (w *MaintenanceWorker) Handle(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case JobPruneExports:
		if w.exports == nil {
			return nil
		}
		removed, err := w.exports.Cleanup(0)
		if err != nil {
			return fmt.Errorf("prune exports: %w", err)
		}
		if len(removed) > 0 {
			w.logger.Info("expired exports pruned", zap.String("job_id", job.ID), zap.Int("files", len(removed)))
		}
		return nil
	default:
		w.logger.Warn("unknown maintenance job", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
}
