package service

import (
	"context"
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/noah-isme/substitution-api/internal/models"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	v := strings.TrimSpace(value)
	return &v
}

// isUniqueViolation reports a Postgres unique_violation anywhere in err's chain.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
