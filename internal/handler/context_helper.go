package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/substitution-api/internal/dto"
	"github.com/noah-isme/substitution-api/internal/middleware"
	"github.com/noah-isme/substitution-api/internal/models"
	appErrors "github.com/noah-isme/substitution-api/pkg/errors"
)

const (
	headerSchoolYear = "X-School-Year"
	headerSemester   = "X-Semester"
	dateLayout       = "2006-01-02"
)

func principalFromContext(c *gin.Context) *models.Principal {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		return nil
	}
	return principal
}

// resolveTerm reads year/semester from the query string, then the term headers, then falls back.
func resolveTerm(c *gin.Context, fallback models.Term) models.Term {
	term := models.Term{
		SchoolYear: strings.TrimSpace(c.Query("year")),
		Semester:   strings.TrimSpace(c.Query("semester")),
	}
	if term.SchoolYear == "" {
		term.SchoolYear = strings.TrimSpace(c.GetHeader(headerSchoolYear))
	}
	if term.Semester == "" {
		term.Semester = strings.TrimSpace(c.GetHeader(headerSemester))
	}
	return term.Or(fallback)
}

func parseDate(value string) (time.Time, error) {
	date, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}
	return date, nil
}

// dateQuery parses an optional date query parameter, defaulting to today (UTC).
func dateQuery(c *gin.Context, key string) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return parseDate(raw)
}

func optionalDate(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	date, err := parseDate(raw)
	if err != nil {
		return nil, err
	}
	return &date, nil
}

// requestQuery binds the shared listing filters of coverage request endpoints.
func requestQuery(c *gin.Context) (dto.CoverageRequestQuery, error) {
	var query dto.CoverageRequestQuery
	for _, raw := range c.QueryArray("status") {
		for _, part := range strings.Split(raw, ",") {
			status := models.RequestStatus(strings.ToLower(strings.TrimSpace(part)))
			if status == "" {
				continue
			}
			if !status.Valid() {
				return query, appErrors.Clone(appErrors.ErrValidation, "unknown status "+string(status))
			}
			query.Status = append(query.Status, status)
		}
	}
	var err error
	if query.DateFrom, err = optionalDate(c, "from"); err != nil {
		return query, err
	}
	if query.DateTo, err = optionalDate(c, "to"); err != nil {
		return query, err
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		query.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "50")); err == nil {
		query.PageSize = size
	}
	return query, nil
}
