package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/substitution-api/internal/models"
	appErrors "github.com/noah-isme/substitution-api/pkg/errors"
	"github.com/noah-isme/substitution-api/pkg/logger"
)

type tokenTable map[string]*models.Principal

func (t tokenTable) Authenticate(ctx context.Context, token string) (*models.Principal, error) {
	if p, ok := t[token]; ok {
		return p, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

var principals = tokenTable{
	"admin-token":   {ID: "admin-1", Role: models.RoleAdmin},
	"teacher-token": {ID: "t-ana", Role: models.RoleTeacher},
}

func guardedRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	chain := append([]gin.HandlerFunc{JWT(principals)}, handlers...)
	chain = append(chain, func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(logger.ActorKey))
	})
	router.GET("/profiles/:id", chain...)
	return router
}

func call(router *gin.Engine, path, authorization string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestJWTRejectsMissingOrMalformedHeader(t *testing.T) {
	router := guardedRouter()

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer unknown"} {
		if got := call(router, "/profiles/x", header).Code; got != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, got)
		}
	}
}

func TestJWTStoresPrincipalAndActor(t *testing.T) {
	router := guardedRouter()

	recorder := call(router, "/profiles/x", "bearer teacher-token")
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	if recorder.Body.String() != "t-ana" {
		t.Fatalf("unexpected actor: %s", recorder.Body.String())
	}
}

func TestRBACAllowsRoleOrSelf(t *testing.T) {
	router := guardedRouter(RBAC(string(models.RoleAdmin), "SELF"))

	cases := []struct {
		path   string
		token  string
		status int
	}{
		{"/profiles/t-ben", "Bearer admin-token", http.StatusOK},
		{"/profiles/t-ana", "Bearer teacher-token", http.StatusOK},
		{"/profiles/t-ben", "Bearer teacher-token", http.StatusForbidden},
	}
	for _, tc := range cases {
		if got := call(router, tc.path, tc.token).Code; got != tc.status {
			t.Fatalf("%s with %s: expected %d, got %d", tc.path, tc.token, tc.status, got)
		}
	}
}

func TestRBACWithoutPrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	if got := call(router, "/", "").Code; got != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", got)
	}
}

type observation struct {
	method string
	path   string
	status int
}

type observerSpy struct{ seen []observation }

func (o *observerSpy) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.seen = append(o.seen, observation{method, path, status})
}

func TestMetricsLabelsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	spy := &observerSpy{}
	router := gin.New()
	router.Use(Metrics(spy))
	router.GET("/requests/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	call(router, "/requests/abc", "")
	call(router, "/nowhere", "")

	if len(spy.seen) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(spy.seen))
	}
	if spy.seen[0] != (observation{http.MethodGet, "/requests/:id", http.StatusNoContent}) {
		t.Fatalf("unexpected observation: %+v", spy.seen[0])
	}
	if spy.seen[1].path != "unmatched" || spy.seen[1].status != http.StatusNotFound {
		t.Fatalf("unexpected observation: %+v", spy.seen[1])
	}
}

type auditSpy struct{ logs []*models.AuditLog }

func (a *auditSpy) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func TestAuditSkipsFailedRequests(t *testing.T) {
	spy := &auditSpy{}
	router := guardedRouter(Audit(spy, "EXPORT_CREATE", "exports"))

	call(router, "/profiles/x", "Bearer admin-token")
	call(router, "/profiles/x", "Bearer nope")

	if len(spy.logs) != 1 {
		t.Fatalf("expected 1 audit log, got %d", len(spy.logs))
	}
	if spy.logs[0].UserID == nil || *spy.logs[0].UserID != "admin-1" {
		t.Fatalf("unexpected audit user: %v", spy.logs[0].UserID)
	}
}

func TestResponseMetaCarriesCacheFlag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var meta map[string]interface{}
	router := gin.New()
	router.Use(WithResponseMeta())
	router.GET("/", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ResponseMeta(c)
		c.Status(http.StatusOK)
	})

	call(router, "/", "")

	if meta[cacheHitMetaName] != true {
		t.Fatalf("expected cache hit flag, got %v", meta)
	}
	if _, ok := meta["processing_time_ms"]; !ok {
		t.Fatalf("expected processing time in meta")
	}
}
