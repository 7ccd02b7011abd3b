package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/substitution-api/internal/middleware"
	"github.com/noah-isme/substitution-api/internal/models"
)

var (
	activeTerm  = models.Term{SchoolYear: "2025-2026", Semester: "1st Semester"}
	adminCaller = &models.Principal{ID: "admin-1", FullName: "Zed Admin", Role: models.RoleAdmin}
	teacherAna  = &models.Principal{ID: "t-ana", FullName: "Ana Reyes", Role: models.RoleTeacher}
)

type responseEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Error map[string]interface{} `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func newGinContext(method, path string, body io.Reader, principal *models.Principal) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	if principal != nil {
		c.Set(middleware.ContextPrincipalKey, principal)
	}
	return c, w
}

type formFile struct {
	field    string
	filename string
	content  []byte
}

func multipartBody(t *testing.T, values map[string][]string, files ...formFile) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, list := range values {
		for _, v := range list {
			require.NoError(t, writer.WriteField(key, v))
		}
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func decode(t *testing.T, w *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	code, _ := decode(t, w).Error["code"].(string)
	return code
}

func ginParam(key, value string) gin.Param {
	return gin.Param{Key: key, Value: value}
}
