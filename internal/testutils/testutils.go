// Package testutils holds helpers shared by package tests.
package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aqstn/internal/logger"
)

// TestSuite bundles a quiet logger and a temp dir for one test.
type TestSuite struct {
	T       *testing.T
	Logger  logger.Logger
	LogBuf  *bytes.Buffer
	TempDir string
}

func NewTestSuite(t *testing.T) *TestSuite {
	t.Helper()
	buf := &bytes.Buffer{}
	return &TestSuite{
		T:       t,
		Logger:  logger.NewLoggerWithWriter(logger.Config{Level: logger.LevelDebug, Format: logger.FormatJSON}, buf),
		LogBuf:  buf,
		TempDir: t.TempDir(),
	}
}

func (s *TestSuite) CreateTempFile(name, content string) string {
	filePath := filepath.Join(s.TempDir, name)
	require.NoError(s.T, os.MkdirAll(filepath.Dir(filePath), 0755))
	require.NoError(s.T, os.WriteFile(filePath, []byte(content), 0644))
	return filePath
}

// HTTPTestHelper drives a gin router through httptest.
type HTTPTestHelper struct {
	Router http.Handler
	T      *testing.T
}

func NewHTTPTestHelper(t *testing.T, router http.Handler) *HTTPTestHelper {
	gin.SetMode(gin.TestMode)
	return &HTTPTestHelper{Router: router, T: t}
}

func (h *HTTPTestHelper) GET(path string, headers map[string]string) *HTTPResponse {
	return h.Request(http.MethodGet, path, nil, headers)
}

func (h *HTTPTestHelper) Request(method, path string, body interface{}, headers map[string]string) *HTTPResponse {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		require.NoError(h.T, err)
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	w := httptest.NewRecorder()
	h.Router.ServeHTTP(w, req)

	return &HTTPResponse{
		StatusCode: w.Code,
		Body:       w.Body.Bytes(),
		Headers:    w.Header(),
		t:          h.T,
	}
}

type HTTPResponse struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	t          *testing.T
}

func (r *HTTPResponse) AssertStatus(expectedStatus int) *HTTPResponse {
	assert.Equal(r.t, expectedStatus, r.StatusCode, string(r.Body))
	return r
}

func (r *HTTPResponse) AssertContains(substring string) *HTTPResponse {
	assert.Contains(r.t, string(r.Body), substring)
	return r
}

func (r *HTTPResponse) GetJSON(target interface{}) error {
	return json.Unmarshal(r.Body, target)
}

// Eventually polls condition until it holds or timeout elapses.
func Eventually(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return
		}
		select {
		case <-ctx.Done():
			t.Fatalf("Timeout waiting for condition: %s", message)
		case <-ticker.C:
		}
	}
}
