// internal/middleware/logging_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLoggerEmitsStructuredLine(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hook := logrustest.NewGlobal()
	defer hook.Reset()

	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	entries := hook.AllEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Request processed", entries[0].Message)
	assert.Equal(t, "GET", entries[0].Data["method"])
	assert.Equal(t, "/health", entries[0].Data["path"])
	assert.Equal(t, http.StatusOK, entries[0].Data["status"])
}
