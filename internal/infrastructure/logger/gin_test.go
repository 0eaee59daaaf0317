package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func findHTTPLog(t *testing.T, recorded *observer.ObservedLogs) observer.LoggedEntry {
	t.Helper()
	logs := recorded.FilterMessage("HTTP Request").All()
	require.Len(t, logs, 1, "HTTP Request log should exist")
	return logs[0]
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		status int
		level  zapcore.Level
	}{
		{"success", http.StatusOK, zapcore.InfoLevel},
		{"client error", http.StatusForbidden, zapcore.WarnLevel},
		{"server error", http.StatusInternalServerError, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, recorded := observer.New(zapcore.DebugLevel)

			router := gin.New()
			router.Use(GinMiddleware(zap.New(core)))
			router.GET("/webhook", func(c *gin.Context) {
				c.String(tt.status, "x")
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe", nil)
			router.ServeHTTP(w, req)

			entry := findHTTPLog(t, recorded)
			assert.Equal(t, tt.level, entry.Level)
			fields := entry.ContextMap()
			assert.Equal(t, int64(tt.status), fields["status"])
			assert.Equal(t, "/webhook", fields["path"])
			assert.Equal(t, "hub.mode=subscribe", fields["query"])
		})
	}
}

func TestGinMiddleware_RequestScopedLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.InfoLevel)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(GinRequestIDKey, "req-123")
		c.Next()
	})
	router.Use(GinMiddleware(zap.New(core)))
	router.POST("/webhook", func(c *gin.Context) {
		assert.Equal(t, "req-123", GetRequestID(c.Request.Context()))
		L(c.Request.Context()).Info("from handler")
		GetGinLogger(c).Info("from gin logger")
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", nil))

	for _, msg := range []string{"from handler", "from gin logger", "HTTP Request"} {
		logs := recorded.FilterMessage(msg).All()
		require.Len(t, logs, 1, msg)
		assert.Equal(t, "req-123", logs[0].ContextMap()["request_id"], msg)
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.ErrorLevel)

	router := gin.New()
	router.Use(Recovery(zap.New(core)))
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	logs := recorded.FilterMessage("Panic recovered").All()
	require.Len(t, logs, 1)
	assert.Equal(t, "boom", logs[0].ContextMap()["error"])
}

func TestGetGinLogger_NotSet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	logger := GetGinLogger(c)
	require.NotNil(t, logger)
	logger.Info("no-op")
}
