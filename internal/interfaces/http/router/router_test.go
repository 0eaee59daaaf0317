package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dilly/tablebot/internal/application/bot"
	"github.com/dilly/tablebot/internal/interfaces/http/handler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingDispatcher struct {
	messages []bot.IncomingMessage
}

func (d *recordingDispatcher) Dispatch(_ context.Context, msg bot.IncomingMessage) error {
	d.messages = append(d.messages, msg)
	return nil
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "/", r.basePath)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithBasePath("/bot"))
	assert.Equal(t, "/bot", r.basePath)
}

func setupServer(t *testing.T, log *zap.Logger, dispatcher *recordingDispatcher, outputDir string) *gin.Engine {
	t.Helper()

	engine, err := NewEngine(EngineConfig{Logger: log, ServiceName: "tablebot"})
	require.NoError(t, err)

	NewRouter(engine).
		Register(WebhookRoutes{
			Handler:     handler.NewWebhookHandler(dispatcher, nil, handler.WebhookConfig{VerifyToken: "tok"}),
			MaxBodySize: 4096,
		}).
		Register(SystemRoutes{Handler: handler.NewSystemHandler("tablebot", "")}).
		Register(ArtifactRoutes{Dir: outputDir}).
		Setup()
	return engine
}

func TestServerRoutes(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	dispatcher := &recordingDispatcher{}
	outputDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outputDir, "output.png"), []byte("png-bytes"), 0644))

	engine := setupServer(t, zap.New(core), dispatcher, outputDir)

	t.Run("health", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"OK"`)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("webhook verification", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=tok&hub.challenge=42", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "42", w.Body.String())
	})

	t.Run("webhook notification", func(t *testing.T) {
		body := `{"object":"whatsapp_business_account","entry":[{"changes":[{"field":"messages","value":{"messages":[{"id":"wamid.9","from":"3361","type":"text","text":{"body":"hi"}}]}}]}]}`
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))

		assert.Equal(t, http.StatusOK, w.Code)
		require.Len(t, dispatcher.messages, 1)
		assert.Equal(t, "hi", dispatcher.messages[0].Text)
	})

	t.Run("webhook body limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(strings.Repeat("x", 5000))))

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("serves artifacts", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/output/output.png", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "png-bytes", w.Body.String())
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	})

	t.Run("requests are logged with request id", func(t *testing.T) {
		entries := logs.FilterMessage("HTTP Request").All()
		require.NotEmpty(t, entries)
		assert.Contains(t, entries[0].ContextMap(), "request_id")
	})
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	engine, err := NewEngine(EngineConfig{Logger: zap.New(core)})
	require.NoError(t, err)
	engine.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}
