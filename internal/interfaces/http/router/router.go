// Package router wires the webhook server routes and middleware.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dilly/tablebot/internal/infrastructure/logger"
	"github.com/dilly/tablebot/internal/interfaces/http/handler"
	"github.com/dilly/tablebot/internal/interfaces/http/middleware"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	basePath   string
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithBasePath mounts every registrar under a path prefix (default: root)
func WithBasePath(path string) RouterOption {
	return func(r *Router) {
		r.basePath = path
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		basePath:   "/",
		registrars: make([]RouteRegistrar, 0),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	group := r.engine.Group(r.basePath)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(group)
	}
}

// EngineConfig configures the gin engine and its global middleware
type EngineConfig struct {
	Logger         *zap.Logger
	ServiceName    string
	TracingEnabled bool
	TrustedProxies []string
}

// NewEngine creates a gin engine with request ID, logging, recovery,
// security headers and tracing middleware installed
func NewEngine(cfg EngineConfig) (*gin.Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(cfg.Logger))
	engine.Use(logger.Recovery(cfg.Logger))
	engine.Use(middleware.Secure())
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.ServiceName,
		Enabled:     cfg.TracingEnabled,
	}))
	engine.Use(middleware.TracingAttributeInjector())
	engine.Use(middleware.SpanErrorMarker())

	return engine, nil
}

// WebhookRoutes registers GET and POST /webhook
type WebhookRoutes struct {
	Handler *handler.WebhookHandler
	// MaxBodySize bounds POST bodies before they are read (default: 1 MiB)
	MaxBodySize int64
}

// RegisterRoutes implements RouteRegistrar
func (w WebhookRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	limit := w.MaxBodySize
	if limit <= 0 {
		limit = handler.DefaultMaxWebhookPayload
	}
	rg.GET("/webhook", w.Handler.Verify)
	rg.POST("/webhook", middleware.BodyLimit(limit), w.Handler.Receive)
}

// SystemRoutes registers /health and /system/info
type SystemRoutes struct {
	Handler *handler.SystemHandler
}

// RegisterRoutes implements RouteRegistrar
func (s SystemRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", s.Handler.Health)
	rg.GET("/system/info", s.Handler.GetSystemInfo)
}

// ArtifactRoutes serves rendered artifacts from a directory
type ArtifactRoutes struct {
	// Route is the URL prefix (default: /output)
	Route string
	Dir   string
}

// RegisterRoutes implements RouteRegistrar
func (a ArtifactRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	route := a.Route
	if route == "" {
		route = "/output"
	}
	rg.Static(route, a.Dir)
}
