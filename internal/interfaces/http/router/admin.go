package router

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/erp/commercesync/internal/infrastructure/logger"
	"github.com/erp/commercesync/internal/interfaces/http/handler"
	"github.com/erp/commercesync/internal/interfaces/http/middleware"
)

// AdminDeps are the collaborators of the admin HTTP surface
type AdminDeps struct {
	Logger         *zap.Logger
	ServiceName    string
	TracingEnabled bool
	TracerProvider trace.TracerProvider

	Schedules handler.ScheduleService
	Stores    handler.StoreFinder
	Checks    []handler.HealthCheck
	// Metrics serves the Prometheus scrape endpoint; nil disables /metrics
	Metrics http.Handler
}

// NewAdminEngine builds the gin engine of the admin surface:
//
//	GET  /healthz
//	GET  /readyz
//	GET  /metrics
//	GET  /api/v1/schedules
//	POST /api/v1/stores/:store_id/sync/:entity_type
func NewAdminEngine(deps AdminDeps) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName:    deps.ServiceName,
		Enabled:        deps.TracingEnabled,
		TracerProvider: deps.TracerProvider,
	}))
	engine.Use(middleware.SpanAttributes())
	engine.Use(logger.GinMiddleware(log, "/healthz", "/readyz", "/metrics"))
	engine.Use(middleware.Secure())

	health := handler.NewHealthHandler(deps.Checks...)
	engine.GET("/healthz", health.Liveness)
	engine.GET("/readyz", health.Readiness)
	if deps.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	schedules := handler.NewScheduleHandler(deps.Schedules, deps.Stores)
	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Register(NewDomainGroup("schedules", "/schedules").
		GET("", schedules.ListSchedules))
	r.Register(NewDomainGroup("stores", "/stores").
		POST("/:store_id/sync/:entity_type", schedules.TriggerSync))
	r.Setup()

	return engine
}

// AdminServer runs the admin engine on its own listener
type AdminServer struct {
	srv    *http.Server
	logger *zap.Logger
	errCh  chan error
}

// NewAdminServer wraps an engine in an http.Server
func NewAdminServer(addr string, engine http.Handler, readTimeout, writeTimeout time.Duration, logger *zap.Logger) *AdminServer {
	return &AdminServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: readTimeout,
			WriteTimeout:      writeTimeout,
		},
		logger: logger,
		errCh:  make(chan error, 1),
	}
}

// Start serves in the background. A listen failure is delivered on Err.
func (s *AdminServer) Start() {
	go func() {
		s.logger.Info("Admin server starting", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errCh <- err
		}
		close(s.errCh)
	}()
}

// Err reports a listen failure
func (s *AdminServer) Err() <-chan error {
	return s.errCh
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *AdminServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
