package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/commercesync/internal/infrastructure/logger"
	"github.com/erp/commercesync/internal/interfaces/http/dto"
)

// readinessTimeout bounds each dependency check
const readinessTimeout = 2 * time.Second

// HealthCheck probes one dependency
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes
type HealthHandler struct {
	BaseHandler
	startTime time.Time
	checks    []HealthCheck
}

// NewHealthHandler creates a HealthHandler. Readiness fails when any check fails.
func NewHealthHandler(checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		checks:    checks,
	}
}

// Liveness reports that the process is serving requests
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:    dto.StatusHealthy,
		Time:      time.Now().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		GoVersion: runtime.Version(),
	})
}

// Readiness runs every dependency check and reports 503 if one fails
func (h *HealthHandler) Readiness(c *gin.Context) {
	reqLog := logger.GetGinLogger(c)
	resp := dto.HealthResponse{
		Status: dto.StatusHealthy,
		Time:   time.Now().Format(time.RFC3339),
		Checks: make(map[string]string, len(h.checks)),
	}

	for _, hc := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		err := hc.Check(ctx)
		cancel()
		if err != nil {
			reqLog.Warn("Readiness check failed", zap.String("check", hc.Name), zap.Error(err))
			resp.Status = dto.StatusUnhealthy
			resp.Checks[hc.Name] = dto.CheckError
			continue
		}
		resp.Checks[hc.Name] = dto.CheckOK
	}

	status := http.StatusOK
	if resp.Status != dto.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
