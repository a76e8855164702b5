package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/commercesync/internal/interfaces/http/dto"
)

func okCheck(name string) HealthCheck {
	return HealthCheck{Name: name, Check: func(context.Context) error { return nil }}
}

func failingCheck(name string) HealthCheck {
	return HealthCheck{Name: name, Check: func(context.Context) error { return errors.New("connection refused") }}
}

func serveHealth(h gin.HandlerFunc) (*httptest.ResponseRecorder, dto.HealthResponse) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	h(c)

	var resp dto.HealthResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestHealthHandler_Liveness(t *testing.T) {
	h := NewHealthHandler(failingCheck("database"))

	w, resp := serveHealth(h.Liveness)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.StatusHealthy, resp.Status)
	assert.NotEmpty(t, resp.GoVersion)
	assert.NotEmpty(t, resp.Uptime)
	assert.Empty(t, resp.Checks)
}

func TestHealthHandler_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     []HealthCheck
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
		},
		{
			name:       "all healthy",
			checks:     []HealthCheck{okCheck("database"), okCheck("redis")},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": dto.CheckOK, "redis": dto.CheckOK},
		},
		{
			name:       "one failing",
			checks:     []HealthCheck{okCheck("database"), failingCheck("redis")},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": dto.CheckOK, "redis": dto.CheckError},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.checks...)

			w, resp := serveHealth(h.Readiness)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, dto.StatusHealthy, resp.Status)
			} else {
				assert.Equal(t, dto.StatusUnhealthy, resp.Status)
			}
			for name, want := range tt.wantChecks {
				assert.Equal(t, want, resp.Checks[name], name)
			}
		})
	}
}
