package dto

import "time"

// HealthResponse is the body of the liveness and readiness probes
type HealthResponse struct {
	Status    string            `json:"status"`
	Time      string            `json:"time"`
	Uptime    string            `json:"uptime,omitempty"`
	GoVersion string            `json:"go_version,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Health statuses
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	CheckOK         = "ok"
	CheckError      = "error"
)

// ScheduleResponse is one recurring job as returned by the admin API
type ScheduleResponse struct {
	ID             string     `json:"id"`
	Type           string     `json:"type"`
	StoreID        string     `json:"store_id,omitempty"`
	Interval       string     `json:"interval"`
	NextRunAt      time.Time  `json:"next_run_at"`
	LastEnqueuedAt *time.Time `json:"last_enqueued_at,omitempty"`
}

// TriggerSyncRequest is bound from the path of a manual sync request
type TriggerSyncRequest struct {
	StoreID    string `uri:"store_id" binding:"required,uuid"`
	EntityType string `uri:"entity_type" binding:"required,oneof=orders products"`
}

// TriggerSyncResponse reports the job a manual sync was queued as
type TriggerSyncResponse struct {
	JobID  string `json:"job_id"`
	Queued bool   `json:"queued"`
}
