package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	appintegration "github.com/erp/commercesync/internal/application/integration"
	"github.com/erp/commercesync/internal/domain/integration"
)

// Metric names
const (
	MetricJobDuration   = "commercesync_job_duration_seconds"
	MetricJobTotal      = "commercesync_jobs_total"
	MetricSyncLag       = "commercesync_sync_lag_seconds"
	MetricSyncRecords   = "commercesync_sync_records_total"
	MetricWebhookEvents = "commercesync_webhook_events_total"
)

// MetricsError is returned when a metrics collector cannot be built.
type MetricsError struct {
	msg string
}

func (e *MetricsError) Error() string {
	return e.msg
}

// ErrMeterNil is returned when no meter is configured.
var ErrMeterNil = &MetricsError{msg: "meter cannot be nil"}

// SyncMetricsConfig holds the dependencies of SyncMetrics.
type SyncMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// SyncMetrics records job, sync and webhook signals as OpenTelemetry
// instruments. It is the observer of both the worker pool and the
// application services.
type SyncMetrics struct {
	logger *zap.Logger

	jobDuration   *Histogram
	jobTotal      *Counter
	syncLag       *FloatGauge
	syncRecords   *Counter
	webhookEvents *Counter
}

// NewSyncMetrics creates the instruments on the given meter.
func NewSyncMetrics(cfg SyncMetricsConfig) (*SyncMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &SyncMetrics{logger: logger}
	var err error

	if m.jobDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        MetricJobDuration,
		Description: "Wall time of one job execution",
		Unit:        "s",
		Boundaries:  JobDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.jobTotal, err = NewCounter(cfg.Meter, MetricJobTotal,
		"Jobs executed by the worker pool", "{job}"); err != nil {
		return nil, err
	}
	if m.syncLag, err = NewFloatGauge(cfg.Meter, MetricSyncLag,
		"Distance between the scan start and the stored watermark", "s"); err != nil {
		return nil, err
	}
	if m.syncRecords, err = NewCounter(cfg.Meter, MetricSyncRecords,
		"Records reconciled by sync runs", "{record}"); err != nil {
		return nil, err
	}
	if m.webhookEvents, err = NewCounter(cfg.Meter, MetricWebhookEvents,
		"Webhook events by terminal status", "{event}"); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordJob records the duration and outcome of one job.
func (m *SyncMetrics) RecordJob(ctx context.Context, jobType string, d time.Duration, success bool) {
	result := ResultSuccess
	if !success {
		result = ResultFailure
	}
	m.jobDuration.RecordDuration(ctx, d, AttrJobType.String(jobType))
	m.jobTotal.Inc(ctx, AttrJobType.String(jobType), AttrResult.String(result))
}

// RecordSyncLag records the watermark lag of one store and entity type.
func (m *SyncMetrics) RecordSyncLag(ctx context.Context, storeID uuid.UUID, entityType integration.EntityType, lag time.Duration) {
	if lag < 0 {
		m.logger.Debug("Clamping negative sync lag",
			zap.String("store_id", storeID.String()),
			zap.Duration("lag", lag),
		)
		lag = 0
	}
	m.syncLag.Record(ctx, lag.Seconds(),
		AttrStoreID.String(storeID.String()),
		AttrEntityType.String(entityType.String()),
	)
}

// RecordRecords adds the number of records one sync run reconciled.
func (m *SyncMetrics) RecordRecords(ctx context.Context, entityType integration.EntityType, count int) {
	if count <= 0 {
		return
	}
	m.syncRecords.Add(ctx, int64(count), AttrEntityType.String(entityType.String()))
}

// RecordWebhookEvent counts one webhook event by topic and terminal status.
func (m *SyncMetrics) RecordWebhookEvent(ctx context.Context, topic string, status integration.WebhookStatus) {
	m.webhookEvents.Inc(ctx, AttrTopic.String(topic), AttrStatus.String(status.String()))
}

// IsMetricsError reports whether err came from building a collector.
func IsMetricsError(err error) bool {
	var me *MetricsError
	return errors.As(err, &me)
}

var _ appintegration.Observer = (*SyncMetrics)(nil)
