package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey struct{}

// JobFields identify the job a log entry belongs to. Zero values are omitted.
type JobFields struct {
	JobID    string
	JobType  string
	StoreID  string
	WorkerID int
}

func (f JobFields) zapFields() []zap.Field {
	fields := make([]zap.Field, 0, 4)
	if f.JobID != "" {
		fields = append(fields, zap.String("job_id", f.JobID))
	}
	if f.JobType != "" {
		fields = append(fields, zap.String("job_type", f.JobType))
	}
	if f.StoreID != "" {
		fields = append(fields, zap.String("store_id", f.StoreID))
	}
	if f.WorkerID > 0 {
		fields = append(fields, zap.Int("worker_id", f.WorkerID))
	}
	return fields
}

// WithContext attaches log to ctx
func WithContext(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, log)
}

// FromContext returns the logger attached to ctx, or fallback when there is
// none. A nil fallback yields a no-op logger.
func FromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if log, ok := ctx.Value(contextKey{}).(*zap.Logger); ok {
		return log
	}
	if fallback == nil {
		return zap.NewNop()
	}
	return fallback
}

// WithJob derives a job-scoped logger from base, correlated with the span in
// ctx when one is recording, and attaches it to the returned context.
func WithJob(ctx context.Context, base *zap.Logger, job JobFields) (context.Context, *zap.Logger) {
	log := WithTraceContext(ctx, base.With(job.zapFields()...))
	return WithContext(ctx, log), log
}

// WithTraceContext adds trace_id and span_id from the span in ctx. Without a
// valid span the logger is returned unchanged.
func WithTraceContext(ctx context.Context, log *zap.Logger) *zap.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return log
	}
	return log.With(
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	)
}
