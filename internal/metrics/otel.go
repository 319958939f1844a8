package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// OTELRecorder implements Recorder using OpenTelemetry.
type OTELRecorder struct {
	attestationsIssued   metric.Int64Counter
	attestationsRejected metric.Int64Counter
	verifications        metric.Int64Counter

	engineLatency   metric.Float64Histogram
	engineFallbacks metric.Int64Counter

	logger *zap.Logger
}

// NewOTELRecorder creates a new OpenTelemetry metrics recorder.
func NewOTELRecorder(meter metric.Meter, logger *zap.Logger) (*OTELRecorder, error) {
	r := &OTELRecorder{logger: logger}

	var err error
	r.attestationsIssued, err = meter.Int64Counter("waterjudge.attestations.issued",
		metric.WithDescription("Number of attestation bundles issued"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	r.attestationsRejected, err = meter.Int64Counter("waterjudge.attestations.rejected",
		metric.WithDescription("Number of decisions rejected before signing"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	r.verifications, err = meter.Int64Counter("waterjudge.verifications",
		metric.WithDescription("Number of bundle verifications by result"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	r.engineLatency, err = meter.Float64Histogram("waterjudge.engine.latency",
		metric.WithDescription("Analysis engine round-trip time"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	r.engineFallbacks, err = meter.Int64Counter("waterjudge.engine.fallbacks",
		metric.WithDescription("Number of assessments served by the fallback path"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	return r, nil
}

func (r *OTELRecorder) RecordAttestationIssued(ctx context.Context) {
	r.attestationsIssued.Add(ctx, 1)
}

func (r *OTELRecorder) RecordAttestationRejected(ctx context.Context, reason string) {
	r.attestationsRejected.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)))
}

func (r *OTELRecorder) RecordVerification(ctx context.Context, result string) {
	r.verifications.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)))
}

func (r *OTELRecorder) RecordEngineLatency(ctx context.Context, duration time.Duration, success bool) {
	r.engineLatency.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.Bool("success", success)))
}

func (r *OTELRecorder) RecordEngineFallback(ctx context.Context, reason string) {
	r.engineFallbacks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)))
}
