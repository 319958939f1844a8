// Package metrics provides observability for the water judge service.
// It uses a plugin pattern so there is zero overhead when OpenTelemetry is
// not wired into the process.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// Recorder defines the interface for recording judge metrics. Implementations
// are either real OTEL metrics or a no-op.
type Recorder interface {
	// Attestation pipeline metrics
	RecordAttestationIssued(ctx context.Context)
	RecordAttestationRejected(ctx context.Context, reason string)
	RecordVerification(ctx context.Context, result string)

	// Analysis engine metrics
	RecordEngineLatency(ctx context.Context, duration time.Duration, success bool)
	RecordEngineFallback(ctx context.Context, reason string)
}

// NewRecorder creates a metrics recorder. It detects whether a global OTEL
// meter provider is functional and falls back to a no-op otherwise.
func NewRecorder(logger *zap.Logger) Recorder {
	meter := otel.GetMeterProvider().Meter("github.com/trufnetwork/waterjudge")

	if _, err := meter.Int64Counter("waterjudge.test"); err != nil {
		logger.Debug("OpenTelemetry not available, metrics disabled")
		return NewNoOpRecorder()
	}

	otelRecorder, err := NewOTELRecorder(meter, logger)
	if err != nil {
		logger.Warn("failed to initialize OTEL metrics, falling back to no-op", zap.Error(err))
		return NewNoOpRecorder()
	}

	logger.Info("OpenTelemetry metrics initialized")
	return otelRecorder
}
