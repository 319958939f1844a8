package metrics

import (
	"context"
	"time"
)

// NoOpRecorder is a no-op implementation of Recorder.
type NoOpRecorder struct{}

// NewNoOpRecorder creates a new no-op metrics recorder.
func NewNoOpRecorder() *NoOpRecorder {
	return &NoOpRecorder{}
}

func (n *NoOpRecorder) RecordAttestationIssued(ctx context.Context) {}

func (n *NoOpRecorder) RecordAttestationRejected(ctx context.Context, reason string) {}

func (n *NoOpRecorder) RecordVerification(ctx context.Context, result string) {}

func (n *NoOpRecorder) RecordEngineLatency(ctx context.Context, duration time.Duration, success bool) {
}

func (n *NoOpRecorder) RecordEngineFallback(ctx context.Context, reason string) {}
