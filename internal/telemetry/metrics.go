package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GatewayMetrics counts outbound exchange requests and nonce retries.
type GatewayMetrics struct {
	exchange     string
	requests     metric.Int64Counter
	nonceRetries metric.Int64Counter
}

// NewGatewayMetrics builds counters on the global meter provider.
func NewGatewayMetrics(exchange string) *GatewayMetrics {
	meter := otel.Meter("connector.gateway")
	gm := &GatewayMetrics{exchange: exchange}
	gm.requests, _ = meter.Int64Counter("connector_gateway_requests",
		metric.WithDescription("Exchange API requests issued by the gateway"),
		metric.WithUnit("{request}"))
	gm.nonceRetries, _ = meter.Int64Counter("connector_gateway_nonce_retries",
		metric.WithDescription("Private requests retried after a nonce conflict"),
		metric.WithUnit("{retry}"))
	return gm
}

// RecordRequest counts one request with its surface and outcome.
func (m *GatewayMetrics) RecordRequest(ctx context.Context, surface, outcome string) {
	if m == nil || m.requests == nil {
		return
	}
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("exchange", m.exchange),
		attribute.String("surface", surface),
		attribute.String("outcome", outcome),
	))
}

// RecordNonceRetry counts one nonce-conflict retry.
func (m *GatewayMetrics) RecordNonceRetry(ctx context.Context) {
	if m == nil || m.nonceRetries == nil {
		return
	}
	m.nonceRetries.Add(ctx, 1)
}

// SyncMetrics counts synchronization passes and mirrored records.
type SyncMetrics struct {
	passes  metric.Int64Counter
	records metric.Int64Counter
}

// NewSyncMetrics builds counters on the global meter provider.
func NewSyncMetrics() *SyncMetrics {
	meter := otel.Meter("connector.sync")
	sm := &SyncMetrics{}
	sm.passes, _ = meter.Int64Counter("connector_sync_passes",
		metric.WithDescription("Synchronization passes by kind and outcome"),
		metric.WithUnit("{pass}"))
	sm.records, _ = meter.Int64Counter("connector_sync_records",
		metric.WithDescription("Records inserted or updated by synchronization passes"),
		metric.WithUnit("{record}"))
	return sm
}

// RecordPass counts one synchronization pass.
func (m *SyncMetrics) RecordPass(ctx context.Context, kind, outcome string) {
	if m == nil || m.passes == nil {
		return
	}
	m.passes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

// RecordRecords counts mirrored records applied by a pass.
func (m *SyncMetrics) RecordRecords(ctx context.Context, kind string, count int) {
	if m == nil || m.records == nil || count <= 0 {
		return
	}
	m.records.Add(ctx, int64(count), metric.WithAttributes(attribute.String("kind", kind)))
}
