// Package telemetry implements C10: OpenTelemetry-backed counters and
// histograms for every stage of the dispatch pipeline, a JSON metrics
// snapshot, and a health aggregator across the pipeline's dependencies.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/coralcommerce/dispatcher"

// Meter wraps the instruments every component records against. It is
// constructed once at startup and passed by reference, never through a
// package-level global.
type Meter struct {
	reader *sdkmetric.ManualReader

	inboundAdmitted  metric.Int64Counter
	inboundRejected  metric.Int64Counter
	queueEnqueued    metric.Int64Counter
	queueLeased      metric.Int64Counter
	queueAcked       metric.Int64Counter
	workerUtil       metric.Float64Histogram
	inferLatency     metric.Float64Histogram
	sendSuccess      metric.Int64Counter
	sendFailure      metric.Int64Counter
	followupArmed    metric.Int64Counter
	followupFired    metric.Int64Counter
	followupSkipped  metric.Int64Counter
}

// New wires a manual-reader-backed MeterProvider, registers it as the
// otel global, and creates every counter and histogram the dispatcher
// records.
func New() (*Meter, error) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	m := otel.Meter(meterName)
	t := &Meter{reader: reader}

	var err error
	if t.inboundAdmitted, err = m.Int64Counter("dispatcher.inbound.admitted"); err != nil {
		return nil, err
	}
	if t.inboundRejected, err = m.Int64Counter("dispatcher.inbound.rejected"); err != nil {
		return nil, err
	}
	if t.queueEnqueued, err = m.Int64Counter("dispatcher.queue.enqueued"); err != nil {
		return nil, err
	}
	if t.queueLeased, err = m.Int64Counter("dispatcher.queue.leased"); err != nil {
		return nil, err
	}
	if t.queueAcked, err = m.Int64Counter("dispatcher.queue.acked"); err != nil {
		return nil, err
	}
	if t.workerUtil, err = m.Float64Histogram("dispatcher.worker.utilization"); err != nil {
		return nil, err
	}
	if t.inferLatency, err = m.Float64Histogram("dispatcher.infer_reply.latency_ms"); err != nil {
		return nil, err
	}
	if t.sendSuccess, err = m.Int64Counter("dispatcher.transport.send_success"); err != nil {
		return nil, err
	}
	if t.sendFailure, err = m.Int64Counter("dispatcher.transport.send_failure"); err != nil {
		return nil, err
	}
	if t.followupArmed, err = m.Int64Counter("dispatcher.followup.armed"); err != nil {
		return nil, err
	}
	if t.followupFired, err = m.Int64Counter("dispatcher.followup.fired"); err != nil {
		return nil, err
	}
	if t.followupSkipped, err = m.Int64Counter("dispatcher.followup.skipped_by_guard"); err != nil {
		return nil, err
	}

	return t, nil
}

func (m *Meter) InboundAdmitted(ctx context.Context, priority string) {
	m.inboundAdmitted.Add(ctx, 1, metric.WithAttributes(attrString("priority", priority)))
}

func (m *Meter) InboundRejected(ctx context.Context, reason string) {
	m.inboundRejected.Add(ctx, 1, metric.WithAttributes(attrString("reason", reason)))
}

func (m *Meter) QueueEnqueued(ctx context.Context, priority string) {
	m.queueEnqueued.Add(ctx, 1, metric.WithAttributes(attrString("priority", priority)))
}

func (m *Meter) QueueLeased(ctx context.Context, priority string) {
	m.queueLeased.Add(ctx, 1, metric.WithAttributes(attrString("priority", priority)))
}

func (m *Meter) QueueAcked(ctx context.Context, priority string, ok bool) {
	m.queueAcked.Add(ctx, 1, metric.WithAttributes(attrString("priority", priority), attrBool("ok", ok)))
}

func (m *Meter) WorkerUtilization(ctx context.Context, busy, size int) {
	if size == 0 {
		return
	}
	m.workerUtil.Record(ctx, float64(busy)/float64(size))
}

func (m *Meter) InferReplyLatency(ctx context.Context, ms float64) {
	m.inferLatency.Record(ctx, ms)
}

func (m *Meter) SendResult(ctx context.Context, source string, ok bool) {
	if ok {
		m.sendSuccess.Add(ctx, 1, metric.WithAttributes(attrString("source", source)))
		return
	}
	m.sendFailure.Add(ctx, 1, metric.WithAttributes(attrString("source", source)))
}

func (m *Meter) FollowupArmed(ctx context.Context)   { m.followupArmed.Add(ctx, 1) }
func (m *Meter) FollowupFired(ctx context.Context)   { m.followupFired.Add(ctx, 1) }
func (m *Meter) FollowupSkipped(ctx context.Context, reason string) {
	m.followupSkipped.Add(ctx, 1, metric.WithAttributes(attrString("reason", reason)))
}
