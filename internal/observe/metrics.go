// Package observe provides observability primitives for the relay:
// OpenTelemetry metric instruments, the SDK provider setup with a Prometheus
// exporter bridge, and the atomic per-stage statistics counters the pipeline
// stages mutate directly.
//
// The stages never talk to OTel themselves except for the latency histogram;
// the orchestrator's reporting loop exports counter deltas each tick so the
// hot path stays at one atomic add per event.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all relay metrics.
const meterName = "github.com/MrWong99/radiobridge"

// Stage attribute values used on frame counters.
const (
	StageIngress = "ingress"
	StageProcess = "process"
	StageEgress  = "egress"
)

// Metrics holds all OpenTelemetry metric instruments for the relay.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// FramesReceived counts frames entering a stage. Use with
	// attribute.String("stage", ...).
	FramesReceived metric.Int64Counter

	// FramesForwarded counts frames a stage handed to the next hop.
	FramesForwarded metric.Int64Counter

	// FramesDropped counts frames discarded (drain expiry, encode defects).
	FramesDropped metric.Int64Counter

	// DecodeErrors counts ingress datagrams rejected by the wire codec.
	DecodeErrors metric.Int64Counter

	// TransmitErrors counts failed egress sends.
	TransmitErrors metric.Int64Counter

	// PluginFailures counts skipped transform invocations.
	PluginFailures metric.Int64Counter

	// PTTCommands counts keyup edge commands sent downstream.
	PTTCommands metric.Int64Counter

	// FrameLatency tracks ingress-to-egress latency per forwarded frame.
	FrameLatency metric.Float64Histogram

	// ChannelOccupancy records the fill level of an inter-stage channel at
	// report time. Use with attribute.String("channel", "ingress"|"egress").
	ChannelOccupancy metric.Int64Gauge
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// a relay that buffers at most a few tens of milliseconds end to end.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesReceived, err = m.Int64Counter("radiobridge.frames.received",
		metric.WithDescription("Frames entering a pipeline stage, by stage."),
	); err != nil {
		return nil, err
	}
	if met.FramesForwarded, err = m.Int64Counter("radiobridge.frames.forwarded",
		metric.WithDescription("Frames handed to the next pipeline hop, by stage."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("radiobridge.frames.dropped",
		metric.WithDescription("Frames discarded, by stage."),
	); err != nil {
		return nil, err
	}
	if met.DecodeErrors, err = m.Int64Counter("radiobridge.decode.errors",
		metric.WithDescription("Ingress datagrams rejected by the wire codec."),
	); err != nil {
		return nil, err
	}
	if met.TransmitErrors, err = m.Int64Counter("radiobridge.transmit.errors",
		metric.WithDescription("Failed egress sends; the frame is dropped."),
	); err != nil {
		return nil, err
	}
	if met.PluginFailures, err = m.Int64Counter("radiobridge.plugin.failures",
		metric.WithDescription("Transform invocations skipped due to an error."),
	); err != nil {
		return nil, err
	}
	if met.PTTCommands, err = m.Int64Counter("radiobridge.ptt.commands",
		metric.WithDescription("Keyup edge commands sent to the downstream gateway."),
	); err != nil {
		return nil, err
	}
	if met.FrameLatency, err = m.Float64Histogram("radiobridge.frame.latency",
		metric.WithDescription("Ingress-to-egress latency per forwarded frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ChannelOccupancy, err = m.Int64Gauge("radiobridge.channel.occupancy",
		metric.WithDescription("Inter-stage channel fill level at report time."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Stage returns the stage attribute set for counter adds.
func Stage(name string) metric.AddOption {
	return metric.WithAttributes(attribute.String("stage", name))
}

// Channel returns the channel attribute set for occupancy records.
func Channel(name string) metric.RecordOption {
	return metric.WithAttributes(attribute.String("channel", name))
}

// ExportDelta adds the difference between two snapshots to the OTel counters.
// Called by the orchestrator's reporting loop; prev must be the snapshot from
// the previous tick.
func (m *Metrics) ExportDelta(ctx context.Context, prev, cur Snapshot) {
	add := func(c metric.Int64Counter, delta uint64, opts ...metric.AddOption) {
		if delta > 0 {
			c.Add(ctx, int64(delta), opts...)
		}
	}

	add(m.FramesReceived, cur.IngressReceived-prev.IngressReceived, Stage(StageIngress))
	add(m.FramesReceived, cur.ProcessReceived-prev.ProcessReceived, Stage(StageProcess))
	add(m.FramesReceived, cur.EgressReceived-prev.EgressReceived, Stage(StageEgress))

	add(m.FramesForwarded, cur.IngressForwarded-prev.IngressForwarded, Stage(StageIngress))
	add(m.FramesForwarded, cur.ProcessForwarded-prev.ProcessForwarded, Stage(StageProcess))
	add(m.FramesForwarded, cur.EgressSent-prev.EgressSent, Stage(StageEgress))

	add(m.FramesDropped, cur.ProcessDropped-prev.ProcessDropped, Stage(StageProcess))
	add(m.FramesDropped, (cur.EgressDropped+cur.EgressEncodeErrors)-(prev.EgressDropped+prev.EgressEncodeErrors), Stage(StageEgress))

	add(m.DecodeErrors, cur.IngressDecodeErrors-prev.IngressDecodeErrors)
	add(m.TransmitErrors, cur.EgressTransmitErrors-prev.EgressTransmitErrors)
	add(m.PluginFailures, cur.ProcessPluginFailures-prev.ProcessPluginFailures)
	add(m.PTTCommands, cur.EgressPTTCommands-prev.EgressPTTCommands)
}
