// Package bridge assembles the three relay stages into a supervised pipeline
// and owns its lifecycle.
//
// The Bridge creates the two bounded channels, starts the listener, the
// processor and the gateway, and coordinates shutdown: cancelling the run
// context stops the listener, the channel close chain flushes the buffered
// frames downstream, and a drain timer bounds the flush so shutdown always
// completes within the configured timeout.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/radiobridge/internal/config"
	"github.com/MrWong99/radiobridge/internal/dsp"
	"github.com/MrWong99/radiobridge/internal/egress"
	"github.com/MrWong99/radiobridge/internal/ingress"
	"github.com/MrWong99/radiobridge/internal/observe"
	"github.com/MrWong99/radiobridge/internal/plugin"
	"github.com/MrWong99/radiobridge/pkg/audio"
)

// tracerName is the instrumentation scope for the lifecycle spans.
const tracerName = "github.com/MrWong99/radiobridge"

// Bridge wires the relay stages together. Construct with [New], run with
// [Run]; a Bridge is single-use.
type Bridge struct {
	cfg *config.Config
	log *slog.Logger

	listener  *ingress.Listener
	processor *dsp.Processor
	gateway   *egress.Gateway

	// chA carries decoded frames from the listener to the processor, chB
	// processed frames from the processor to the gateway. Both are bounded;
	// a full channel blocks the producer, which is the backpressure model.
	chA chan audio.Frame
	chB chan audio.Frame

	stats   *observe.Stats
	metrics *observe.Metrics // nil disables OTel export

	state atomic.Int32
}

// New binds both sockets and wires the stages. The returned Bridge has not
// started any goroutine yet; call [Bridge.Run].
func New(cfg *config.Config, chain *plugin.Chain, metrics *observe.Metrics, log *slog.Logger) (*Bridge, error) {
	b := &Bridge{
		cfg:     cfg,
		log:     log.With("component", "bridge"),
		chA:     make(chan audio.Frame, cfg.Pipeline.ChannelDepth),
		chB:     make(chan audio.Frame, cfg.Pipeline.ChannelDepth),
		stats:   &observe.Stats{},
		metrics: metrics,
	}

	var err error
	if b.listener, err = ingress.New(cfg.Ingress, b.chA, &b.stats.Ingress, log); err != nil {
		return nil, err
	}
	if b.gateway, err = egress.New(cfg.Egress, b.chB, &b.stats.Egress, metrics, log); err != nil {
		b.listener.Close()
		return nil, err
	}
	b.processor = dsp.New(cfg, chain, b.chA, b.chB, &b.stats.Process, log)

	return b, nil
}

// State returns the current lifecycle state.
func (b *Bridge) State() State {
	return State(b.state.Load())
}

// Stats returns a point-in-time copy of all stage counters.
func (b *Bridge) Stats() observe.Snapshot {
	return b.stats.Snapshot()
}

// IngressAddr returns the bound inbound socket address.
func (b *Bridge) IngressAddr() net.Addr {
	return b.listener.LocalAddr()
}

// Ready reports whether the relay is accepting traffic. Used as a readiness
// check.
func (b *Bridge) Ready(context.Context) error {
	if s := b.State(); s != StateRunning {
		return fmt.Errorf("relay is %s", s)
	}
	return nil
}

// Run starts the stages and blocks until the pipeline has stopped. Cancelling
// ctx initiates the drain: the listener stops accepting, buffered frames are
// flushed downstream, and after the drain timeout any remainder is counted
// and discarded. Run returns the first stage error, or nil on a clean stop.
func (b *Bridge) Run(ctx context.Context) error {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "relay.run")
	defer span.End()

	defer b.listener.Close()
	defer b.gateway.Close()

	// drainCtx outlives ctx: it expires only when the drain timer fires, so
	// the processor and gateway can keep flushing after the run context ends.
	drainCtx, cancelDrain := context.WithCancel(context.Background())
	defer cancelDrain()

	g, runCtx := errgroup.WithContext(ctx)

	// flushed closes when the gateway returns, i.e. the pipeline is empty.
	flushed := make(chan struct{})
	go func() {
		<-runCtx.Done()
		if b.State() == StateRunning {
			b.state.Store(int32(StateDraining))
			span.AddEvent("draining")
			b.log.Info("draining pipeline", "timeout", b.cfg.Pipeline.DrainTimeout().String())
		}
		select {
		case <-time.After(b.cfg.Pipeline.DrainTimeout()):
			cancelDrain()
		case <-flushed:
		}
	}()

	// Stage goroutines. Each close feeds the next stage's range loop, so the
	// pipeline empties front to back.
	g.Go(func() error {
		defer close(b.chA)
		return b.listener.Run(runCtx)
	})
	g.Go(func() error {
		defer close(b.chB)
		return b.processor.Run(drainCtx)
	})
	g.Go(func() error {
		defer close(flushed)
		return b.gateway.Run(drainCtx)
	})
	g.Go(func() error {
		b.report(runCtx)
		return nil
	})

	b.state.Store(int32(StateRunning))
	span.AddEvent("running")
	b.log.Info("relay running",
		"ingress", b.listener.LocalAddr().String(),
		"egress", b.gateway.RemoteAddr().String(),
		"channel_depth", b.cfg.Pipeline.ChannelDepth)

	err := g.Wait()
	b.state.Store(int32(StateStopped))

	final := b.stats.Snapshot()
	span.AddEvent("stopped", trace.WithAttributes(
		attribute.Int64("frames.sent", int64(final.EgressSent)),
		attribute.Int64("frames.dropped", int64(final.ProcessDropped+final.EgressDropped)),
	))
	b.logSnapshot("relay stopped", final)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// report logs the aggregated counters periodically and exports deltas to the
// OTel instruments. A zero interval disables the loop.
func (b *Bridge) report(ctx context.Context) {
	interval := b.cfg.Pipeline.StatsInterval()
	if interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prev := b.stats.Snapshot()
	for {
		select {
		case <-ctx.Done():
			// Export the tail so the final counters land in the instruments.
			b.export(context.WithoutCancel(ctx), prev)
			return
		case <-ticker.C:
			cur := b.stats.Snapshot()
			b.logSnapshot("relay stats", cur)
			b.export(ctx, prev)
			prev = cur
		}
	}
}

// export sends counter deltas since prev and the current channel fill levels
// to the OTel instruments.
func (b *Bridge) export(ctx context.Context, prev observe.Snapshot) {
	if b.metrics == nil {
		return
	}
	cur := b.stats.Snapshot()
	b.metrics.ExportDelta(ctx, prev, cur)
	b.metrics.ChannelOccupancy.Record(ctx, int64(len(b.chA)), observe.Channel("ingress"))
	b.metrics.ChannelOccupancy.Record(ctx, int64(len(b.chB)), observe.Channel("egress"))
}

// logSnapshot writes one aggregated counter line.
func (b *Bridge) logSnapshot(msg string, s observe.Snapshot) {
	b.log.Info(msg,
		"state", b.State().String(),
		"chan_ingress", len(b.chA),
		"chan_egress", len(b.chB),
		"received", s.IngressReceived,
		"decode_errors", s.IngressDecodeErrors,
		"processed", s.ProcessForwarded,
		"plugin_failures", s.ProcessPluginFailures,
		"sent", s.EgressSent,
		"transmit_errors", s.EgressTransmitErrors,
		"ptt_commands", s.EgressPTTCommands,
		"dropped", s.ProcessDropped+s.EgressDropped,
	)
}
