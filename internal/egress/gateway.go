// Package egress implements the outbound half of the relay: a gateway that
// frames processed audio as TLV records and transmits them over a connected
// UDP socket to the downstream host.
//
// Keyup transitions map to explicit commands. A rising edge sends a PTT start
// record before the frame's audio; a falling edge sends the audio first and
// the PTT stop record after it, so the downstream host never sees audio
// outside a keyed interval.
package egress

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/MrWong99/radiobridge/internal/config"
	"github.com/MrWong99/radiobridge/internal/observe"
	"github.com/MrWong99/radiobridge/pkg/audio"
	"github.com/MrWong99/radiobridge/pkg/tlv"
)

// Gateway owns the outbound UDP socket. It consumes processed frames, encodes
// them, and transmits the records in order. Send failures drop the frame and
// never block the pipeline beyond the configured send timeout.
type Gateway struct {
	conn        *net.UDPConn
	in          <-chan audio.Frame
	stats       *observe.EgressStats
	metrics     *observe.Metrics // nil disables latency recording
	log         *slog.Logger
	sendTimeout time.Duration

	// lastKeyup tracks the keyup state of the previous frame for edge
	// detection. Only the Run goroutine touches it.
	lastKeyup bool
}

// New connects to the configured target and returns a ready gateway.
// Resolution failures are fatal at startup; a UDP "connect" only pins the
// destination, so an unreachable host surfaces later as transmit errors.
func New(cfg config.EgressConfig, in <-chan audio.Frame, stats *observe.EgressStats, metrics *observe.Metrics, log *slog.Logger) (*Gateway, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.TargetAddr)
	if err != nil {
		return nil, fmt.Errorf("egress: resolve %q: %w", cfg.TargetAddr, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("egress: dial %q: %w", cfg.TargetAddr, err)
	}
	return &Gateway{
		conn:        conn,
		in:          in,
		stats:       stats,
		metrics:     metrics,
		log:         log.With("stage", "egress"),
		sendTimeout: cfg.SendTimeout(),
	}, nil
}

// RemoteAddr returns the pinned destination address.
func (g *Gateway) RemoteAddr() net.Addr {
	return g.conn.RemoteAddr()
}

// Close closes the socket.
func (g *Gateway) Close() error {
	return g.conn.Close()
}

// Run consumes the input channel until it closes. Cancellation of ctx marks
// the drain deadline: from then on the remaining buffered frames are counted
// and discarded instead of transmitted, so shutdown stays bounded even when
// the downstream host has stopped accepting.
//
// If the key was up when the input ended, Run sends a final PTT stop so the
// downstream host is never left keyed.
func (g *Gateway) Run(ctx context.Context) error {
	for f := range g.in {
		g.stats.Received.Add(1)

		if ctx.Err() != nil {
			g.stats.Dropped.Add(uint64(1 + audio.Drain(g.in)))
			break
		}

		g.transmit(ctx, f)
	}

	if g.lastKeyup {
		g.sendRecord(tlv.TypePTTStop, nil)
		g.stats.PTTCommands.Add(1)
		g.lastKeyup = false
	}
	return nil
}

// transmit sends the records for one frame: keyup edge commands around the
// audio in the order the downstream host expects.
func (g *Gateway) transmit(ctx context.Context, f audio.Frame) {
	edge := audio.Edge(g.lastKeyup, f.Keyup)
	g.lastKeyup = f.Keyup

	if edge == audio.EdgeRise {
		if g.sendRecord(tlv.TypePTTStart, nil) {
			g.stats.PTTCommands.Add(1)
		}
	}

	if len(f.PCM) > 0 {
		if g.sendRecord(tlv.TypePCM, f.PCM) {
			g.stats.Sent.Add(1)
			if g.metrics != nil {
				g.metrics.FrameLatency.Record(ctx, time.Since(f.ReceivedAt).Seconds())
			}
		}
	}

	if edge == audio.EdgeFall {
		if g.sendRecord(tlv.TypePTTStop, nil) {
			g.stats.PTTCommands.Add(1)
		}
	}
}

// sendRecord encodes and transmits one TLV record, reporting success. Encode
// failures indicate an upstream defect (oversized payload) and count
// separately from socket failures.
func (g *Gateway) sendRecord(typ byte, value []byte) bool {
	rec, err := tlv.Encode(typ, value)
	if err != nil {
		g.stats.EncodeErrors.Add(1)
		g.log.Warn("dropping unencodable record", "type", typ, "bytes", len(value), "err", err)
		return false
	}

	if err := g.conn.SetWriteDeadline(time.Now().Add(g.sendTimeout)); err != nil {
		g.stats.TransmitErrors.Add(1)
		g.log.Warn("set write deadline failed", "err", err)
		return false
	}
	if _, err := g.conn.Write(rec); err != nil {
		g.stats.TransmitErrors.Add(1)
		g.log.Warn("send failed, dropping record", "type", typ, "err", err)
		return false
	}
	return true
}
