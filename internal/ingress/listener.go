// Package ingress implements the inbound half of the relay: a UDP listener
// that reads USRP datagrams, decodes them, and feeds frames to the
// processing stage.
package ingress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/MrWong99/radiobridge/internal/config"
	"github.com/MrWong99/radiobridge/internal/observe"
	"github.com/MrWong99/radiobridge/pkg/audio"
	"github.com/MrWong99/radiobridge/pkg/usrp"
)

// readDeadline bounds each socket read so the loop observes cancellation
// within this interval even when no traffic arrives.
const readDeadline = 250 * time.Millisecond

// Listener owns the inbound UDP socket. It reads datagrams in a loop,
// decodes each via the USRP codec, and pushes the resulting frames onto the
// forward channel. A malformed datagram is counted and dropped; the listener
// itself only stops on cancellation or a persistent socket failure.
type Listener struct {
	conn    *net.UDPConn
	out     chan<- audio.Frame
	stats   *observe.IngressStats
	log     *slog.Logger
	readBuf int
}

// New binds the configured address and returns a ready listener. Binding
// failures are fatal at startup.
func New(cfg config.IngressConfig, out chan<- audio.Frame, stats *observe.IngressStats, log *slog.Logger) (*Listener, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("ingress: resolve %q: %w", cfg.ListenAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("ingress: bind %q: %w", cfg.ListenAddr, err)
	}
	return &Listener{
		conn:    conn,
		out:     out,
		stats:   stats,
		log:     log.With("stage", "ingress"),
		readBuf: cfg.ReadBuffer,
	}, nil
}

// LocalAddr returns the bound socket address. Used by readiness checks and
// by tests that bind port 0.
func (l *Listener) LocalAddr() net.Addr {
	return l.conn.LocalAddr()
}

// Close closes the socket, unblocking a pending read.
func (l *Listener) Close() error {
	return l.conn.Close()
}

// Run reads datagrams until ctx is cancelled or the socket fails
// persistently. A full forward channel blocks the push, slowing the accept
// rate instead of growing memory, but the push still honours cancellation.
//
// Run does not close the forward channel; the orchestrator does that once
// Run has returned.
func (l *Listener) Run(ctx context.Context) error {
	l.log.Info("listening", "addr", l.conn.LocalAddr().String())
	buf := make([]byte, l.readBuf)

	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := l.conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			return fmt.Errorf("ingress: set read deadline: %w", err)
		}

		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue // idle tick, re-check ctx
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			// Persistent socket failure: stop and signal the orchestrator.
			return fmt.Errorf("ingress: read: %w", err)
		}

		l.stats.Received.Add(1)

		pkt, err := usrp.Decode(buf[:n])
		if err != nil {
			l.stats.DecodeErrors.Add(1)
			l.log.Debug("dropping undecodable datagram", "bytes", n, "err", err)
			continue
		}

		// The decode aliases the read buffer; copy before the buffer is
		// reused by the next read.
		pcm := make([]byte, len(pkt.PCM))
		copy(pcm, pkt.PCM)

		frame := audio.Frame{
			Seq:        pkt.Seq,
			Keyup:      pkt.Keyup,
			Gain:       pkt.Gain,
			PCM:        pcm,
			ReceivedAt: time.Now(),
		}

		select {
		case l.out <- frame:
			l.stats.Forwarded.Add(1)
		case <-ctx.Done():
			return nil
		}
	}
}
