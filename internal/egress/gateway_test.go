package egress

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/MrWong99/radiobridge/internal/config"
	"github.com/MrWong99/radiobridge/internal/observe"
	"github.com/MrWong99/radiobridge/pkg/audio"
	"github.com/MrWong99/radiobridge/pkg/tlv"
)

// fakeHost is a UDP socket standing in for the downstream gateway. It decodes
// every received datagram as a TLV record.
type fakeHost struct {
	conn *net.UDPConn
	recs chan tlv.Record
}

func newFakeHost(t *testing.T) *fakeHost {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("bind fake host: %v", err)
	}
	h := &fakeHost{conn: conn, recs: make(chan tlv.Record, 64)}
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 65536)
		for {
			n, _, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			rec, err := tlv.Decode(buf[:n])
			if err != nil {
				continue
			}
			value := make([]byte, len(rec.Value))
			copy(value, rec.Value)
			h.recs <- tlv.Record{Type: rec.Type, Value: value}
		}
	}()
	return h
}

func (h *fakeHost) addr() string { return h.conn.LocalAddr().String() }

func (h *fakeHost) next(t *testing.T) tlv.Record {
	t.Helper()
	select {
	case rec := <-h.recs:
		return rec
	case <-time.After(5 * time.Second):
		t.Fatal("no record received")
		return tlv.Record{}
	}
}

func (h *fakeHost) expectNone(t *testing.T) {
	t.Helper()
	select {
	case rec := <-h.recs:
		t.Fatalf("unexpected record type %#x", rec.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func newTestGateway(t *testing.T, host *fakeHost, in chan audio.Frame) (*Gateway, *observe.EgressStats) {
	t.Helper()
	stats := &observe.EgressStats{}
	g, err := New(config.EgressConfig{
		TargetAddr:    host.addr(),
		SendTimeoutMs: 250,
	}, in, stats, nil, slog.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { g.Close() })
	return g, stats
}

// runGateway feeds frames through a gateway and waits for it to stop.
func runGateway(t *testing.T, g *Gateway, in chan audio.Frame, frames ...audio.Frame) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- g.Run(context.Background()) }()

	for _, f := range frames {
		in <- f
	}
	close(in)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not stop after input close")
	}
}

func TestGatewaySendsPCMRecords(t *testing.T) {
	host := newFakeHost(t)
	in := make(chan audio.Frame, 4)
	g, stats := newTestGateway(t, host, in)

	pcm := []byte{1, 2, 3, 4}
	runGateway(t, g, in, audio.Frame{Seq: 1, PCM: pcm, ReceivedAt: time.Now()})

	rec := host.next(t)
	if rec.Type != tlv.TypePCM {
		t.Errorf("Type = %#x, want TypePCM", rec.Type)
	}
	if string(rec.Value) != string(pcm) {
		t.Errorf("Value = %v, want %v", rec.Value, pcm)
	}
	if stats.Sent.Load() != 1 {
		t.Errorf("Sent = %d, want 1", stats.Sent.Load())
	}
}

func TestGatewayKeyupRiseSendsPTTStartFirst(t *testing.T) {
	host := newFakeHost(t)
	in := make(chan audio.Frame, 4)
	g, stats := newTestGateway(t, host, in)

	runGateway(t, g, in,
		audio.Frame{Seq: 1, Keyup: true, PCM: []byte{1, 2}},
		audio.Frame{Seq: 2, Keyup: true, PCM: []byte{3, 4}})

	if rec := host.next(t); rec.Type != tlv.TypePTTStart {
		t.Fatalf("first record type = %#x, want PTT start", rec.Type)
	}
	if rec := host.next(t); rec.Type != tlv.TypePCM {
		t.Fatalf("second record type = %#x, want PCM", rec.Type)
	}
	// No edge on the second frame, just its audio.
	if rec := host.next(t); rec.Type != tlv.TypePCM {
		t.Fatalf("third record type = %#x, want PCM", rec.Type)
	}
	// PTT stop arrives at shutdown since the key was still up.
	if rec := host.next(t); rec.Type != tlv.TypePTTStop {
		t.Fatalf("fourth record type = %#x, want PTT stop", rec.Type)
	}
	if stats.PTTCommands.Load() != 2 {
		t.Errorf("PTTCommands = %d, want 2", stats.PTTCommands.Load())
	}
}

func TestGatewayKeyupFallSendsAudioBeforePTTStop(t *testing.T) {
	host := newFakeHost(t)
	in := make(chan audio.Frame, 4)
	g, _ := newTestGateway(t, host, in)

	runGateway(t, g, in,
		audio.Frame{Seq: 1, Keyup: true, PCM: []byte{1, 2}},
		audio.Frame{Seq: 2, Keyup: false, PCM: []byte{3, 4}})

	want := []byte{tlv.TypePTTStart, tlv.TypePCM, tlv.TypePCM, tlv.TypePTTStop}
	for i, w := range want {
		if rec := host.next(t); rec.Type != w {
			t.Fatalf("record %d type = %#x, want %#x", i, rec.Type, w)
		}
	}
	host.expectNone(t)
}

func TestGatewayEmptyFrameCarriesEdgeOnly(t *testing.T) {
	host := newFakeHost(t)
	in := make(chan audio.Frame, 4)
	g, _ := newTestGateway(t, host, in)

	// Keyup falls on a frame with no audio: only the stop command goes out.
	runGateway(t, g, in,
		audio.Frame{Seq: 1, Keyup: true, PCM: []byte{1, 2}},
		audio.Frame{Seq: 2, Keyup: false})

	want := []byte{tlv.TypePTTStart, tlv.TypePCM, tlv.TypePTTStop}
	for i, w := range want {
		if rec := host.next(t); rec.Type != w {
			t.Fatalf("record %d type = %#x, want %#x", i, rec.Type, w)
		}
	}
	host.expectNone(t)
}

func TestGatewayOversizePayloadCountsEncodeError(t *testing.T) {
	host := newFakeHost(t)
	in := make(chan audio.Frame, 4)
	g, stats := newTestGateway(t, host, in)

	runGateway(t, g, in, audio.Frame{Seq: 1, PCM: make([]byte, tlv.MaxValueLen+1)})

	if stats.EncodeErrors.Load() != 1 {
		t.Errorf("EncodeErrors = %d, want 1", stats.EncodeErrors.Load())
	}
	if stats.Sent.Load() != 0 {
		t.Errorf("Sent = %d, want 0", stats.Sent.Load())
	}
	host.expectNone(t)
}

func TestGatewayDiscardsAfterDrainExpiry(t *testing.T) {
	host := newFakeHost(t)
	in := make(chan audio.Frame, 8)
	g, stats := newTestGateway(t, host, in)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // drain deadline already expired

	for i := range 5 {
		in <- audio.Frame{Seq: uint32(i), PCM: []byte{1, 2}}
	}
	close(in)

	if err := g.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Dropped.Load() != 5 {
		t.Errorf("Dropped = %d, want 5", stats.Dropped.Load())
	}
	if stats.Sent.Load() != 0 {
		t.Errorf("Sent = %d, want 0", stats.Sent.Load())
	}
}

func TestGatewayPreservesPayloadOrder(t *testing.T) {
	host := newFakeHost(t)
	in := make(chan audio.Frame, 32)
	g, _ := newTestGateway(t, host, in)

	frames := make([]audio.Frame, 20)
	for i := range frames {
		frames[i] = audio.Frame{Seq: uint32(i), PCM: []byte{byte(i)}}
	}
	runGateway(t, g, in, frames...)

	for i := range frames {
		rec := host.next(t)
		if rec.Type != tlv.TypePCM {
			t.Fatalf("record %d type = %#x, want PCM", i, rec.Type)
		}
		if rec.Value[0] != byte(i) {
			t.Fatalf("record %d payload = %d, order not preserved", i, rec.Value[0])
		}
	}
}
