package observe

import "sync/atomic"

// Stage counters. Each stage owns its struct and mutates it with atomic
// increments only; the orchestrator reads them for the periodic report and
// for the OTel export deltas. Counters are created at startup and reset only
// on process restart.

// IngressStats counts the listener stage.
type IngressStats struct {
	// Received counts datagrams read from the socket.
	Received atomic.Uint64

	// DecodeErrors counts datagrams rejected by the wire codec.
	DecodeErrors atomic.Uint64

	// Forwarded counts frames pushed onto the processing channel.
	Forwarded atomic.Uint64
}

// ProcessStats counts the processing stage.
type ProcessStats struct {
	// Received counts frames consumed from the ingress channel.
	Received atomic.Uint64

	// PluginFailures counts transform invocations that returned an error and
	// were skipped.
	PluginFailures atomic.Uint64

	// Forwarded counts frames pushed onto the egress channel.
	Forwarded atomic.Uint64

	// Dropped counts frames discarded because the drain deadline expired.
	Dropped atomic.Uint64
}

// EgressStats counts the gateway stage.
type EgressStats struct {
	// Received counts frames consumed from the egress channel.
	Received atomic.Uint64

	// Sent counts PCM records transmitted downstream.
	Sent atomic.Uint64

	// TransmitErrors counts failed sends; the frame is dropped, never retried.
	TransmitErrors atomic.Uint64

	// EncodeErrors counts frames the egress codec refused. A nonzero value
	// indicates a defect upstream.
	EncodeErrors atomic.Uint64

	// Dropped counts frames discarded because the drain deadline expired.
	Dropped atomic.Uint64

	// PTTCommands counts keyup edge commands sent downstream.
	PTTCommands atomic.Uint64
}

// Stats aggregates all stage counters. One instance is created by the
// orchestrator and a section handed to each stage.
type Stats struct {
	Ingress IngressStats
	Process ProcessStats
	Egress  EgressStats
}

// Snapshot is a plain-value copy of all counters, safe to compare and diff.
type Snapshot struct {
	IngressReceived     uint64
	IngressDecodeErrors uint64
	IngressForwarded    uint64

	ProcessReceived       uint64
	ProcessPluginFailures uint64
	ProcessForwarded      uint64
	ProcessDropped        uint64

	EgressReceived       uint64
	EgressSent           uint64
	EgressTransmitErrors uint64
	EgressEncodeErrors   uint64
	EgressDropped        uint64
	EgressPTTCommands    uint64
}

// Snapshot reads every counter once. Values from different counters are not
// mutually consistent, which is acceptable for reporting.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		IngressReceived:     s.Ingress.Received.Load(),
		IngressDecodeErrors: s.Ingress.DecodeErrors.Load(),
		IngressForwarded:    s.Ingress.Forwarded.Load(),

		ProcessReceived:       s.Process.Received.Load(),
		ProcessPluginFailures: s.Process.PluginFailures.Load(),
		ProcessForwarded:      s.Process.Forwarded.Load(),
		ProcessDropped:        s.Process.Dropped.Load(),

		EgressReceived:       s.Egress.Received.Load(),
		EgressSent:           s.Egress.Sent.Load(),
		EgressTransmitErrors: s.Egress.TransmitErrors.Load(),
		EgressEncodeErrors:   s.Egress.EncodeErrors.Load(),
		EgressDropped:        s.Egress.Dropped.Load(),
		EgressPTTCommands:    s.Egress.PTTCommands.Load(),
	}
}
