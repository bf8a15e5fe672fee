// Package audio provides the frame type flowing through the relay pipeline
// and the PCM sample math shared by its stages: saturating gain, RMS level
// estimation, dB conversions, and a linear-interpolation mono resampler.
//
// All PCM in this package is 16-bit signed little-endian mono unless a
// function says otherwise.
package audio

import "time"

// Frame is the unit of audio flowing through the pipeline: one datagram's
// worth of PCM plus the protocol metadata that travels with it.
//
// Frames are immutable after creation. A stage that changes the payload must
// derive a new frame with [Frame.WithPCM]; the sequence, keyup state, and
// gain are carried over verbatim. Ownership transfers fully on every channel
// send; no stage may touch a frame after forwarding it.
type Frame struct {
	// Seq is the source-assigned sequence counter. It is used to detect gaps
	// and reordering in diagnostics; the pipeline itself preserves arrival
	// order and never reorders by Seq.
	Seq uint32

	// Keyup reports whether the originating transmission is active. A
	// true→false transition marks end-of-transmission and must reach the
	// egress side even when PCM is empty.
	Keyup bool

	// Gain is the multiplier carried by the source. Whether it takes
	// precedence over the configured gain is a configuration decision.
	Gain float32

	// PCM is the payload: 16-bit signed little-endian mono samples. Length
	// is not guaranteed constant across frames.
	PCM []byte

	// ReceivedAt is captured at ingress and used only for latency
	// statistics, never for ordering.
	ReceivedAt time.Time
}

// WithPCM returns a copy of f carrying pcm as its payload. All metadata
// fields are preserved. The caller must not alias pcm with a buffer it will
// mutate afterwards.
func (f Frame) WithPCM(pcm []byte) Frame {
	f.PCM = pcm
	return f
}

// KeyupEdge describes a keyup transition between two consecutive frames.
type KeyupEdge int

const (
	// EdgeNone means the keyup state did not change.
	EdgeNone KeyupEdge = iota

	// EdgeRise means keyup went false→true (transmission started).
	EdgeRise

	// EdgeFall means keyup went true→false (transmission ended).
	EdgeFall
)

// Edge returns the keyup transition from prev to cur.
func Edge(prev, cur bool) KeyupEdge {
	switch {
	case !prev && cur:
		return EdgeRise
	case prev && !cur:
		return EdgeFall
	default:
		return EdgeNone
	}
}
