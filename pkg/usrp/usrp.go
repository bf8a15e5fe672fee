// Package usrp implements the ingress wire format: USRP-framed PCM datagrams
// as emitted by SIP media gateways.
//
// Every datagram starts with a fixed 32-byte header followed by a
// variable-length PCM payload (16-bit signed little-endian mono samples).
// All multi-byte header fields are little-endian:
//
//	offset  size  field
//	0       4     magic "USRP"
//	4       4     sequence (uint32)
//	8       4     keyup (uint32, nonzero = transmission active)
//	12      4     gain (float32 multiplier)
//	16      4     payload length in bytes (uint32)
//	20      12    reserved, zero on encode, ignored on decode
//
// The layout is pinned to the protocol the peer gateway speaks; changing any
// field width or order breaks interoperability silently.
package usrp

import (
	"encoding/binary"
	"math"
)

// HeaderSize is the fixed byte length of the USRP header.
const HeaderSize = 32

// Magic is the eye value opening every USRP datagram. Traffic that does not
// start with it is rejected without further parsing.
var Magic = [4]byte{'U', 'S', 'R', 'P'}

// Packet is one decoded USRP datagram.
type Packet struct {
	// Seq is the sender's monotonically increasing frame counter.
	Seq uint32

	// Keyup reports whether the sender's transmission is active.
	Keyup bool

	// Gain is the multiplier the sender requests for this audio.
	Gain float32

	// PCM is the audio payload. It aliases the datagram buffer passed to
	// [Decode]; callers that reuse read buffers must copy it first.
	PCM []byte
}

// Decode parses one datagram. It returns [ErrMalformedHeader] when the
// datagram is shorter than the header or the magic does not match, and
// [ErrTruncatedPayload] when the declared payload length exceeds the bytes
// actually received. Both are per-datagram conditions; the caller drops the
// datagram and keeps reading.
func Decode(datagram []byte) (Packet, error) {
	if len(datagram) < HeaderSize {
		return Packet{}, ErrMalformedHeader
	}
	if [4]byte(datagram[0:4]) != Magic {
		return Packet{}, ErrMalformedHeader
	}

	seq := binary.LittleEndian.Uint32(datagram[4:8])
	keyup := binary.LittleEndian.Uint32(datagram[8:12]) != 0
	gain := math.Float32frombits(binary.LittleEndian.Uint32(datagram[12:16]))
	payloadLen := binary.LittleEndian.Uint32(datagram[16:20])

	if int64(payloadLen) > int64(len(datagram)-HeaderSize) {
		return Packet{}, ErrTruncatedPayload
	}

	return Packet{
		Seq:   seq,
		Keyup: keyup,
		Gain:  gain,
		PCM:   datagram[HeaderSize : HeaderSize+int(payloadLen)],
	}, nil
}

// Encode serialises p into a fresh datagram buffer. Encoding cannot fail for
// a well-formed in-memory packet.
func Encode(p Packet) []byte {
	buf := make([]byte, HeaderSize+len(p.PCM))
	copy(buf[0:4], Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], p.Seq)
	if p.Keyup {
		binary.LittleEndian.PutUint32(buf[8:12], 1)
	}
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(p.Gain))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(p.PCM)))
	copy(buf[HeaderSize:], p.PCM)
	return buf
}
