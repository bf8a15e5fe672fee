// Package tlv implements the egress wire format: type-length-value records
// as consumed by the downstream digital-radio host gateway.
//
// A record is a 1-byte type tag, a little-endian uint16 value length, and the
// value itself. PCM audio passes through unchanged as type [TypePCM]; keyup
// transitions map to the empty [TypePTTStart] and [TypePTTStop] commands.
package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Record types understood by the downstream gateway.
const (
	// TypePCM wraps raw 16-bit little-endian mono PCM samples.
	TypePCM byte = 0x00

	// TypeAMBE wraps vocoder frames. The relay never produces it; it is
	// recognised so received records can be classified in tests and logs.
	TypeAMBE byte = 0x01

	// TypePTTStart asks the gateway to key the transmitter. Empty value.
	TypePTTStart byte = 0x05

	// TypePTTStop asks the gateway to unkey the transmitter. Empty value.
	TypePTTStop byte = 0x06
)

// headerSize is the type tag plus the length field.
const headerSize = 3

// MaxValueLen is the largest value a record can carry, bounded by the
// uint16 length field.
const MaxValueLen = 0xFFFF

// ErrShortRecord reports a buffer too small to hold a complete record.
var ErrShortRecord = errors.New("tlv: short record")

// Record is one decoded type-length-value record.
type Record struct {
	Type  byte
	Value []byte
}

// Encode serialises one record. It fails only when value exceeds
// [MaxValueLen]; upstream treats that as a defect, not a runtime condition,
// since pipeline frames are a single UDP datagram's payload.
func Encode(typ byte, value []byte) ([]byte, error) {
	if len(value) > MaxValueLen {
		return nil, fmt.Errorf("tlv: value length %d exceeds %d", len(value), MaxValueLen)
	}
	buf := make([]byte, headerSize+len(value))
	buf[0] = typ
	binary.LittleEndian.PutUint16(buf[1:3], uint16(len(value)))
	copy(buf[headerSize:], value)
	return buf, nil
}

// Decode parses the record at the start of data. It returns [ErrShortRecord]
// when data is smaller than the header or than the declared value length.
func Decode(data []byte) (Record, error) {
	if len(data) < headerSize {
		return Record{}, ErrShortRecord
	}
	length := int(binary.LittleEndian.Uint16(data[1:3]))
	if len(data) < headerSize+length {
		return Record{}, ErrShortRecord
	}
	return Record{
		Type:  data[0],
		Value: data[headerSize : headerSize+length],
	}, nil
}
