package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// headerSize is the fixed TLV header: 2-byte tag + 2-byte length, big-endian.
const headerSize = 4

var (
	// ErrIncompleteFrame indicates fewer bytes than a TLV header.
	ErrIncompleteFrame = errors.New("protocol: incomplete frame header")
	// ErrTruncatedFrame indicates the declared payload length exceeds the
	// bytes actually present. Both decode errors are connection-fatal.
	ErrTruncatedFrame = errors.New("protocol: truncated frame payload")
)

// Frame is one TLV unit exchanged with the reader client.
type Frame struct {
	Tag     uint16
	Payload []byte
}

// Encode produces tag (2 bytes BE) || len(payload) (2 bytes BE) || payload.
// The codec itself enforces no upper bound on payload length.
func Encode(tag uint16, payload []byte) []byte {
	buf := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], tag)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(payload)))
	copy(buf[headerSize:], payload)
	return buf
}

// Decode parses a complete TLV frame from buf. Errors are structural only:
// a short header or a payload shorter than the declared length.
func Decode(buf []byte) (Frame, error) {
	if len(buf) < headerSize {
		return Frame{}, fmt.Errorf("%w: got %d bytes", ErrIncompleteFrame, len(buf))
	}
	tag := binary.BigEndian.Uint16(buf[0:2])
	length := int(binary.BigEndian.Uint16(buf[2:4]))
	if len(buf) < headerSize+length {
		return Frame{}, fmt.Errorf("%w: declared %d, have %d", ErrTruncatedFrame, length, len(buf)-headerSize)
	}
	return Frame{Tag: tag, Payload: buf[headerSize : headerSize+length]}, nil
}

// RoutingTag returns the single-byte command key the wire protocol carries at
// raw index 1. Inbound classification keys off this byte; the 2-byte tag
// field is only assembled on outbound frames. The two conventions overlap on
// the wire and must not be unified.
func RoutingTag(raw []byte) (byte, bool) {
	if len(raw) < 2 {
		return 0, false
	}
	return raw[1], true
}
