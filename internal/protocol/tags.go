package protocol

// Inbound command tags, matched against the routing byte at raw index 1.
const (
	TagStatusRequest byte = 91
	TagATRRequest    byte = 87
	TagCommandAPDU   byte = 89
	TagAckA          byte = 83 // acknowledged no-op, no response
	TagAckB          byte = 81 // acknowledged no-op, no response
	TagReset         byte = 85 // ignored, no backend reset is triggered
)

// Outbound response tags. Status responses reuse the inbound tag value.
const (
	TagStatusResponse uint16 = 91
	TagATRResponse    uint16 = 88
	TagAPDUResponse   uint16 = 90
)

// Fixed protocol payloads. Status and ATR are static reader constants, not
// computed from backend state.
var (
	StatusPayload = []byte{0x55, 0x55, 0x55, 0x55}
	ATRPayload    = []byte{0x3F, 0x95, 0x13, 0x81, 0x01, 0x80, 0x73, 0xFF, 0x01, 0x00, 0x0B}

	// UnknownTagResponse is sent verbatim for any unrecognized command tag.
	UnknownTagResponse = []byte{0x00, 0x02, 0x6D, 0x82}
)

// Kind names a command class for logging, metrics and event publishing.
func Kind(tag byte) string {
	switch tag {
	case TagStatusRequest:
		return "STATUS"
	case TagATRRequest:
		return "ATR"
	case TagCommandAPDU:
		return "APDU"
	case TagAckA, TagAckB:
		return "ACK"
	case TagReset:
		return "RESET"
	default:
		return "UNKNOWN"
	}
}
