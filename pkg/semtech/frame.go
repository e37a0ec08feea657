// Package semtech implements the Semtech Gateway Message Protocol (GWMP)
// v2 framing used by the packet-forwarder UDP protocol: a 12-byte header
// followed by an optional, space-stripped JSON body.
package semtech

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PacketType identifies a GWMP frame.
type PacketType byte

const (
	PushData PacketType = 0x00
	PushAck  PacketType = 0x01
	PullData PacketType = 0x02
	PullResp PacketType = 0x03
	PullAck  PacketType = 0x04
	TxAck    PacketType = 0x05
)

func (t PacketType) String() string {
	switch t {
	case PushData:
		return "PUSH_DATA"
	case PushAck:
		return "PUSH_ACK"
	case PullData:
		return "PULL_DATA"
	case PullResp:
		return "PULL_RESP"
	case PullAck:
		return "PULL_ACK"
	case TxAck:
		return "TX_ACK"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", byte(t))
	}
}

// ProtocolVersion is the only GWMP version this codec speaks.
const ProtocolVersion byte = 0x02

// HeaderLength is the fixed portion of every GWMP frame: version(1) +
// token(2) + type(1) + gateway_id(8).
const HeaderLength = 12

// GatewayID is the 8-byte gateway identifier carried in every frame.
type GatewayID [8]byte

func (g GatewayID) String() string {
	return fmt.Sprintf("%x", [8]byte(g))
}

// Frame is a decoded GWMP header plus its raw (still-JSON) body.
type Frame struct {
	Version   byte
	Token     [2]byte
	Type      PacketType
	GatewayID GatewayID
	Body      []byte
}

// ErrMalformedFrame is returned for frames shorter than HeaderLength.
var ErrMalformedFrame = fmt.Errorf("semtech: frame shorter than %d bytes", HeaderLength)

// Decode parses a raw UDP datagram into a Frame. It does not reject
// unrecognized packet types — callers classify and handle unknown types
// themselves (UnknownPacketType is a pipeline-level concern, not a codec
// one), since Token/GatewayID are still needed to log the rejection.
func Decode(raw []byte) (*Frame, error) {
	if len(raw) < HeaderLength {
		return nil, ErrMalformedFrame
	}
	f := &Frame{
		Version: raw[0],
		Token:   [2]byte{raw[1], raw[2]},
		Type:    PacketType(raw[3]),
	}
	copy(f.GatewayID[:], raw[4:12])
	if len(raw) > HeaderLength {
		f.Body = raw[HeaderLength:]
	}
	return f, nil
}

// EncodeHeader builds the fixed 12-byte GWMP header.
func EncodeHeader(version byte, token [2]byte, t PacketType, gatewayID GatewayID) []byte {
	buf := make([]byte, HeaderLength)
	buf[0] = version
	buf[1] = token[0]
	buf[2] = token[1]
	buf[3] = byte(t)
	copy(buf[4:12], gatewayID[:])
	return buf
}

// EncodeAck builds a PUSH_ACK or PULL_ACK: the same version and token as
// the frame being acknowledged, no body.
func EncodeAck(originalVersion byte, originalToken [2]byte, ackType PacketType, gatewayID GatewayID) []byte {
	return EncodeHeader(originalVersion, originalToken, ackType, gatewayID)
}

// EncodePullResp builds a PULL_RESP frame: header with version=2,
// type=PULL_RESP, followed by a compact (space-stripped) JSON object
// {"txpk": <txpk>}.
func EncodePullResp(token [2]byte, gatewayID GatewayID, txpk interface{}) ([]byte, error) {
	body, err := json.Marshal(struct {
		Txpk interface{} `json:"txpk"`
	}{Txpk: txpk})
	if err != nil {
		return nil, fmt.Errorf("semtech: marshal pull_resp body: %w", err)
	}
	body = stripSpaces(body)

	header := EncodeHeader(ProtocolVersion, token, PullResp, gatewayID)
	return append(header, body...), nil
}

// stripSpaces removes JSON-insignificant spaces outside of string
// literals, matching the source's `.replace(" ", "")` MTU-saving
// convention. json.Marshal never emits spaces inside string values it
// didn't receive, but a defensive literal-aware strip avoids corrupting a
// payload value that happens to contain a space.
func stripSpaces(b []byte) []byte {
	out := make([]byte, 0, len(b))
	inString := false
	escaped := false
	for _, c := range b {
		if inString {
			out = append(out, c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			out = append(out, c)
			continue
		}
		if c == ' ' {
			continue
		}
		out = append(out, c)
	}
	return out
}

// TrimTrailingJSON is a small helper for body parsing: GatewayPacket JSON
// bodies sometimes carry trailing NUL padding from fixed-size UDP buffers.
func TrimTrailingJSON(body []byte) []byte {
	return bytes.TrimRight(body, "\x00")
}
