package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ProtocolVersion is the version byte carried by every packet header.
const ProtocolVersion = 1

// HeaderSize is the fixed size of a packet header in bytes:
// version (1), packet type (1), payload length (2, big-endian).
const HeaderSize = 4

// PacketType identifies a packet on the wire.
type PacketType byte

const (
	PacketTypeHeartbeat PacketType = 1
	PacketTypeLogin     PacketType = 2
	PacketTypeMessage   PacketType = 3
	PacketTypeResponse  PacketType = 4
	PacketTypeLogout    PacketType = 5
)

func (t PacketType) String() string {
	switch t {
	case PacketTypeHeartbeat:
		return "HEARTBEAT"
	case PacketTypeLogin:
		return "LOGIN"
	case PacketTypeMessage:
		return "MESSAGE"
	case PacketTypeResponse:
		return "RESPONSE"
	case PacketTypeLogout:
		return "LOGOUT"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", byte(t))
	}
}

// ResponseCode is the single-byte status carried by a RESPONSE packet.
type ResponseCode byte

const (
	ResponseOK              ResponseCode = 0
	ResponseInvalidUsername ResponseCode = 1
	ResponseTakenUsername   ResponseCode = 2
	ResponseInvalidMessage  ResponseCode = 3
	ResponseWrongPassword   ResponseCode = 4
	ResponseGenericError    ResponseCode = 5
)

// Packet is a typed wire message. Each variant declares its type tag and how
// to marshal its payload; maximum payload sizes live in the packetSpecs table.
type Packet interface {
	Type() PacketType
	MarshalPayload() []byte
}

// HeartbeatPacket is a zero-payload liveness ping from the client.
type HeartbeatPacket struct{}

func (*HeartbeatPacket) Type() PacketType       { return PacketTypeHeartbeat }
func (*HeartbeatPacket) MarshalPayload() []byte { return nil }

// LoginPacket carries the username and server password of a login attempt.
// An empty Password means "no password".
type LoginPacket struct {
	Username string
	Password string
}

func (*LoginPacket) Type() PacketType { return PacketTypeLogin }

func (p *LoginPacket) MarshalPayload() []byte {
	return []byte(p.Username + "|" + p.Password)
}

// MessagePacket carries a chat message. An empty Username marks a system
// message originated by the server.
type MessagePacket struct {
	Username string
	Message  string
}

func (*MessagePacket) Type() PacketType { return PacketTypeMessage }

func (p *MessagePacket) MarshalPayload() []byte {
	return []byte(p.Username + "|" + p.Message)
}

// IsSystem reports whether the message originates from the server itself.
func (p *MessagePacket) IsSystem() bool { return p.Username == "" }

// ResponsePacket carries a single-byte status code answering the most recent
// request on the connection.
type ResponsePacket struct {
	Code ResponseCode
}

func (*ResponsePacket) Type() PacketType { return PacketTypeResponse }

func (p *ResponsePacket) MarshalPayload() []byte { return []byte{byte(p.Code)} }

// LogoutPacket is a zero-payload graceful disconnect from the client.
type LogoutPacket struct{}

func (*LogoutPacket) Type() PacketType       { return PacketTypeLogout }
func (*LogoutPacket) MarshalPayload() []byte { return nil }

// packetSpec describes one packet type: its payload cap and how to
// reconstruct the typed packet from raw payload bytes.
type packetSpec struct {
	maxPayload  int
	fromPayload func(payload []byte) (Packet, error)
}

var packetSpecs = map[PacketType]packetSpec{
	PacketTypeHeartbeat: {
		maxPayload:  0,
		fromPayload: func([]byte) (Packet, error) { return &HeartbeatPacket{}, nil },
	},
	PacketTypeLogin: {
		maxPayload:  256,
		fromPayload: loginFromPayload,
	},
	PacketTypeMessage: {
		maxPayload:  4096,
		fromPayload: messageFromPayload,
	},
	PacketTypeResponse: {
		maxPayload:  1,
		fromPayload: responseFromPayload,
	},
	PacketTypeLogout: {
		maxPayload:  0,
		fromPayload: func([]byte) (Packet, error) { return &LogoutPacket{}, nil },
	},
}

func loginFromPayload(payload []byte) (Packet, error) {
	username, password, found := strings.Cut(string(payload), "|")
	if !found {
		return nil, &InvalidPayloadError{Reason: "could not unpack the username and the server password from the payload"}
	}
	return &LoginPacket{Username: username, Password: password}, nil
}

func messageFromPayload(payload []byte) (Packet, error) {
	username, message, found := strings.Cut(string(payload), "|")
	if !found {
		return nil, &InvalidPayloadError{Reason: "could not unpack the username and message from the payload"}
	}
	return &MessagePacket{Username: username, Message: message}, nil
}

func responseFromPayload(payload []byte) (Packet, error) {
	if len(payload) != 1 {
		return nil, &InvalidPayloadError{Reason: "a response packet requires exactly one payload byte"}
	}
	code := ResponseCode(payload[0])
	if code > ResponseGenericError {
		return nil, &InvalidPayloadError{Reason: fmt.Sprintf("unknown response code: %d", code)}
	}
	return &ResponsePacket{Code: code}, nil
}

// MaxPayload returns the maximum payload length allowed for a packet type.
func MaxPayload(t PacketType) (int, bool) {
	spec, ok := packetSpecs[t]
	if !ok {
		return 0, false
	}
	return spec.maxPayload, true
}

// Serialize encodes a packet into its wire form: header followed by payload.
func Serialize(p Packet) ([]byte, error) {
	spec, ok := packetSpecs[p.Type()]
	if !ok {
		return nil, &UnknownPacketError{Tag: byte(p.Type())}
	}

	payload := p.MarshalPayload()
	if len(payload) > spec.maxPayload {
		return nil, &InvalidPayloadError{
			Reason: fmt.Sprintf("payload exceeds max length for %s: expected at most %dB, got %dB",
				p.Type(), spec.maxPayload, len(payload)),
		}
	}

	data := make([]byte, HeaderSize+len(payload))
	data[0] = ProtocolVersion
	data[1] = byte(p.Type())
	binary.BigEndian.PutUint16(data[2:4], uint16(len(payload)))
	copy(data[HeaderSize:], payload)

	return data, nil
}

// DecodeHeader unpacks the first packet header from a byte sequence, which
// need not contain the whole packet. It returns the packet type and the
// declared payload length.
func DecodeHeader(data []byte) (PacketType, int, error) {
	if len(data) < HeaderSize {
		return 0, 0, fmt.Errorf("%w: expected at least %dB, got %dB", ErrIncompleteHeader, HeaderSize, len(data))
	}

	packetType := PacketType(data[1])
	if _, ok := packetSpecs[packetType]; !ok {
		return 0, 0, &UnknownPacketError{Tag: data[1]}
	}

	payloadLength := int(binary.BigEndian.Uint16(data[2:4]))
	return packetType, payloadLength, nil
}

// FromPayload reconstructs a typed packet of the given type from raw payload
// bytes, enforcing the per-type payload cap.
func FromPayload(t PacketType, payload []byte) (Packet, error) {
	spec, ok := packetSpecs[t]
	if !ok {
		return nil, &UnknownPacketError{Tag: byte(t)}
	}
	if len(payload) > spec.maxPayload {
		return nil, &InvalidPayloadError{
			Reason: fmt.Sprintf("payload exceeds max length for %s: expected at most %dB, got %dB",
				t, spec.maxPayload, len(payload)),
		}
	}

	packet, err := spec.fromPayload(payload)
	if err != nil {
		var invalid *InvalidPayloadError
		if errors.As(err, &invalid) {
			return nil, err
		}
		return nil, &ProtocolError{Err: err}
	}
	return packet, nil
}
