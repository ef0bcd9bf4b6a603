package protocol

import (
	"errors"
	"fmt"
)

// ErrIncompleteHeader is returned by DecodeHeader when fewer than HeaderSize
// bytes are available. The frame reader folds it into "wait for more bytes";
// it is never fatal for a connection.
var ErrIncompleteHeader = errors.New("incomplete packet header")

// ErrConnectionClosed is returned when sending or waiting on a connection
// that has already been closed, and is the reason attached to a connection
// that was dropped without a more specific error.
var ErrConnectionClosed = errors.New("the connection is closed")

// UnknownPacketError indicates a header carrying an unrecognized packet type
// tag. Fatal for the connection.
type UnknownPacketError struct {
	Tag byte
}

func (e *UnknownPacketError) Error() string {
	return fmt.Sprintf("unknown packet type: 0x%02x", e.Tag)
}

// InvalidPayloadError indicates a payload that does not conform to its packet
// type, either by length or by content. Fatal for the connection.
type InvalidPayloadError struct {
	Reason string
}

func (e *InvalidPayloadError) Error() string {
	return fmt.Sprintf("invalid payload: %s", e.Reason)
}

// ProtocolError wraps any other failure that occurs while reconstructing a
// packet. Fatal for the connection.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// NetworkError wraps a transport-level failure while writing to a connection.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsFatal reports whether a codec error must terminate the stream. Everything
// except "not enough bytes yet" is fatal.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrIncompleteHeader)
}
