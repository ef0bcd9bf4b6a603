package client

import (
	"errors"
	"fmt"
)

// ErrAlreadyConnected is returned by Join when a session is already open.
var ErrAlreadyConnected = errors.New("already connected to a server")

// ErrInvalidUsername is returned by Join when the server rejects the
// username as malformed.
var ErrInvalidUsername = errors.New("the username is invalid, try a different one")

// ErrUsernameTaken is returned by Join when the username is already in use.
var ErrUsernameTaken = errors.New("the username is already taken, try another one")

// ErrWrongPassword is returned by Join when the server password is wrong.
var ErrWrongPassword = errors.New("the server password provided is incorrect")

// ErrLogin is returned by Join when the server rejects the login for any
// other reason.
var ErrLogin = errors.New("there was an issue logging in to the server")

// DestinationUnreachableError is returned by Join when the host cannot be
// reached at all.
type DestinationUnreachableError struct {
	Host string
	Port int
	Err  error
}

func (e *DestinationUnreachableError) Error() string {
	return fmt.Sprintf("the destination %s:%d is unreachable: %v", e.Host, e.Port, e.Err)
}

func (e *DestinationUnreachableError) Unwrap() error { return e.Err }

// MessageError is returned by SendMessage when the server rejects a message.
type MessageError struct {
	Message string
}

func (e *MessageError) Error() string {
	return fmt.Sprintf("the message was rejected by the server: %q", e.Message)
}
