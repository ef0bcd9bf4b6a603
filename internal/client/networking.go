package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"echosphere/internal/event"
	"echosphere/internal/protocol"
)

// DefaultHeartbeatInterval is how often the client pings the server while a
// session is open.
const DefaultHeartbeatInterval = 15 * time.Second

// Message is a chat message surfaced to the UI. An empty Username marks a
// system message.
type Message struct {
	Username string
	Text     string
}

// Networking maintains a client session with a chat server. It publishes the
// following events:
//
//   - MessageReceived: a message packet arrived from the server.
//   - ConnectionLost: the connection dropped unexpectedly, i.e. without a
//     prior Disconnect call.
type Networking struct {
	MessageReceived *event.Emitter[Message]
	ConnectionLost  *event.Emitter[error]

	// HeartbeatInterval may be lowered before Join.
	HeartbeatInterval time.Duration

	logger logrus.FieldLogger

	mu              sync.Mutex
	conn            *protocol.Conn
	username        string
	heartbeatCancel context.CancelFunc
}

// NewNetworking creates a disconnected client networking layer.
func NewNetworking(logger logrus.FieldLogger) *Networking {
	return &Networking{
		MessageReceived:   event.NewEmitter[Message](),
		ConnectionLost:    event.NewEmitter[error](),
		HeartbeatInterval: DefaultHeartbeatInterval,
		logger:            logger.WithField("component", "client"),
	}
}

// Username returns the logged-in username, or "" when disconnected.
func (c *Networking) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

// Join connects to the server, performs the login handshake and starts the
// heartbeat. Cancelling the context disconnects. Login failures map to
// ErrInvalidUsername, ErrUsernameTaken, ErrWrongPassword or ErrLogin; an
// unreachable host yields a DestinationUnreachableError.
func (c *Networking) Join(ctx context.Context, host string, port int, username, serverPassword string) error {
	c.mu.Lock()
	if c.conn != nil && !c.conn.IsClosed() {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"address":  net.JoinHostPort(host, strconv.Itoa(port)),
		"username": username,
	}).Info("Joining the server")

	var dialer net.Dialer
	netConn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return &DestinationUnreachableError{Host: host, Port: port, Err: err}
	}

	conn := protocol.NewConn(netConn, c.logger)
	conn.PacketReceived.On(event.NewListener(c.onNewPacket))
	conn.ConnectionLost.On(event.NewListener(c.onConnectionLost))

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	conn.Start()

	if err := c.login(ctx, conn, username, serverPassword); err != nil {
		c.Disconnect()
		return err
	}

	c.mu.Lock()
	c.username = username
	heartbeatCtx, cancel := context.WithCancel(context.Background())
	c.heartbeatCancel = cancel
	c.mu.Unlock()

	go c.sendHeartbeats(heartbeatCtx, conn)
	return nil
}

// login performs the LOGIN handshake and maps the response code to an error.
func (c *Networking) login(ctx context.Context, conn *protocol.Conn, username, serverPassword string) error {
	c.logger.Debug("Sending a login packet to the server")
	response, err := conn.SendAndWait(ctx, &protocol.LoginPacket{Username: username, Password: serverPassword})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	switch response.Code {
	case protocol.ResponseOK:
		return nil
	case protocol.ResponseInvalidUsername:
		return ErrInvalidUsername
	case protocol.ResponseTakenUsername:
		return ErrUsernameTaken
	case protocol.ResponseWrongPassword:
		return ErrWrongPassword
	default:
		return ErrLogin
	}
}

// SendMessage submits a chat message and waits for the server's verdict.
func (c *Networking) SendMessage(ctx context.Context, text string) error {
	c.mu.Lock()
	conn := c.conn
	username := c.username
	c.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return protocol.ErrConnectionClosed
	}

	response, err := conn.SendAndWait(ctx, &protocol.MessagePacket{Username: username, Message: text})
	if err != nil {
		return err
	}
	if response.Code != protocol.ResponseOK {
		return &MessageError{Message: text}
	}
	return nil
}

// Disconnect cancels the heartbeat, sends a best-effort LOGOUT and closes the
// connection. Calling it without an active session is a no-op.
func (c *Networking) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil
	}
	if c.heartbeatCancel != nil {
		c.heartbeatCancel()
		c.heartbeatCancel = nil
	}
	c.conn = nil
	c.username = ""
	c.mu.Unlock()

	c.logger.Info("Disconnecting from the server")

	var sendErr error
	if !conn.IsClosed() {
		if err := conn.Send(&protocol.LogoutPacket{}); err != nil && !errors.Is(err, protocol.ErrConnectionClosed) {
			c.logger.WithError(err).Error("Could not send the logout packet")
			sendErr = err
		}
	}
	conn.Close()

	if sendErr != nil {
		return &protocol.NetworkError{Err: sendErr}
	}
	return nil
}

func (c *Networking) onNewPacket(ev protocol.PacketEvent) {
	c.logger.WithField("type", ev.Packet.Type().String()).Debug("Received a new packet")
	if message, ok := ev.Packet.(*protocol.MessagePacket); ok {
		c.MessageReceived.Emit(Message{Username: message.Username, Text: message.Message})
	}
}

// onConnectionLost re-emits the drop upward only when Disconnect was not
// called first, i.e. the drop was unexpected.
func (c *Networking) onConnectionLost(ev protocol.CloseEvent) {
	c.mu.Lock()
	active := c.conn == ev.Conn
	c.mu.Unlock()
	if !active {
		c.logger.Debug("Connection closed")
		return
	}

	err := ev.Err
	if err == nil {
		err = protocol.ErrConnectionClosed
	}
	c.logger.WithError(err).Error("Connection lost")
	c.ConnectionLost.Emit(err)
	c.Disconnect()
}

// sendHeartbeats pings the server every HeartbeatInterval until the session
// ends. Cancellation is silent; a send failure tears the session down.
func (c *Networking) sendHeartbeats(ctx context.Context, conn *protocol.Conn) {
	ticker := time.NewTicker(c.HeartbeatInterval)
	defer ticker.Stop()

	for {
		c.logger.Debug("Sending a heartbeat packet")
		if err := conn.Send(&protocol.HeartbeatPacket{}); err != nil {
			if errors.Is(err, protocol.ErrConnectionClosed) {
				return
			}
			c.logger.WithError(err).Error("An error occurred while sending a heartbeat")
			c.Disconnect()
			c.ConnectionLost.Emit(err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
