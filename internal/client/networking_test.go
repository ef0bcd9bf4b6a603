package client_test

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echosphere/internal/client"
	"echosphere/internal/event"
	"echosphere/internal/protocol"
	"echosphere/internal/server"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// startServer runs a chat server on an ephemeral port and returns its host
// and port together with a cancel function that shuts it down.
func startServer(t *testing.T, password string) (string, int, context.CancelFunc) {
	t.Helper()
	logger := testLogger()
	networking := server.NewNetworking(logger)
	server.NewApplication(logger, networking, server.NewCommandRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = networking.Serve(ctx, "127.0.0.1", 0, password)
	}()

	require.Eventually(t, func() bool { return networking.Addr() != nil },
		2*time.Second, 10*time.Millisecond, "server did not start listening")

	addr := networking.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port, cancel
}

type joinedClient struct {
	networking *client.Networking
	messages   chan client.Message
	lost       chan error
}

func join(t *testing.T, host string, port int, username, password string) *joinedClient {
	t.Helper()
	jc := &joinedClient{
		networking: client.NewNetworking(testLogger()),
		messages:   make(chan client.Message, 32),
		lost:       make(chan error, 1),
	}
	jc.networking.MessageReceived.On(event.NewListener(func(m client.Message) { jc.messages <- m }))
	jc.networking.ConnectionLost.On(event.NewListener(func(err error) { jc.lost <- err }))

	require.NoError(t, jc.networking.Join(context.Background(), host, port, username, password))
	t.Cleanup(func() { _ = jc.networking.Disconnect() })
	return jc
}

func (c *joinedClient) expectMessage(t *testing.T) client.Message {
	t.Helper()
	select {
	case message := <-c.messages:
		return message
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a message")
		return client.Message{}
	}
}

func TestJoinAndChat(t *testing.T) {
	host, port, _ := startServer(t, "hunter2")

	alice := join(t, host, port, "alice", "hunter2")
	assert.Equal(t, "alice", alice.networking.Username())

	bob := join(t, host, port, "bob", "hunter2")

	joined := alice.expectMessage(t)
	assert.Empty(t, joined.Username)
	assert.Equal(t, "User bob has joined!", joined.Text)

	require.NoError(t, alice.networking.SendMessage(context.Background(), "hi bob"))
	received := bob.expectMessage(t)
	assert.Equal(t, "alice", received.Username)
	assert.Equal(t, "hi bob", received.Text)
}

func TestJoinErrorMapping(t *testing.T) {
	host, port, _ := startServer(t, "pw")

	networking := client.NewNetworking(testLogger())
	ctx := context.Background()
	assert.ErrorIs(t, networking.Join(ctx, host, port, "alice", "wrong"), client.ErrWrongPassword)
	assert.ErrorIs(t, networking.Join(ctx, host, port, "ab", "pw"), client.ErrInvalidUsername)

	join(t, host, port, "alice", "pw")
	assert.ErrorIs(t, networking.Join(ctx, host, port, "alice", "pw"), client.ErrUsernameTaken)

	assert.Empty(t, networking.Username())
}

func TestJoinAlreadyConnected(t *testing.T) {
	host, port, _ := startServer(t, "")
	alice := join(t, host, port, "alice", "")
	err := alice.networking.Join(context.Background(), host, port, "alice2", "")
	assert.ErrorIs(t, err, client.ErrAlreadyConnected)
}

func TestJoinUnreachableServer(t *testing.T) {
	// Bind and immediately release a port so nothing is listening on it.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	networking := client.NewNetworking(testLogger())
	err = networking.Join(context.Background(), "127.0.0.1", port, "alice", "")
	var unreachable *client.DestinationUnreachableError
	require.ErrorAs(t, err, &unreachable)
	assert.Equal(t, port, unreachable.Port)
}

func TestSendMessageWhileDisconnected(t *testing.T) {
	networking := client.NewNetworking(testLogger())
	err := networking.SendMessage(context.Background(), "hello")
	assert.ErrorIs(t, err, protocol.ErrConnectionClosed)
}

func TestSendMessageRejected(t *testing.T) {
	host, port, _ := startServer(t, "")
	alice := join(t, host, port, "alice", "")

	err := alice.networking.SendMessage(context.Background(), "")
	var messageErr *client.MessageError
	assert.ErrorAs(t, err, &messageErr)
}

func TestDisconnectAnnouncesDeparture(t *testing.T) {
	host, port, _ := startServer(t, "")
	alice := join(t, host, port, "alice", "")
	bob := join(t, host, port, "bob", "")
	alice.expectMessage(t) // bob joined

	require.NoError(t, alice.networking.Disconnect())
	assert.Empty(t, alice.networking.Username())

	left := bob.expectMessage(t)
	assert.Empty(t, left.Username)
	assert.Equal(t, "User alice has left!", left.Text)

	// A deliberate disconnect must not look like a dropped connection.
	select {
	case err := <-alice.lost:
		t.Fatalf("unexpected ConnectionLost event: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestServerShutdownEmitsConnectionLost(t *testing.T) {
	host, port, stop := startServer(t, "")
	alice := join(t, host, port, "alice", "")

	stop()

	select {
	case err := <-alice.lost:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ConnectionLost was not emitted")
	}
	assert.Empty(t, alice.networking.Username())
}
