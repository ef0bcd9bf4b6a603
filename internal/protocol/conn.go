package protocol

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"echosphere/internal/event"
)

const readBufferSize = 4096

// PacketEvent is published for every packet received on a connection.
type PacketEvent struct {
	Conn   *Conn
	Packet Packet
}

// CloseEvent is published once when a connection is lost or closed. Err is
// nil for a clean close, the first codec error if one occurred, or the
// transport error otherwise.
type CloseEvent struct {
	Conn *Conn
	Err  error
}

type responseResult struct {
	packet *ResponsePacket
	err    error
}

// pendingResponse is one slot in the FIFO response queue. A cancelled slot
// still consumes the response that belongs to it, which keeps every later
// slot aligned with its own response.
type pendingResponse struct {
	ch        chan responseResult
	cancelled bool
}

// Conn wraps a bidirectional byte stream and speaks the chat protocol over
// it. It publishes the following events:
//
//   - PacketReceived: a new packet arrived, responses included.
//   - ConnectionMade: the connection started serving.
//   - ConnectionLost: the connection was lost or closed.
//
// Responses are correlated FIFO with outstanding SendAndWait calls.
type Conn struct {
	PacketReceived *event.Emitter[PacketEvent]
	ConnectionMade *event.Emitter[*Conn]
	ConnectionLost *event.Emitter[CloseEvent]

	logger logrus.FieldLogger
	conn   net.Conn

	writeMu sync.Mutex

	mu       sync.Mutex
	frames   FrameReader
	closed   bool
	lost     bool
	codecErr error
	pending  []*pendingResponse

	closeOnce sync.Once
	done      chan struct{}
}

// NewConn wraps an established network connection. Register listeners before
// calling Start.
func NewConn(conn net.Conn, logger logrus.FieldLogger) *Conn {
	return &Conn{
		PacketReceived: event.NewEmitter[PacketEvent](),
		ConnectionMade: event.NewEmitter[*Conn](),
		ConnectionLost: event.NewEmitter[CloseEvent](),
		logger:         logger.WithField("remote", conn.RemoteAddr().String()),
		conn:           conn,
		done:           make(chan struct{}),
	}
}

// Start emits ConnectionMade and begins reading from the stream.
func (c *Conn) Start() {
	c.ConnectionMade.Emit(c)
	go c.readLoop()
}

// RemoteAddr returns the address of the peer.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// IsClosed reports whether the connection has been closed.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Done returns a channel that is closed once the connection is fully closed
// and ConnectionLost has been emitted.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Close initiates an orderly close of the transport. It is idempotent and
// does not emit ConnectionLost itself; that happens when the read loop
// observes the closed stream. Sends fail with ErrConnectionClosed from this
// point on.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.conn.Close()
	})
}

// Send serializes the packet and writes it to the stream without waiting for
// a response. It fails with ErrConnectionClosed after close and wraps write
// failures in a NetworkError.
func (c *Conn) Send(p Packet) error {
	data, err := Serialize(p)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrConnectionClosed
	}

	if _, err := c.conn.Write(data); err != nil {
		return &NetworkError{Err: err}
	}
	return nil
}

// SendAndWait sends the packet and waits for the next inbound RESPONSE on
// this connection. The wait resolves in FIFO order with any other outstanding
// SendAndWait calls and fails when the stream closes or the context is done.
func (c *Conn) SendAndWait(ctx context.Context, p Packet) (*ResponsePacket, error) {
	data, err := Serialize(p)
	if err != nil {
		return nil, err
	}

	// The enqueue and the write happen atomically under the write lock so
	// that the queue order always matches the wire order, no matter how many
	// callers race.
	c.writeMu.Lock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.writeMu.Unlock()
		return nil, ErrConnectionClosed
	}
	waiter := &pendingResponse{ch: make(chan responseResult, 1)}
	c.pending = append(c.pending, waiter)
	c.mu.Unlock()

	_, err = c.conn.Write(data)
	c.writeMu.Unlock()
	if err != nil {
		c.abandon(waiter)
		return nil, &NetworkError{Err: err}
	}

	select {
	case result := <-waiter.ch:
		return result.packet, result.err
	case <-ctx.Done():
		c.abandon(waiter)
		return nil, ctx.Err()
	}
}

// abandon marks a waiter as cancelled without removing its queue slot: the
// request is already on the wire, so the response that belongs to it must
// still be consumed when it arrives.
func (c *Conn) abandon(waiter *pendingResponse) {
	c.mu.Lock()
	waiter.cancelled = true
	c.mu.Unlock()
}

func (c *Conn) readLoop() {
	buf := make([]byte, readBufferSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.onBytes(buf[:n])
		}
		if err != nil {
			c.onStreamClose(err)
			return
		}
	}
}

// onBytes feeds new stream bytes to the frame reader and dispatches every
// complete packet. A fatal codec error records itself and closes the
// transport; the read loop then winds down through onStreamClose.
func (c *Conn) onBytes(data []byte) {
	c.mu.Lock()
	c.frames.Feed(data)

	var packets []Packet
	for {
		packet, err := c.frames.Next()
		if err != nil {
			c.logger.WithError(err).Debug("Fatal decoding error, closing the connection")
			c.codecErr = err
			c.mu.Unlock()
			c.Close()
			return
		}
		if packet == nil {
			break
		}
		if response, ok := packet.(*ResponsePacket); ok {
			c.resolveNextLocked(responseResult{packet: response})
		}
		packets = append(packets, packet)
	}
	c.mu.Unlock()

	for _, packet := range packets {
		c.PacketReceived.Emit(PacketEvent{Conn: c, Packet: packet})
	}
}

// resolveNextLocked completes the oldest pending waiter. A response with no
// waiter is ignored here; it is still delivered as a packet event. The result
// of a cancelled waiter is discarded, never handed to the next one.
func (c *Conn) resolveNextLocked(result responseResult) {
	if len(c.pending) == 0 {
		return
	}
	waiter := c.pending[0]
	c.pending = c.pending[1:]
	if !waiter.cancelled {
		waiter.ch <- result
	}
}

// onStreamClose marks the connection closed, fails every pending waiter and
// emits ConnectionLost exactly once. Error precedence: codec error over
// transport error over plain "closed".
func (c *Conn) onStreamClose(transportErr error) {
	if errors.Is(transportErr, io.EOF) || errors.Is(transportErr, net.ErrClosed) {
		transportErr = nil
	}

	c.mu.Lock()
	if c.lost {
		c.mu.Unlock()
		return
	}
	c.lost = true
	c.closed = true

	closeErr := c.codecErr
	if closeErr == nil {
		closeErr = transportErr
	}
	failErr := closeErr
	if failErr == nil {
		failErr = ErrConnectionClosed
	}

	// Each buffered waiter channel receives at most one result, so these
	// sends cannot block while the lock is held.
	for _, waiter := range c.pending {
		if !waiter.cancelled {
			waiter.ch <- responseResult{err: failErr}
		}
	}
	c.pending = nil
	c.mu.Unlock()

	c.Close()
	c.ConnectionLost.Emit(CloseEvent{Conn: c, Err: closeErr})
	close(c.done)
}
