package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"echosphere/internal/event"
	"echosphere/internal/protocol"
)

// DefaultHeartbeatInterval is both the period of the heartbeat monitor and
// the liveness window after which a silent connection is considered dead.
const DefaultHeartbeatInterval = 15 * time.Second

// ErrAlreadyRunning is returned by Serve when the server is already serving.
var ErrAlreadyRunning = errors.New("server is already running")

// UserJoinedEvent is published after a connection completes a login.
type UserJoinedEvent struct {
	Conn     *protocol.Conn
	Username string
}

// UserLeftEvent is published exactly once when a logged-in user leaves. Err
// is nil for a graceful logout and carries the close reason otherwise.
type UserLeftEvent struct {
	Conn     *protocol.Conn
	Username string
	Err      error
}

// MessageEvent is published for every accepted chat message.
type MessageEvent struct {
	Sender  string
	Message string
}

// Networking accepts client connections, dispatches their packets and tracks
// per-connection login and heartbeat state. It publishes UserJoined, UserLeft
// and MessageReceived events consumed by the server application.
type Networking struct {
	UserJoined      *event.Emitter[UserJoinedEvent]
	UserLeft        *event.Emitter[UserLeftEvent]
	MessageReceived *event.Emitter[MessageEvent]

	// HeartbeatInterval may be lowered before Serve; connections silent for
	// longer than this are evicted.
	HeartbeatInterval time.Duration

	logger logrus.FieldLogger

	mu          sync.Mutex
	running     bool
	password    string
	listener    net.Listener
	connections map[*protocol.Conn]*Connection
}

// NewNetworking creates an idle server networking layer.
func NewNetworking(logger logrus.FieldLogger) *Networking {
	return &Networking{
		UserJoined:        event.NewEmitter[UserJoinedEvent](),
		UserLeft:          event.NewEmitter[UserLeftEvent](),
		MessageReceived:   event.NewEmitter[MessageEvent](),
		HeartbeatInterval: DefaultHeartbeatInterval,
		logger:            logger.WithField("component", "server"),
	}
}

// Addr returns the bound listener address, or nil before Serve has bound one.
func (s *Networking) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve binds a listening socket and accepts connections until the context
// is cancelled. Logged-in clients are required to present server_password on
// login; an empty password means the server is open.
func (s *Networking) Serve(ctx context.Context, host string, port int, serverPassword string) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.password = serverPassword
	s.connections = make(map[*protocol.Conn]*Connection)
	s.mu.Unlock()

	defer s.stop()

	address := fmt.Sprintf("%s:%d", host, port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.WithField("address", listener.Addr().String()).Info("Server started listening")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		listener.Close()
		return nil
	})
	g.Go(func() error {
		return s.monitorHeartbeats(ctx)
	})
	g.Go(func() error {
		return s.acceptLoop(ctx, listener)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Networking) acceptLoop(ctx context.Context, listener net.Listener) error {
	for {
		netConn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("error accepting connection: %w", err)
		}
		s.acceptConnection(netConn)
	}
}

// acceptConnection wires a fresh protocol connection and starts serving it.
func (s *Networking) acceptConnection(netConn net.Conn) {
	conn := protocol.NewConn(netConn, s.logger)
	conn.ConnectionMade.On(event.NewListener(s.onNewConnection))
	conn.PacketReceived.On(event.NewListener(s.onNewPacket))
	conn.ConnectionLost.On(event.NewListener(s.onConnectionClose))
	conn.Start()
}

func (s *Networking) onNewConnection(conn *protocol.Conn) {
	s.mu.Lock()
	s.connections[conn] = &Connection{Conn: conn, ConnectedAt: time.Now()}
	s.mu.Unlock()
	s.logger.WithField("remote", conn.RemoteAddr().String()).Info("New connection")
}

// onNewPacket dispatches an inbound packet by type. Unknown or unexpected
// packets close the connection.
func (s *Networking) onNewPacket(ev protocol.PacketEvent) {
	switch packet := ev.Packet.(type) {
	case *protocol.LoginPacket:
		s.handleLogin(ev.Conn, packet)
	case *protocol.MessagePacket:
		s.handleMessage(ev.Conn, packet)
	case *protocol.HeartbeatPacket:
		s.handleHeartbeat(ev.Conn)
	case *protocol.LogoutPacket:
		s.handleLogout(ev.Conn)
	default:
		s.logger.WithField("type", ev.Packet.Type().String()).Warn("Unexpected packet received, closing the connection")
		ev.Conn.Close()
	}
}

func (s *Networking) handleLogin(conn *protocol.Conn, packet *protocol.LoginPacket) {
	s.mu.Lock()
	connection, ok := s.connections[conn]
	if !ok {
		s.mu.Unlock()
		return
	}

	// The validate-and-insert below is atomic with respect to concurrent
	// logins: two clients racing for one username resolve under this lock.
	var code protocol.ResponseCode
	switch {
	case !protocol.ValidUsername(packet.Username):
		code = protocol.ResponseInvalidUsername
	case s.usernameTakenLocked(packet.Username):
		code = protocol.ResponseTakenUsername
	case packet.Password != s.password:
		code = protocol.ResponseWrongPassword
	default:
		code = protocol.ResponseOK
		connection.Username = packet.Username
	}
	s.mu.Unlock()

	if err := conn.Send(&protocol.ResponsePacket{Code: code}); err != nil {
		s.logger.WithError(err).Warn("Failed to send login response")
		return
	}

	if code == protocol.ResponseOK {
		s.logger.WithField("username", packet.Username).Info("User logged in")
		s.UserJoined.Emit(UserJoinedEvent{Conn: conn, Username: packet.Username})
	}
}

func (s *Networking) handleMessage(conn *protocol.Conn, packet *protocol.MessagePacket) {
	s.mu.Lock()
	var sender string
	if connection, ok := s.connections[conn]; ok {
		sender = connection.Username
	}
	s.mu.Unlock()

	if sender == "" || !protocol.ValidMessage(packet.Message) {
		if err := conn.Send(&protocol.ResponsePacket{Code: protocol.ResponseInvalidMessage}); err != nil {
			s.logger.WithError(err).Warn("Failed to send message response")
		}
		return
	}

	if err := conn.Send(&protocol.ResponsePacket{Code: protocol.ResponseOK}); err != nil {
		s.logger.WithError(err).Warn("Failed to send message response")
		return
	}
	s.MessageReceived.Emit(MessageEvent{Sender: sender, Message: packet.Message})
}

func (s *Networking) handleHeartbeat(conn *protocol.Conn) {
	s.mu.Lock()
	if connection, ok := s.connections[conn]; ok {
		connection.LastHeartbeat = time.Now()
	}
	s.mu.Unlock()
}

// handleLogout reports the departure and clears the username so the
// subsequent transport close does not report it a second time.
func (s *Networking) handleLogout(conn *protocol.Conn) {
	s.mu.Lock()
	connection, ok := s.connections[conn]
	if !ok || connection.Username == "" {
		s.mu.Unlock()
		return
	}
	username := connection.Username
	connection.Username = ""
	s.mu.Unlock()

	s.logger.WithField("username", username).Info("User logged out")
	s.UserLeft.Emit(UserLeftEvent{Conn: conn, Username: username})
	conn.Close()
}

func (s *Networking) onConnectionClose(ev protocol.CloseEvent) {
	s.mu.Lock()
	connection, ok := s.connections[ev.Conn]
	var username string
	if ok {
		username = connection.Username
		delete(s.connections, ev.Conn)
	}
	s.mu.Unlock()

	s.logger.WithError(ev.Err).Info("Connection closed")
	if username != "" {
		err := ev.Err
		if err == nil {
			err = protocol.ErrConnectionClosed
		}
		s.UserLeft.Emit(UserLeftEvent{Conn: ev.Conn, Username: username, Err: err})
	}
}

// monitorHeartbeats periodically sweeps logged-in connections and evicts the
// ones whose last sign of life is older than the liveness window.
func (s *Networking) monitorHeartbeats(ctx context.Context) error {
	ticker := time.NewTicker(s.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			for _, dead := range s.collectDead(now) {
				s.logger.WithField("username", dead.Username).Info("Connection is dead, cleaning up")
				s.UserLeft.Emit(UserLeftEvent{Conn: dead.Conn, Username: dead.Username, Err: protocol.ErrConnectionClosed})
				dead.Conn.Close()
			}
		}
	}
}

// collectDead clears the username of every dead logged-in connection under
// the lock so their departure is reported exactly once.
func (s *Networking) collectDead(now time.Time) []UserLeftEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dead []UserLeftEvent
	for _, connection := range s.connections {
		if connection.Username == "" || connection.IsAlive(now, s.HeartbeatInterval) {
			continue
		}
		dead = append(dead, UserLeftEvent{Conn: connection.Conn, Username: connection.Username})
		connection.Username = ""
	}
	return dead
}

func (s *Networking) usernameTakenLocked(username string) bool {
	for _, connection := range s.connections {
		if connection.Username == username {
			return true
		}
	}
	return false
}

// stop closes the listener and every remaining connection.
func (s *Networking) stop() {
	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
		s.listener = nil
	}
	conns := make([]*protocol.Conn, 0, len(s.connections))
	for conn := range s.connections {
		conns = append(conns, conn)
	}
	s.running = false
	s.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
	s.logger.Info("Server shutdown complete")
}
