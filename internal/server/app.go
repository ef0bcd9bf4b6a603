package server

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"echosphere/internal/event"
	"echosphere/internal/protocol"
)

// Application implements the chat room on top of the networking layer: it
// keeps the roster of logged-in users, relays messages, announces joins and
// leaves and drives the command registry.
type Application struct {
	logger     logrus.FieldLogger
	networking *Networking
	commands   *CommandRegistry

	mu     sync.Mutex
	roster map[string]*protocol.Conn
}

// NewApplication wires a server application to its networking layer and
// command registry.
func NewApplication(logger logrus.FieldLogger, networking *Networking, commands *CommandRegistry) *Application {
	app := &Application{
		logger:     logger.WithField("component", "app"),
		networking: networking,
		commands:   commands,
		roster:     make(map[string]*protocol.Conn),
	}

	networking.UserJoined.On(event.NewListener(app.onUserJoined))
	networking.UserLeft.On(event.NewListener(app.onUserLeft))
	networking.MessageReceived.On(event.NewListener(app.onMessageReceived))

	return app
}

// Start runs the server until the context is cancelled.
func (a *Application) Start(ctx context.Context, host string, port int, serverPassword string) error {
	return a.networking.Serve(ctx, host, port, serverPassword)
}

// ConnectedUsers returns the usernames currently in the roster, in no
// particular order.
func (a *Application) ConnectedUsers() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	users := make([]string, 0, len(a.roster))
	for username := range a.roster {
		users = append(users, username)
	}
	return users
}

// onUserJoined announces the newcomer to everyone already present, then adds
// them to the roster. The ordering keeps the announcement from reaching the
// newcomer themselves.
func (a *Application) onUserJoined(ev UserJoinedEvent) {
	a.logger.WithField("username", ev.Username).Info("User joined")

	a.mu.Lock()
	a.broadcastLocked("", fmt.Sprintf("User %s has joined!", ev.Username))
	a.roster[ev.Username] = ev.Conn
	a.mu.Unlock()
}

func (a *Application) onUserLeft(ev UserLeftEvent) {
	a.mu.Lock()
	if _, ok := a.roster[ev.Username]; !ok {
		a.mu.Unlock()
		return
	}
	delete(a.roster, ev.Username)

	if ev.Err == nil {
		a.logger.WithField("username", ev.Username).Info("User left the chat")
		a.broadcastLocked("", fmt.Sprintf("User %s has left!", ev.Username))
	} else {
		a.logger.WithField("username", ev.Username).WithError(ev.Err).Info("User lost the connection")
		a.broadcastLocked("", fmt.Sprintf("User %s has lost the connection to the server!", ev.Username))
	}
	a.mu.Unlock()
}

// onMessageReceived relays a chat message, or dispatches it as a command when
// the text starts with "/".
func (a *Application) onMessageReceived(ev MessageEvent) {
	if strings.HasPrefix(ev.Message, "/") {
		fields := strings.Fields(strings.TrimSpace(ev.Message))
		command := strings.TrimPrefix(fields[0], "/")
		args := fields[1:]

		a.logger.WithField("command", command).Info("Received a command")

		handler, ok := a.commands.Lookup(command)
		if !ok {
			a.SendTo("", ev.Sender, "Invalid command!")
			return
		}
		if err := handler(a, ev.Sender, args); err != nil {
			a.logger.WithField("command", command).WithError(err).Error("Command failed")
			a.SendTo("", ev.Sender, "Invalid command!")
		}
		return
	}

	a.Broadcast(ev.Sender, ev.Message)
}

// Broadcast sends the message to every user in the roster. A non-empty
// sender is excluded from the recipients and named on the message; an empty
// sender marks a system message delivered to everyone.
func (a *Application) Broadcast(sender, message string) {
	a.mu.Lock()
	a.broadcastLocked(sender, message)
	a.mu.Unlock()
}

func (a *Application) broadcastLocked(sender, message string) {
	for username, conn := range a.roster {
		if sender != "" && sender == username {
			continue
		}
		if err := conn.Send(&protocol.MessagePacket{Username: sender, Message: message}); err != nil {
			a.logger.WithField("username", username).WithError(err).Warn("Failed to deliver a broadcast message")
		}
	}
}

// SendTo sends a direct message to one user. An empty sender marks a system
// message visible only to the recipient.
func (a *Application) SendTo(sender, recipient, message string) {
	a.mu.Lock()
	conn, ok := a.roster[recipient]
	a.mu.Unlock()
	if !ok {
		a.logger.WithField("username", recipient).Warn("Dropping a direct message to an unknown user")
		return
	}
	if err := conn.Send(&protocol.MessagePacket{Username: sender, Message: message}); err != nil {
		a.logger.WithField("username", recipient).WithError(err).Warn("Failed to deliver a direct message")
	}
}
