package server

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"strings"
)

// CommandHandler handles one chat command. Args holds the whitespace-split
// tokens that followed the command itself.
type CommandHandler func(app *Application, sender string, args []string) error

// CommandRegistry maps command names (without the leading "/") to handlers.
// It is built explicitly at server startup and passed to the application.
type CommandRegistry struct {
	handlers map[string]CommandHandler
}

// NewCommandRegistry returns an empty registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{handlers: make(map[string]CommandHandler)}
}

// Register adds or replaces the handler for a command name.
func (r *CommandRegistry) Register(name string, handler CommandHandler) {
	r.handlers[name] = handler
}

// Lookup returns the handler for a command name.
func (r *CommandRegistry) Lookup(name string) (CommandHandler, bool) {
	handler, ok := r.handlers[name]
	return handler, ok
}

// BuiltinCommands returns a registry with the built-in commands. The pong
// corpus for /ping is read from pongPath, one message per line.
func BuiltinCommands(pongPath string) *CommandRegistry {
	registry := NewCommandRegistry()
	registry.Register("list", listCommand)
	registry.Register("ping", pingCommand(pongPath))
	return registry
}

// listCommand replies to the sender with the usernames of everyone online.
func listCommand(app *Application, sender string, _ []string) error {
	message := fmt.Sprintf("Connected users: %s", strings.Join(app.ConnectedUsers(), ", "))
	app.SendTo("", sender, message)
	return nil
}

// pingCommand replies to the sender with a random line from the pong corpus.
func pingCommand(pongPath string) CommandHandler {
	return func(app *Application, sender string, _ []string) error {
		message, err := randomPongMessage(pongPath)
		if err != nil {
			return fmt.Errorf("failed to pick a pong message: %w", err)
		}
		app.SendTo("", sender, message)
		return nil
	}
}

// randomPongMessage picks a uniformly random line from the corpus file in a
// single pass using reservoir sampling.
func randomPongMessage(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var picked string
	lines := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines++
		if rand.Intn(lines) == 0 {
			picked = scanner.Text()
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if lines == 0 {
		return "", fmt.Errorf("the pong corpus %s is empty", path)
	}
	return strings.TrimSpace(picked), nil
}
