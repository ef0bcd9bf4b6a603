package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pongFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pong_messages.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRandomPongMessageSingleLine(t *testing.T) {
	path := pongFile(t, "Pong!\n")
	for i := 0; i < 10; i++ {
		message, err := randomPongMessage(path)
		require.NoError(t, err)
		assert.Equal(t, "Pong!", message)
	}
}

func TestRandomPongMessagePicksFromCorpus(t *testing.T) {
	path := pongFile(t, "one\ntwo\nthree\n")
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		message, err := randomPongMessage(path)
		require.NoError(t, err)
		assert.Contains(t, []string{"one", "two", "three"}, message)
		seen[message] = true
	}
	// 100 draws over 3 lines miss one with probability ~2e-18.
	assert.Len(t, seen, 3)
}

func TestRandomPongMessageTrimsWhitespace(t *testing.T) {
	path := pongFile(t, "  Pong!  \n")
	message, err := randomPongMessage(path)
	require.NoError(t, err)
	assert.Equal(t, "Pong!", message)
}

func TestRandomPongMessageEmptyCorpus(t *testing.T) {
	_, err := randomPongMessage(pongFile(t, ""))
	assert.Error(t, err)
}

func TestRandomPongMessageMissingFile(t *testing.T) {
	_, err := randomPongMessage(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestCommandRegistryLookup(t *testing.T) {
	registry := NewCommandRegistry()
	_, ok := registry.Lookup("list")
	assert.False(t, ok)

	called := false
	registry.Register("list", func(*Application, string, []string) error {
		called = true
		return nil
	})

	handler, ok := registry.Lookup("list")
	require.True(t, ok)
	require.NoError(t, handler(nil, "alice", nil))
	assert.True(t, called)
}

func TestBuiltinCommands(t *testing.T) {
	registry := BuiltinCommands(pongFile(t, "Pong!\n"))
	_, ok := registry.Lookup("list")
	assert.True(t, ok)
	_, ok = registry.Lookup("ping")
	assert.True(t, ok)
	_, ok = registry.Lookup("quit")
	assert.False(t, ok)
}
