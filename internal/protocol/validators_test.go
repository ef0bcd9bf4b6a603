package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidUsername(t *testing.T) {
	valid := []string{"abc", "Alice", "bob42", "ABCDEFGHIJKL"}
	for _, username := range valid {
		assert.True(t, ValidUsername(username), username)
	}

	invalid := []string{"", "ab", "ABCDEFGHIJKLM", "has space", "semi;colon", "pipe|name", "naïve"}
	for _, username := range invalid {
		assert.False(t, ValidUsername(username), username)
	}
}

func TestValidMessage(t *testing.T) {
	assert.True(t, ValidMessage("x"))
	assert.True(t, ValidMessage(strings.Repeat("a", 1000)))
	assert.False(t, ValidMessage(""))
	assert.False(t, ValidMessage(strings.Repeat("a", 1001)))
}
