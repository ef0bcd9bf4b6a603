package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitterCallsListenersInRegistrationOrder(t *testing.T) {
	emitter := NewEmitter[int]()

	var order []string
	emitter.On(NewListener(func(int) { order = append(order, "first") }))
	emitter.On(NewListener(func(int) { order = append(order, "second") }))
	emitter.On(NewListener(func(int) { order = append(order, "third") }))

	emitter.Emit(1)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestEmitterDuplicateRegistrationIsNoOp(t *testing.T) {
	emitter := NewEmitter[string]()

	calls := 0
	listener := NewListener(func(string) { calls++ })
	emitter.On(listener)
	emitter.On(listener)

	emitter.Emit("hello")
	assert.Equal(t, 1, calls)
}

func TestEmitterOff(t *testing.T) {
	emitter := NewEmitter[string]()

	calls := 0
	listener := NewListener(func(string) { calls++ })
	emitter.On(listener)
	require.NoError(t, emitter.Off(listener))

	emitter.Emit("hello")
	assert.Zero(t, calls)
}

func TestEmitterOffUnknownListener(t *testing.T) {
	emitter := NewEmitter[string]()
	err := emitter.Off(NewListener(func(string) {}))
	assert.ErrorIs(t, err, ErrListenerNotRegistered)
}

func TestEmitterPassesValue(t *testing.T) {
	type payload struct{ a, b string }
	emitter := NewEmitter[payload]()

	var got payload
	emitter.On(NewListener(func(p payload) { got = p }))
	emitter.Emit(payload{a: "x", b: "y"})
	assert.Equal(t, payload{a: "x", b: "y"}, got)
}
