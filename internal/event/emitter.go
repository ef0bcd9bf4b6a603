// Package event provides a small synchronous publish/subscribe primitive.
// Each event is a typed emitter with a typed listener signature; emission is
// synchronous and happens in registration order.
package event

import "sync"

// ErrListenerNotRegistered is returned by Off for a listener that was never
// registered on the emitter.
type listenerError string

func (e listenerError) Error() string { return string(e) }

const ErrListenerNotRegistered = listenerError("the listener has not been registered before")

// Listener wraps a callback so it has a stable identity: registering the same
// Listener twice is a no-op, while two Listeners wrapping the same function
// are distinct subscriptions.
type Listener[T any] struct {
	fn func(T)
}

// NewListener creates a listener handle around a callback.
func NewListener[T any](fn func(T)) *Listener[T] {
	return &Listener[T]{fn: fn}
}

// Emitter dispatches values of one event type to its registered listeners.
// The zero value is not usable; create emitters with NewEmitter.
type Emitter[T any] struct {
	mu        sync.Mutex
	listeners []*Listener[T]
}

// NewEmitter returns an empty emitter.
func NewEmitter[T any]() *Emitter[T] {
	return &Emitter[T]{}
}

// On registers a listener. Registering the same listener again is a no-op.
func (e *Emitter[T]) On(l *Listener[T]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.listeners {
		if existing == l {
			return
		}
	}
	e.listeners = append(e.listeners, l)
}

// Off removes a previously registered listener.
func (e *Emitter[T]) Off(l *Listener[T]) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, existing := range e.listeners {
		if existing == l {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			return nil
		}
	}
	return ErrListenerNotRegistered
}

// Emit calls every registered listener with the value, synchronously and in
// registration order.
func (e *Emitter[T]) Emit(value T) {
	e.mu.Lock()
	listeners := make([]*Listener[T], len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.Unlock()

	for _, l := range listeners {
		l.fn(value)
	}
}
