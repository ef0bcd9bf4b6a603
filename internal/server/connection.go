package server

import (
	"time"

	"echosphere/internal/protocol"
)

// Connection tracks the server-side state of one client connection. All
// fields are guarded by the owning Networking's mutex.
type Connection struct {
	Conn *protocol.Conn

	// Username is empty until a successful LOGIN and is cleared again when
	// the departure of the user has already been reported.
	Username string

	ConnectedAt   time.Time
	LastHeartbeat time.Time
}

// IsAlive reports whether the connection produced a heartbeat, or was
// established, within the liveness window.
func (c *Connection) IsAlive(now time.Time, window time.Duration) bool {
	last := c.ConnectedAt
	if c.LastHeartbeat.After(last) {
		last = c.LastHeartbeat
	}
	return now.Sub(last) <= window
}
