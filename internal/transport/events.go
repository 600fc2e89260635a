// internal/transport/events.go
package transport

// Lifecycle events emitted by the connector.
const (
	EventConnected     = "connected"
	EventDisconnected  = "disconnected"
	EventError         = "error"
	EventAuthenticated = "authenticated"
	EventAuthError     = "auth_error"

	// EventNotification is the catch-all: every domain event is re-emitted
	// under this name with the same payload.
	EventNotification = "notification_received"
)

// Wire-level event names the server may send inside a frame.
const (
	wireAuthenticated = "authenticated"
	wireAuthError     = "authentication_error"
)

// Outbound command event names.
const (
	commandJoin  = "join"
	commandLeave = "leave"
)

// Frame is the wire envelope for both directions: a named event plus an
// arbitrary payload object.
type Frame struct {
	Event   string                 `json:"event"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// HandlerFunc receives the payload of an emitted event.
type HandlerFunc func(payload map[string]interface{})
