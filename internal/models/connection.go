// internal/models/connection.go
package models

// ConnectionStatus is the lifecycle state of the push channel.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusError        ConnectionStatus = "error"
)

// ConnectionState is the externally visible transport state. LastError holds
// the most recent failure message, empty while healthy.
type ConnectionState struct {
	Status    ConnectionStatus `json:"status"`
	LastError string           `json:"lastError,omitempty"`
}

// GaugeValue maps the status onto the metrics gauge scale.
func (s ConnectionStatus) GaugeValue() float64 {
	switch s {
	case StatusConnecting:
		return 1
	case StatusConnected:
		return 2
	case StatusError:
		return 3
	default:
		return 0
	}
}
