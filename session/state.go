package session

// ConnectionState represents the lifecycle state of the broker session.
// It is owned exclusively by the Client; every other component reads it,
// none mutate it directly.
type ConnectionState int

// Possible connection states
const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StatePermanentlyFailed
)

// String returns the string representation of ConnectionState
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StatePermanentlyFailed:
		return "permanently_failed"
	default:
		return "unknown"
	}
}
