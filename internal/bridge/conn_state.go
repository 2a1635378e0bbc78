package bridge

// ConnState is the lifecycle of one subscriber connection:
// Connecting -> Open -> Closing -> Closed. A reconnect is a new connection.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in diagnostics payloads.
func (s ConnState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
