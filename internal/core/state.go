package core

// ConnectionState tracks the transport/registration lifecycle. Exactly one
// channel instance is live while the state is Connecting or Connected.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	ConnectionFailed
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case ConnectionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MatchState tracks queue/partner status. Only meaningful while connected.
type MatchState int

const (
	MatchIdle MatchState = iota
	MatchQueued
	MatchActive
	MatchEnded
)

func (s MatchState) String() string {
	switch s {
	case MatchIdle:
		return "idle"
	case MatchQueued:
		return "queued"
	case MatchActive:
		return "matched"
	case MatchEnded:
		return "ended"
	default:
		return "unknown"
	}
}
