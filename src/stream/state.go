package stream

import "time"

// State is a position in the connection lifecycle.
type State int32

const (
	Disconnected State = iota
	Connecting
	Subscribing
	Streaming
	ShuttingDown
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Subscribing:
		return "subscribing"
	case Streaming:
		return "streaming"
	case ShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// Transition records one state change. Err is set when a failure caused it.
type Transition struct {
	From      State
	To        State
	Attempt   int
	SessionID string
	Err       error
	At        time.Time
}

// allowed lists the legal edges. ShuttingDown is reachable from anywhere and
// is terminal.
var allowed = map[State][]State{
	Disconnected: {Connecting},
	Connecting:   {Subscribing, Disconnected},
	Subscribing:  {Streaming, Disconnected},
	Streaming:    {Disconnected},
}

func canTransition(from, to State) bool {
	if to == ShuttingDown {
		return from != ShuttingDown
	}
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}
