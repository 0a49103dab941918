package supervisor

import "sync/atomic"

// State is the supervisor's view of its own connection lifecycle. Only the
// registry is authoritative for cross-task visibility; State exists for
// diagnostics and tests.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateShuttingDown
)

func (state State) String() string {
	switch state {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateShuttingDown:
		return "shutting-down"
	default:
		return "unknown"
	}
}

type stateCell struct {
	value atomic.Int32
}

func (cell *stateCell) set(state State) {
	cell.value.Store(int32(state))
}

func (cell *stateCell) get() State {
	return State(cell.value.Load())
}
