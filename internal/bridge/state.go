package bridge

// State is the relay lifecycle state. Transitions are linear:
// Starting → Running → Draining → Stopped.
type State int32

const (
	// StateStarting means sockets are bound but the stages are not yet
	// consuming.
	StateStarting State = iota

	// StateRunning means all three stages are live.
	StateRunning

	// StateDraining means ingress has stopped and buffered frames are being
	// flushed, bounded by the drain timeout.
	StateDraining

	// StateStopped means all stages have returned.
	StateStopped
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}
