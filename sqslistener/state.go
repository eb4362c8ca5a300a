package sqslistener

// State is the lifecycle state of a listener container. Transitions are
// monotonic: Created -> Running -> Stopping -> Stopped, no state is ever
// revisited.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
