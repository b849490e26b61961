package orchestrator

// State is where a conversation session sits in the turn cycle.
type State int32

const (
	Idle State = iota
	Listening
	Thinking
	Speaking
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Listening:
		return "LISTENING"
	case Thinking:
		return "THINKING"
	case Speaking:
		return "SPEAKING"
	case Closed:
		return "CLOSED"
	}
	return "UNKNOWN"
}
