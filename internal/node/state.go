package node

// State is a session's position in its emission cycle.
type State int

const (
	Connected State = iota
	Waiting
	Emitting
	Flushing
	Terminating
	Closed
)

var stateNames = map[State]string{
	Connected:   "connected",
	Waiting:     "waiting",
	Emitting:    "emitting",
	Flushing:    "flushing",
	Terminating: "terminating",
	Closed:      "closed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s State) IsTerminal() bool {
	return s == Terminating || s == Closed
}
