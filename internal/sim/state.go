package sim

type State int

const (
	Uninitialized State = iota
	Regenerating
	Running
	Paused
	Terminated
)

var stateNames = [...]string{
	Uninitialized: "uninitialized",
	Regenerating:  "regenerating",
	Running:       "running",
	Paused:        "paused",
	Terminated:    "terminated",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Live reports whether an epoch is attached in this state.
func (s State) Live() bool {
	return s == Running || s == Paused
}
