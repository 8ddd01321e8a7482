package batch

import "fmt"

// State is the phase of a Runner.
type State int32

const (
	Idle State = iota
	Validating
	Processing
	Completed
	Failed
)

var stateNames = [...]string{"idle", "validating", "processing", "completed", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Running reports whether s is a phase of a run in flight.
func (s State) Running() bool {
	return s == Validating || s == Processing
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("batch: unknown state %q", text)
}
