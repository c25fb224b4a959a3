package hal

import (
	"time"
)

// State of the capture state machine.
type State byte

const (
	StateIdle State = iota
	StateStartingPreview
	StateRunningPreview
	StateStoppingPreview
	StateStartingCapture
	StateRunningCapture
	StateStoppingCapture
	StateError
)

var stateNames = [...]string{
	"idle", "starting_preview", "running_preview", "stopping_preview",
	"starting_capture", "running_capture", "stopping_capture", "error",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s State) Preview() bool {
	return s >= StateStartingPreview && s <= StateStoppingPreview
}

func (s State) Capture() bool {
	return s >= StateStartingCapture && s <= StateStoppingCapture
}

// Running states are only entered from the matching starting state.
var transitions = map[State][]State{
	StateIdle:            {StateStartingPreview, StateStartingCapture},
	StateStartingPreview: {StateRunningPreview, StateStoppingPreview, StateError, StateIdle},
	StateRunningPreview:  {StateStoppingPreview, StateError},
	StateStoppingPreview: {StateIdle, StateError},
	StateStartingCapture: {StateRunningCapture, StateStoppingCapture, StateError, StateIdle},
	StateRunningCapture:  {StateStoppingCapture, StateError},
	StateStoppingCapture: {StateIdle, StateError},
	StateError:           {StateIdle},
}

func CanTransit(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Event is published on every state change.
type Event struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	Err  string    `json:"error,omitempty"`
	Time time.Time `json:"time"`
}
