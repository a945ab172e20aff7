package orchestrator

import "github.com/rotisserie/eris"

// State is a job's position in the pipeline state machine.
type State string

const (
	StatePending      State = "pending"
	StateAggregating  State = "running-aggregation"
	StateSynthesizing State = "running-synthesis"
	StateUpdating     State = "running-update"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Event advances the state machine.
type Event string

const (
	EventStart           Event = "start"
	EventContextGathered Event = "context_gathered"
	EventSynthesized     Event = "synthesized"
	EventUpdated         Event = "updated"
	EventFailed          Event = "failed"
)

// Transition is the pure state-transition function. It returns an error for
// any event not valid in the current state; terminal states accept nothing.
func Transition(s State, e Event) (State, error) {
	if s.Terminal() {
		return s, eris.Errorf("orchestrator: event %q in terminal state %q", e, s)
	}
	if e == EventFailed {
		return StateFailed, nil
	}

	switch {
	case s == StatePending && e == EventStart:
		return StateAggregating, nil
	case s == StateAggregating && e == EventContextGathered:
		return StateSynthesizing, nil
	case s == StateSynthesizing && e == EventSynthesized:
		return StateUpdating, nil
	case s == StateUpdating && e == EventUpdated:
		return StateCompleted, nil
	}
	return s, eris.Errorf("orchestrator: invalid transition %q on %q", e, s)
}
