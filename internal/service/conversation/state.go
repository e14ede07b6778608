package conversation

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition is returned when an event does not apply to the
// session's current state, e.g. a stale button press.
var ErrIllegalTransition = errors.New("illegal state transition")

// State is the position of an operator session in the counting flow.
type State int

const (
	StateIdle State = iota
	StateReadyCheck
	StateInput
	StateCheck
	StateConfirmCancel
	StateReview
	StateEdit
	StateEditValue
	StateSend
	StateHistorySelect
	StateHistoryPeriod
)

var stateNames = [...]string{
	StateIdle:          "idle",
	StateReadyCheck:    "ready_check",
	StateInput:         "input",
	StateCheck:         "check",
	StateConfirmCancel: "confirm_cancel",
	StateReview:        "review",
	StateEdit:          "edit",
	StateEditValue:     "edit_value",
	StateSend:          "send",
	StateHistorySelect: "history_select",
	StateHistoryPeriod: "history_period",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// transitions lists the successors reachable by operator input from each state.
var transitions = map[State][]State{
	StateReadyCheck:    {StateInput},
	StateInput:         {StateInput, StateCheck},
	StateCheck:         {StateReview, StateSend, StateConfirmCancel},
	StateConfirmCancel: {StateCheck},
	StateReview:        {StateEdit, StateSend},
	StateEdit:          {StateEdit, StateEditValue, StateSend},
	StateEditValue:     {StateEdit, StateSend},
	StateHistorySelect: {StateHistoryPeriod},
	StateHistoryPeriod: {StateHistoryPeriod},
}

// CanTransition reports whether to is reachable from s. Idle and the two
// command entry points (/start, /history) are reachable from every state.
func (s State) CanTransition(to State) bool {
	switch to {
	case StateIdle, StateReadyCheck, StateHistorySelect:
		return true
	}
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// AdminState tracks the catalog editing prompts, independent of State.
type AdminState int

const (
	AdminNone AdminState = iota
	AdminAddCode
	AdminAddName
	AdminAddThreshold
	AdminRemoveCode
	AdminThresholdCode
	AdminThresholdValue
)
