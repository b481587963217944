// Package validation runs a candidate through artifact scan, independent
// answer verification and duplicate check, driven by an explicit state
// machine.
package validation

import "fmt"

// State is a validation state. Non-terminal states name the stage to run.
type State string

const (
	StateArtifactScan       State = "artifact_scan"
	StateAnswerVerification State = "answer_verification"
	StateDuplicateCheck     State = "duplicate_check"

	StateAccepted          State = "accepted"
	StateRejectedArtifact  State = "rejected_artifact"
	StateRejectedAnswer    State = "rejected_answer"
	StateRejectedDuplicate State = "rejected_duplicate"
	StateRejectedMalformed State = "rejected_malformed"
)

// Start is the state every candidate enters.
const Start = StateArtifactScan

// Outcome is the result of one stage.
type Outcome string

const (
	OutcomePass Outcome = "pass"
	OutcomeFail Outcome = "fail"
)

// Action is what the orchestrator does with a terminal state.
type Action string

const (
	ActionAccept     Action = "accept"
	ActionRegenerate Action = "regenerate"
)

var transitions = map[State]map[Outcome]State{
	StateArtifactScan: {
		OutcomePass: StateAnswerVerification,
		OutcomeFail: StateRejectedArtifact,
	},
	StateAnswerVerification: {
		OutcomePass: StateDuplicateCheck,
		OutcomeFail: StateRejectedAnswer,
	},
	StateDuplicateCheck: {
		OutcomePass: StateAccepted,
		OutcomeFail: StateRejectedDuplicate,
	},
}

var actions = map[State]Action{
	StateAccepted:          ActionAccept,
	StateRejectedArtifact:  ActionRegenerate,
	StateRejectedAnswer:    ActionRegenerate,
	StateRejectedDuplicate: ActionRegenerate,
	StateRejectedMalformed: ActionRegenerate,
}

// Terminal reports whether no stage runs from s.
func (s State) Terminal() bool {
	_, ok := actions[s]
	return ok
}

// Rejected reports whether s is a rejecting terminal.
func (s State) Rejected() bool {
	return s.Terminal() && s != StateAccepted
}

// Next returns the state following s for the given outcome.
func Next(s State, o Outcome) (State, error) {
	row, ok := transitions[s]
	if !ok {
		return "", fmt.Errorf("validation: no transitions from state %q", s)
	}
	next, ok := row[o]
	if !ok {
		return "", fmt.Errorf("validation: no transition from %q on %q", s, o)
	}
	return next, nil
}

// ActionFor returns the action bound to a terminal state.
func ActionFor(s State) (Action, error) {
	a, ok := actions[s]
	if !ok {
		return "", fmt.Errorf("validation: %q is not a terminal state", s)
	}
	return a, nil
}

// RejectedStates lists the rejecting terminals in display order.
func RejectedStates() []State {
	return []State{StateRejectedArtifact, StateRejectedAnswer, StateRejectedDuplicate, StateRejectedMalformed}
}
