package workflow

// State is a stage of one invoice's reconciliation run
type State string

const (
	StateExtracting State = "EXTRACTING"
	StateMatching   State = "MATCHING"
	StateDetecting  State = "DETECTING"
	StateResolving  State = "RESOLVING"
	StateReviewing  State = "REVIEWING"
	StateDone       State = "DONE"
	StateErrored    State = "ERRORED"
)

var validStates = map[State]bool{
	StateExtracting: true,
	StateMatching:   true,
	StateDetecting:  true,
	StateResolving:  true,
	StateReviewing:  true,
	StateDone:       true,
	StateErrored:    true,
}

var terminalStates = map[State]bool{
	StateDone:    true,
	StateErrored: true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}
