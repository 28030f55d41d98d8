package session

// AudioState is the per-call turn-taking state.
type AudioState int

const (
	// StateListening accepts caller audio and feeds it downstream.
	StateListening AudioState = iota
	// StateProcessing means an utterance is being transcribed or routed.
	StateProcessing
	// StateResponding means synthesized speech is being played back.
	StateResponding
	// StateCancelling means an in-flight response is being torn down.
	StateCancelling
)

// String returns the state name in the uppercase form used in logs and in
// the dialogue context.
func (s AudioState) String() string {
	switch s {
	case StateListening:
		return "LISTENING"
	case StateProcessing:
		return "PROCESSING"
	case StateResponding:
		return "RESPONDING"
	case StateCancelling:
		return "CANCELLING"
	default:
		return "UNKNOWN"
	}
}

// validTransitions enumerates the allowed state machine edges. Anything not
// listed is rejected, which keeps late transcripts from reviving a turn that
// already moved on.
var validTransitions = map[AudioState][]AudioState{
	StateListening:  {StateProcessing, StateCancelling},
	StateProcessing: {StateResponding, StateCancelling},
	StateResponding: {StateListening, StateCancelling},
	StateCancelling: {StateListening},
}

// canTransition reports whether moving from one state to the other is allowed.
// A self-transition is always a no-op and reported as not allowed.
func canTransition(from, to AudioState) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
