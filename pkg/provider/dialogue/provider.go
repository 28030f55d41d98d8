// Package dialogue defines the Provider interface for the external
// dialogue/text-completion capability and the typed conversation context the
// pipeline threads through it.
//
// The dialogue function is an opaque external collaborator: it receives the
// caller's utterance plus the current conversation context and returns an
// intent tag, the response text to speak, and an updated context. Everything
// about how that text is generated is out of scope here; the pipeline only
// depends on the shape of the exchange and on bounded latency with possible
// failure.
//
// Implementations must be safe for concurrent use.
package dialogue

import "context"

// Intent tags the dialogue function may return. Anything else routes to
// IntentFallback.
const (
	IntentSchedule  = "schedule"
	IntentInquiry   = "inquiry"
	IntentSmalltalk = "smalltalk"
	IntentFallback  = "fallback"
)

// Details holds the scheduling fields collected over the conversation.
// Empty strings mean "not provided yet".
type Details struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Duration string `json:"duration"`
	Staff    string `json:"staff"`
}

// Context is the typed conversation state carried across turns. Named fields
// replace an open-ended map so invalid states are unrepresentable.
type Context struct {
	// CurrentState is the dialog state name (e.g. "Initial Greeting").
	CurrentState string `json:"currentState"`

	// UserIntention is the last classified intention of the caller.
	UserIntention string `json:"userIntention"`

	// UserName is the caller's name, when they have given one.
	UserName string `json:"userName"`

	// Details are the scheduling fields collected so far.
	Details Details `json:"collectedDetails"`

	// BookingConfirmed is set once the caller has confirmed a booking.
	BookingConfirmed bool `json:"bookingConfirmed"`
}

// Request is one dialogue exchange: what the caller said plus where the
// conversation stands.
type Request struct {
	// Utterance is the caller's transcribed speech.
	Utterance string

	// Context is the conversation state going into this turn.
	Context Context
}

// Result is the dialogue function's structured answer.
type Result struct {
	// Intent is the classified intent tag; see the Intent constants.
	Intent string `json:"intent"`

	// ResponseText is the reply to speak to the caller. May be empty on a
	// misbehaving backend; the router substitutes an apology so the
	// synthesizer never receives empty text.
	ResponseText string `json:"response_text"`

	// NextState is the dialog state the conversation moves to.
	NextState string `json:"nextState"`

	// CheckAvailability signals the scheduling handler to consult the
	// calendar before confirming.
	CheckAvailability bool `json:"check_availability"`

	// UpdatedContext is the conversation state after this turn. It is merged
	// into the session by the orchestrator.
	UpdatedContext Context `json:"updatedContext"`
}

// Provider is the abstraction over the external dialogue function.
type Provider interface {
	// Complete runs one dialogue exchange. Transient server-side failures
	// should be reported as a StatusError so callers can retry them.
	Complete(ctx context.Context, req Request) (*Result, error)
}
