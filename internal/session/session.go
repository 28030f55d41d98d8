// Package session tracks per-call conversational state: the turn-taking
// state machine, the dialogue context carried between exchanges, latency
// marks, and duplicate transcript suppression.
package session

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ringline-ai/ringline/pkg/provider/dialogue"
)

// duplicateWindow is how long a transcript suppresses an identical follow-up.
// The batch flush path and the streaming path can both deliver the same
// utterance; the second arrival within this window is dropped.
const duplicateWindow = 3 * time.Second

// Session is the state for one active call. All methods are safe for
// concurrent use.
type Session struct {
	// ID is a process-unique identifier assigned at creation.
	ID string
	// CallID is the telephony provider's call identifier.
	CallID string
	// StreamID identifies the media stream for outbound events.
	StreamID string

	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    AudioState
	dctx     dialogue.Context
	start    time.Time
	marks    []mark
	lastText string
	lastAt   time.Time
	history  []Exchange
	closers  []func()
	closed   bool
}

// Exchange is one completed caller/assistant turn, kept for the end-of-call
// summary.
type Exchange struct {
	Caller    string
	Assistant string
	At        time.Time
}

type mark struct {
	name string
	at   time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New creates a session in the listening state.
func New(callID, streamID string, opts ...Option) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		CallID:   callID,
		StreamID: streamID,
		logger:   slog.Default(),
		now:      time.Now,
		state:    StateListening,
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("session", s.ID, "call", callID)
	return s
}

// State returns the current turn-taking state.
func (s *Session) State() AudioState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TransitionTo moves the state machine to the given state if the edge is
// valid. Invalid transitions are ignored and reported false; callers use the
// return value to discard work that arrived too late.
func (s *Session) TransitionTo(to AudioState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !canTransition(s.state, to) {
		s.logger.Debug("ignoring invalid state transition",
			"from", s.state.String(), "to", to.String())
		return false
	}
	s.logger.Debug("state transition", "from", s.state.String(), "to", to.String())
	s.state = to
	s.dctx.CurrentState = to.String()
	return true
}

// MarkStart records the timing baseline. Later marks are reported as offsets
// from it. Only the first call per turn takes effect.
func (s *Session) MarkStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.start.IsZero() {
		return
	}
	s.start = s.now()
}

// Mark records a named timing point for the current turn. Marks recorded
// before MarkStart are dropped.
func (s *Session) Mark(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.start.IsZero() {
		return
	}
	s.marks = append(s.marks, mark{name: name, at: s.now()})
}

// TurnBaseline returns the current turn's timing baseline, zero when no turn
// has started.
func (s *Session) TurnBaseline() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start
}

// DumpTimingAndReset logs all marks for the turn that started at baseline as
// millisecond offsets, then clears them so the next turn starts fresh. When a
// newer baseline is already armed (playback can finish before the settle
// delay, letting the next utterance begin), the new turn's timing is left
// untouched and only the finished turn's marks are discarded.
func (s *Session) DumpTimingAndReset(baseline time.Time) {
	s.mu.Lock()
	if !s.start.IsZero() && !s.start.Equal(baseline) {
		kept := s.marks[:0]
		for _, m := range s.marks {
			if !m.at.Before(s.start) {
				kept = append(kept, m)
			}
		}
		s.marks = kept
		s.mu.Unlock()
		return
	}
	marks := s.marks
	start := s.start
	s.marks = nil
	s.start = time.Time{}
	s.mu.Unlock()

	if start.IsZero() || len(marks) == 0 {
		return
	}
	attrs := make([]any, 0, len(marks)*2)
	for _, m := range marks {
		attrs = append(attrs, m.name, m.at.Sub(start).Milliseconds())
	}
	s.logger.Info("turn timing (ms)", attrs...)
}

// SeenRecently reports whether an identical transcript was already accepted
// within the duplicate window, recording the text either way. Comparison is
// case-insensitive after trimming.
func (s *Session) SeenRecently(text string) bool {
	norm := strings.ToLower(strings.TrimSpace(text))
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	dup := norm != "" && norm == s.lastText && now.Sub(s.lastAt) < duplicateWindow
	s.lastText = norm
	s.lastAt = now
	return dup
}

// DialogueContext returns a copy of the accumulated dialogue context.
func (s *Session) DialogueContext() dialogue.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dctx
}

// UpdateDialogueContext replaces the dialogue context with the provider's
// updated copy, preserving the state machine as the source of truth for
// currentState.
func (s *Session) UpdateDialogueContext(c dialogue.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.CurrentState = s.state.String()
	s.dctx = c
}

// RecordExchange appends a finished turn to the call history.
func (s *Session) RecordExchange(caller, assistant string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Exchange{
		Caller:    caller,
		Assistant: assistant,
		At:        s.now(),
	})
}

// History returns the recorded exchanges in order.
func (s *Session) History() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Exchange, len(s.history))
	copy(out, s.history)
	return out
}

// Summary renders a plain-text digest of the call for the end-of-call log.
func (s *Session) Summary() string {
	hist := s.History()
	if len(hist) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, ex := range hist {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("Caller: ")
		sb.WriteString(ex.Caller)
		sb.WriteString("\nAssistant: ")
		sb.WriteString(ex.Assistant)
	}
	return sb.String()
}

// OnClose registers a teardown hook. Hooks run once, in reverse registration
// order, when Close is called. Registering after Close runs the hook
// immediately.
func (s *Session) OnClose(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fn()
		return
	}
	s.closers = append(s.closers, fn)
	s.mu.Unlock()
}

// Close runs all registered teardown hooks. Subsequent calls are no-ops.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}
