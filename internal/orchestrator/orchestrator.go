// Package orchestrator drives one call's turn cycle: completed utterance in,
// dialogue exchange, synthesized speech out, then back to listening.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/ringline-ai/ringline/internal/observe"
	"github.com/ringline-ai/ringline/internal/session"
	"github.com/ringline-ai/ringline/pkg/provider/dialogue"
)

// defaultSettleDelay is how long after speaking finishes the session waits
// before listening again, letting trailing audio drain.
const defaultSettleDelay = 400 * time.Millisecond

// apologyResponse replaces an empty dialogue response. The synthesizer is
// never invoked with empty text.
const apologyResponse = "I'm sorry, I didn't quite catch that. Could you say it again?"

// Speaker synthesizes and plays one response on the call.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Orchestrator owns the turn state machine for one call.
type Orchestrator struct {
	sess     *session.Session
	dialogue dialogue.Provider
	speaker  Speaker
	logger   *slog.Logger
	metrics  *observe.Metrics
	settle   time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithSettleDelay overrides the post-response settle delay.
func WithSettleDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.settle = d
		}
	}
}

// New creates an Orchestrator for one call.
func New(sess *session.Session, dlg dialogue.Provider, speaker Speaker, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sess:     sess,
		dialogue: dlg,
		speaker:  speaker,
		logger:   slog.Default(),
		metrics:  observe.DefaultMetrics(),
		settle:   defaultSettleDelay,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HandleUtterance processes one completed utterance. Both transcription
// paths deliver here; duplicates within the suppression window and
// utterances arriving while a previous turn still owns the session are
// dropped. Blocks until the response has been handed to the transport, then
// schedules the settle-delay return to listening and returns.
func (o *Orchestrator) HandleUtterance(ctx context.Context, text string) {
	if text == "" {
		return
	}
	if o.sess.SeenRecently(text) {
		o.logger.Debug("dropping duplicate transcript", "text", text)
		return
	}
	if !o.sess.TransitionTo(session.StateProcessing) {
		o.logger.Debug("dropping transcript, session busy",
			"state", o.sess.State().String(), "text", text)
		return
	}

	ctx, span := observe.StartSpan(ctx, "orchestrator.turn")
	defer span.End()
	logger := o.logger
	if id := observe.CorrelationID(ctx); id != "" {
		logger = logger.With("trace_id", id)
	}
	turnStart := time.Now()
	baseline := o.sess.TurnBaseline()

	logger.Info("utterance", "text", text)

	dlgStart := time.Now()
	result, err := o.dialogue.Complete(ctx, dialogue.Request{
		Utterance: text,
		Context:   o.sess.DialogueContext(),
	})
	o.metrics.DialogueDuration.Record(ctx, time.Since(dlgStart).Seconds())
	o.sess.Mark("dialogue_done")
	if err != nil {
		logger.Error("dialogue exchange failed", "error", err)
		result = &dialogue.Result{
			Intent:         dialogue.IntentFallback,
			UpdatedContext: o.sess.DialogueContext(),
		}
	}

	response := o.route(result)
	o.sess.UpdateDialogueContext(result.UpdatedContext)
	o.sess.RecordExchange(text, response)

	o.sess.TransitionTo(session.StateResponding)
	ttsStart := time.Now()
	if err := o.speaker.Speak(ctx, response); err != nil {
		logger.Error("response synthesis failed", "error", err)
	}
	o.metrics.TTSDuration.Record(ctx, time.Since(ttsStart).Seconds())
	o.sess.Mark("tts_done")
	o.metrics.TurnDuration.Record(ctx, time.Since(turnStart).Seconds())

	time.AfterFunc(o.settle, func() { o.finishTurn(baseline) })
}

// finishTurn returns the session to listening after the settle delay and
// resets the turn's timing so the next utterance starts a fresh baseline.
// baseline identifies the finished turn; a newer one survives the reset.
func (o *Orchestrator) finishTurn(baseline time.Time) {
	o.sess.TransitionTo(session.StateListening)
	o.sess.DumpTimingAndReset(baseline)
}

// route maps the dialogue result's declared intent to a response. It is
// total: unknown intents are handled as fallback, and the returned text is
// never empty.
func (o *Orchestrator) route(result *dialogue.Result) string {
	intent := result.Intent
	switch intent {
	case dialogue.IntentSchedule:
		if result.CheckAvailability {
			o.logger.Info("availability check requested",
				"date", result.UpdatedContext.Details.Date,
				"time", result.UpdatedContext.Details.Time)
		}
	case dialogue.IntentInquiry, dialogue.IntentSmalltalk:
	default:
		intent = dialogue.IntentFallback
	}
	o.logger.Debug("routed intent", "intent", intent)

	if result.ResponseText == "" {
		return apologyResponse
	}
	return result.ResponseText
}
