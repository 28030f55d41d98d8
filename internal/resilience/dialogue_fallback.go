package resilience

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ringline-ai/ringline/pkg/provider/dialogue"
)

// NoDialogue is the stand-in for deployments with no dialogue backend
// configured. Wrapped in a [DialogueFallback], every turn gets the built-in
// apology response.
var NoDialogue dialogue.Provider = noDialogue{}

type noDialogue struct{}

func (noDialogue) Complete(context.Context, dialogue.Request) (*dialogue.Result, error) {
	return nil, errors.New("dialogue: no provider configured")
}

// fallbackResponse is spoken when every dialogue backend is unavailable.
const fallbackResponse = "I'm sorry, I'm having trouble understanding right now. Could you please repeat that?"

// DialogueFallback implements [dialogue.Provider] with automatic failover
// across multiple dialogue backends. Each backend has its own circuit
// breaker, and server-class errors get exactly one automatic retry before
// the next backend is tried. When every backend fails, a built-in apology
// response is returned instead of an error so the caller always hears
// something.
type DialogueFallback struct {
	group *FallbackGroup[dialogue.Provider]
}

// Compile-time interface assertion.
var _ dialogue.Provider = (*DialogueFallback)(nil)

// NewDialogueFallback creates a [DialogueFallback] with primary as the
// preferred backend.
func NewDialogueFallback(primary dialogue.Provider, primaryName string, cfg FallbackConfig) *DialogueFallback {
	cfg.Kind = "dialogue"
	return &DialogueFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional dialogue provider as a fallback.
func (f *DialogueFallback) AddFallback(name string, provider dialogue.Provider) {
	f.group.AddFallback(name, provider)
}

// Complete sends the request to the first healthy provider. Server-class
// failures (HTTP 5xx) are retried once per provider before failing over.
func (f *DialogueFallback) Complete(ctx context.Context, req dialogue.Request) (*dialogue.Result, error) {
	result, err := ExecuteWithResult(f.group, func(p dialogue.Provider) (*dialogue.Result, error) {
		return RetryOnce(ctx, dialogue.IsServerError, func(ctx context.Context) (*dialogue.Result, error) {
			return p.Complete(ctx, req)
		})
	})
	if err != nil {
		slog.Error("all dialogue backends failed, using built-in response", "error", err)
		return &dialogue.Result{
			Intent:         dialogue.IntentFallback,
			ResponseText:   fallbackResponse,
			UpdatedContext: req.Context,
		}, nil
	}
	return result, nil
}
