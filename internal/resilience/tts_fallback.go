package resilience

import (
	"context"
	"errors"

	"github.com/ringline-ai/ringline/pkg/provider/tts"
)

// NoTTS is the stand-in for deployments with no synthesis backend
// configured. Every turn stays silent.
var NoTTS tts.Provider = noTTS{}

type noTTS struct{}

func (noTTS) Synthesize(context.Context, string) ([]byte, error) {
	return nil, errors.New("tts: no provider configured")
}

// TTSFallback implements [tts.Provider] with automatic failover across
// multiple synthesis backends. Unlike dialogue, there is no built-in
// response: when every backend fails the error surfaces and the caller
// hears silence for that turn.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	cfg.Kind = "tts"
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional synthesis provider as a fallback.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Synthesize renders text with the first healthy provider.
func (f *TTSFallback) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) ([]byte, error) {
		return p.Synthesize(ctx, text)
	})
}
