// Package tts defines the Provider interface for text-to-speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs) and
// returns one complete utterance of 16-bit little-endian mono PCM per request.
// The synthesizer owns converting that PCM to the transport's wire encoding;
// providers only speak their service's native formats.
//
// Implementations must be safe for concurrent use; one provider instance
// serves every active call.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text into 16 kHz 16-bit little-endian mono PCM.
	// text must be non-empty; providers should reject empty input rather than
	// produce silence.
	//
	// Failures carry the backend's HTTP-style status where available so
	// callers can log them meaningfully; the synthesizer treats every error
	// as "this turn stays silent".
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
