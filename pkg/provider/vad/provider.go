// Package vad defines the Classifier interface for voice-activity detection
// backends.
//
// A VAD classifier wraps a speech-probability model (e.g., a Silero VAD
// service) and answers one question per audio block: does this block contain
// speech? Classification is a remote call in the hot segmentation path, so
// implementations must honour context deadlines; the segmenter treats any
// classifier error as "not speech" and never blocks a call on a slow backend.
//
// Implementations must be safe for concurrent use; one classifier instance
// is shared by every active call.
package vad

import "context"

// Classifier is the abstraction over any VAD backend.
type Classifier interface {
	// IsSpeech reports whether the given block of raw 16-bit little-endian
	// mono PCM contains speech. The decision threshold is fixed at
	// construction time by the implementation.
	//
	// Returns an error if the backend cannot be reached or ctx expires;
	// callers decide how to degrade (the segmenter fails open to silence).
	IsSpeech(ctx context.Context, pcm []byte) (bool, error)
}
