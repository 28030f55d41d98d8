// Package stt defines the provider interfaces for speech-to-text backends.
//
// Two access patterns exist side by side, mirroring the two transcription
// paths in the call pipeline:
//
//   - StreamProvider opens a persistent session that accepts raw audio frames
//     and emits Transcript values as the service produces them. The
//     TranscriptionBridge consumes only final transcripts from this stream.
//   - BatchTranscriber transcribes one complete speech segment in a single
//     request. The segmenter uses it when it flushes an utterance.
//
// Implementations must be safe for concurrent use; one provider instance
// serves every active call, with one streaming session per call.
package stt

import "context"

// Transcript is a speech-to-text result. Both partial (interim) and final
// results use this type; only finals are authoritative.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// IsFinal indicates a final (committed) result rather than an interim guess.
	IsFinal bool

	// Confidence is the provider's confidence score (0.0–1.0), zero when the
	// provider does not report one.
	Confidence float64
}

// StreamConfig describes the audio format for a new streaming session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz of the frames sent to the
	// session. The telephone leg sends 8 kHz μ-law frames as-is.
	SampleRate int

	// Language is the recognition language code (e.g. "en"). Empty lets the
	// provider use its default.
	Language string
}

// SessionHandle is an open streaming transcription session.
//
// Callers must call Close when the call ends; failing to do so leaks the
// provider's network connection and goroutines. All methods are safe for
// concurrent use.
type SessionHandle interface {
	// SendAudio delivers one raw audio frame to the provider. Sends after the
	// session has closed are silently dropped; transport frames routinely
	// race the session teardown at call end and must not surface as errors.
	SendAudio(frame []byte)

	// Finals returns a read-only channel emitting final transcripts in the
	// order the provider committed them. Closed when the session ends.
	Finals() <-chan Transcript

	// Close terminates the session and releases its resources. Safe to call
	// more than once; subsequent calls return nil.
	Close() error
}

// StreamProvider opens persistent streaming transcription sessions.
type StreamProvider interface {
	// StartStream opens a new session ready to accept audio. Returns an error
	// if the connection cannot be established or ctx is already done.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}

// BatchTranscriber transcribes a complete speech segment in one request.
type BatchTranscriber interface {
	// Transcribe returns the text for the given raw 16-bit little-endian mono
	// PCM. An empty string with a nil error means the service heard nothing.
	Transcribe(ctx context.Context, pcm []byte) (string, error)
}
