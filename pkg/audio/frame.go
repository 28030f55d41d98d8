// Package audio provides the audio primitives shared across the Ringline
// pipeline: the Frame transport unit, the μ-law codec used on the
// telephone leg, and PCM resampling between the telephony rate (8 kHz) and
// the rate the acoustic services expect (16 kHz).
package audio

import "time"

// Telephone media stream constants. The transport delivers fixed-size μ-law
// frames at 8 kHz mono; one network frame carries 20 ms of audio.
const (
	// SampleRate is the telephony sample rate in Hz.
	SampleRate = 8000

	// WideSampleRate is the rate the VAD and STT services consume.
	WideSampleRate = 16000

	// FrameBytes is the size of one inbound μ-law frame (20 ms @ 8 kHz).
	FrameBytes = 160

	// FrameDuration is the wall-clock span covered by one frame.
	FrameDuration = 20 * time.Millisecond
)

// Frame is a single fixed-size chunk of encoded audio received from or sent
// to the media transport. Frames are immutable once received; pipeline stages
// must not modify Data in place.
type Frame struct {
	// Data is raw μ-law bytes, normally FrameBytes long for inbound media.
	Data []byte

	// Timestamp marks when this frame was received, relative to stream start.
	Timestamp time.Duration
}

// PlaybackDuration returns how long the given amount of 8 kHz μ-law audio
// takes to play. One byte is one sample, 8 samples per millisecond.
func PlaybackDuration(n int) time.Duration {
	return time.Duration(n/8) * time.Millisecond
}
