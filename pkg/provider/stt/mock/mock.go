// Package mock provides test doubles for the stt package interfaces.
//
// Use StreamProvider/Session to feed scripted final transcripts into the
// bridge and inspect the audio that was forwarded. Use Batch to script the
// result of segment transcription.
package mock

import (
	"context"
	"sync"

	"github.com/ringline-ai/ringline/pkg/provider/stt"
)

// StreamProvider is a mock implementation of stt.StreamProvider.
type StreamProvider struct {
	mu sync.Mutex

	// Session is returned by StartStream. If nil, a new default Session is
	// created and recorded in Sessions.
	Session *Session

	// StartErr, if non-nil, is returned as the error from StartStream.
	StartErr error

	// Configs records the StreamConfig of every StartStream call.
	Configs []stt.StreamConfig

	// Sessions records every session handed out.
	Sessions []*Session
}

// StartStream records the call and returns Session, StartErr.
func (p *StreamProvider) StartStream(_ context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Configs = append(p.Configs, cfg)
	if p.StartErr != nil {
		return nil, p.StartErr
	}
	s := p.Session
	if s == nil {
		s = NewSession()
	}
	p.Sessions = append(p.Sessions, s)
	return s, nil
}

// Compile-time assertion.
var _ stt.StreamProvider = (*StreamProvider)(nil)

// Session is a mock implementation of stt.SessionHandle. Feed transcripts to
// consumers with Emit; the channel closes on Close.
type Session struct {
	mu     sync.Mutex
	finals chan stt.Transcript
	closed bool

	// SentFrames records every frame passed to SendAudio.
	SentFrames [][]byte

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// NewSession creates a ready-to-use mock session.
func NewSession() *Session {
	return &Session{finals: make(chan stt.Transcript, 64)}
}

// SendAudio records the frame. Frames sent after Close are dropped, matching
// the real session contract.
func (s *Session) SendAudio(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	s.SentFrames = append(s.SentFrames, cp)
}

// Finals returns the transcript channel.
func (s *Session) Finals() <-chan stt.Transcript { return s.finals }

// Emit delivers one final transcript to the Finals channel.
func (s *Session) Emit(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.finals <- stt.Transcript{Text: text, IsFinal: true, Confidence: 1.0}
}

// Close marks the session closed and closes the Finals channel.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	if !s.closed {
		s.closed = true
		close(s.finals)
	}
	return nil
}

// Compile-time assertion.
var _ stt.SessionHandle = (*Session)(nil)

// TranscribeCall records a single invocation of Batch.Transcribe.
type TranscribeCall struct {
	// PCM is a copy of the segment passed to Transcribe.
	PCM []byte
}

// Batch is a mock implementation of stt.BatchTranscriber.
type Batch struct {
	mu sync.Mutex

	// Results is consumed one entry per Transcribe call. When exhausted,
	// Default is returned.
	Results []string

	// Default is returned once Results is exhausted.
	Default string

	// Err, if non-nil, is returned by every Transcribe call.
	Err error

	// Calls records every Transcribe invocation in order.
	Calls []TranscribeCall
}

// Transcribe records the call and returns the next scripted result.
func (b *Batch) Transcribe(_ context.Context, pcm []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	b.Calls = append(b.Calls, TranscribeCall{PCM: cp})
	if b.Err != nil {
		return "", b.Err
	}
	if len(b.Results) > 0 {
		r := b.Results[0]
		b.Results = b.Results[1:]
		return r, nil
	}
	return b.Default, nil
}

// Compile-time assertion.
var _ stt.BatchTranscriber = (*Batch)(nil)
