// Package mock provides a test double for the vad.Classifier interface.
//
// Use Classifier to script per-call speech decisions and inspect the PCM
// blocks that were submitted for classification.
//
// Example:
//
//	cls := &mock.Classifier{Decisions: []bool{true, true, false}}
//	seg := segmenter.New(cls, ...)
package mock

import (
	"context"
	"sync"

	"github.com/ringline-ai/ringline/pkg/provider/vad"
)

// IsSpeechCall records a single invocation of Classifier.IsSpeech.
type IsSpeechCall struct {
	// PCM is a copy of the bytes passed to IsSpeech.
	PCM []byte
}

// Classifier is a mock implementation of vad.Classifier.
type Classifier struct {
	mu sync.Mutex

	// Decisions is consumed one entry per IsSpeech call. When exhausted (or
	// empty), Default is returned instead.
	Decisions []bool

	// Default is the decision returned once Decisions is exhausted.
	Default bool

	// Err, if non-nil, is returned by every IsSpeech call.
	Err error

	// Calls records every call to IsSpeech in order.
	Calls []IsSpeechCall
}

// IsSpeech records the call and returns the next scripted decision.
func (c *Classifier) IsSpeech(_ context.Context, pcm []byte) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	c.Calls = append(c.Calls, IsSpeechCall{PCM: cp})
	if c.Err != nil {
		return false, c.Err
	}
	if len(c.Decisions) > 0 {
		d := c.Decisions[0]
		c.Decisions = c.Decisions[1:]
		return d, nil
	}
	return c.Default, nil
}

// CallCount returns how many IsSpeech calls were recorded. Thread-safe.
func (c *Classifier) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = nil
}

// Ensure Classifier implements vad.Classifier at compile time.
var _ vad.Classifier = (*Classifier)(nil)
