// Package mock provides a test double for the tts.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/ringline-ai/ringline/pkg/provider/tts"
)

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Audio is returned by every Synthesize call. When nil, a short non-empty
	// PCM buffer is returned so callers exercise their framing path.
	Audio []byte

	// Err, if non-nil, is returned by every Synthesize call.
	Err error

	// Texts records the text of every Synthesize call in order.
	Texts []string
}

// Synthesize records the call and returns Audio, Err.
func (p *Provider) Synthesize(_ context.Context, text string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Texts = append(p.Texts, text)
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Audio != nil {
		return p.Audio, nil
	}
	return make([]byte, 640), nil // 20 ms of 16 kHz PCM
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Texts = nil
}

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)
