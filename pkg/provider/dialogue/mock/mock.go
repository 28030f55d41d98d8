// Package mock provides a scripted dialogue provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/ringline-ai/ringline/pkg/provider/dialogue"
)

// Provider is a dialogue.Provider that returns scripted results in order.
// All fields must be configured before first use.
type Provider struct {
	mu sync.Mutex

	// Results are returned one per Complete call, in order. When exhausted,
	// Default is returned.
	Results []*dialogue.Result

	// Default is returned once Results is drained. If nil, a smalltalk echo
	// result is synthesized.
	Default *dialogue.Result

	// Err, when set, is returned by every Complete call.
	Err error

	// Requests records every request passed to Complete.
	Requests []dialogue.Request
}

var _ dialogue.Provider = (*Provider)(nil)

func (p *Provider) Complete(_ context.Context, req dialogue.Request) (*dialogue.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Requests = append(p.Requests, req)
	if p.Err != nil {
		return nil, p.Err
	}
	if len(p.Results) > 0 {
		r := p.Results[0]
		p.Results = p.Results[1:]
		return r, nil
	}
	if p.Default != nil {
		return p.Default, nil
	}
	return &dialogue.Result{
		Intent:         dialogue.IntentSmalltalk,
		ResponseText:   "You said: " + req.Utterance,
		UpdatedContext: req.Context,
	}, nil
}

// CompleteCount returns how many Complete calls were recorded.
func (p *Provider) CompleteCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}
