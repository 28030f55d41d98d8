package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ringline-ai/ringline/pkg/provider/dialogue"
	"github.com/ringline-ai/ringline/pkg/provider/stt"
	"github.com/ringline-ai/ringline/pkg/provider/tts"
	"github.com/ringline-ai/ringline/pkg/provider/vad"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	vad       map[string]func(ProviderEntry) (vad.Classifier, error)
	sttStream map[string]func(ProviderEntry) (stt.StreamProvider, error)
	sttBatch  map[string]func(ProviderEntry) (stt.BatchTranscriber, error)
	dialogue  map[string]func(ProviderEntry) (dialogue.Provider, error)
	tts       map[string]func(ProviderEntry) (tts.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		vad:       make(map[string]func(ProviderEntry) (vad.Classifier, error)),
		sttStream: make(map[string]func(ProviderEntry) (stt.StreamProvider, error)),
		sttBatch:  make(map[string]func(ProviderEntry) (stt.BatchTranscriber, error)),
		dialogue:  make(map[string]func(ProviderEntry) (dialogue.Provider, error)),
		tts:       make(map[string]func(ProviderEntry) (tts.Provider, error)),
	}
}

// RegisterVAD registers a voice-activity classifier factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterVAD(name string, factory func(ProviderEntry) (vad.Classifier, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vad[name] = factory
}

// RegisterSTTStream registers a streaming transcription provider factory under name.
func (r *Registry) RegisterSTTStream(name string, factory func(ProviderEntry) (stt.StreamProvider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sttStream[name] = factory
}

// RegisterSTTBatch registers a batch transcriber factory under name.
func (r *Registry) RegisterSTTBatch(name string, factory func(ProviderEntry) (stt.BatchTranscriber, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sttBatch[name] = factory
}

// RegisterDialogue registers a dialogue provider factory under name.
func (r *Registry) RegisterDialogue(name string, factory func(ProviderEntry) (dialogue.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dialogue[name] = factory
}

// RegisterTTS registers a speech synthesis provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// CreateVAD instantiates a classifier using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateVAD(entry ProviderEntry) (vad.Classifier, error) {
	r.mu.RLock()
	factory, ok := r.vad[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSTTStream instantiates a streaming transcription provider using the
// factory registered under entry.Name.
func (r *Registry) CreateSTTStream(entry ProviderEntry) (stt.StreamProvider, error) {
	r.mu.RLock()
	factory, ok := r.sttStream[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt_stream/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSTTBatch instantiates a batch transcriber using the factory
// registered under entry.Name.
func (r *Registry) CreateSTTBatch(entry ProviderEntry) (stt.BatchTranscriber, error) {
	r.mu.RLock()
	factory, ok := r.sttBatch[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt_batch/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateDialogue instantiates a dialogue provider using the factory
// registered under entry.Name.
func (r *Registry) CreateDialogue(entry ProviderEntry) (dialogue.Provider, error) {
	r.mu.RLock()
	factory, ok := r.dialogue[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: dialogue/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTTS instantiates a synthesis provider using the factory registered
// under entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
