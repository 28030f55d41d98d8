package stt

import (
	"context"
	"strings"
	"sync"
)

// overlapWords is how many trailing words of the previous transcript are
// checked against the head of the next one. Segment boundaries routinely
// split mid-word, so the service re-hears the tail of the last segment.
const overlapWords = 5

// OverlapFilter wraps a BatchTranscriber and strips the repeated overlap
// between consecutive segment transcripts. The remembered tail is one call's
// state: create one filter per call around the shared transcriber, never one
// for the whole process.
type OverlapFilter struct {
	next BatchTranscriber

	mu      sync.Mutex
	prevEnd string // trailing words of the previous transcript
}

// Compile-time assertion that OverlapFilter satisfies BatchTranscriber.
var _ BatchTranscriber = (*OverlapFilter)(nil)

// NewOverlapFilter creates a filter delegating to next.
func NewOverlapFilter(next BatchTranscriber) *OverlapFilter {
	return &OverlapFilter{next: next}
}

// Transcribe delegates to the wrapped transcriber and deduplicates the result.
func (f *OverlapFilter) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	text, err := f.next.Transcribe(ctx, pcm)
	if err != nil {
		return "", err
	}
	return f.deduplicate(strings.TrimSpace(text)), nil
}

// deduplicate strips a repeated overlap between the previous transcript's tail
// and the new transcript's head, then remembers the new tail.
func (f *OverlapFilter) deduplicate(text string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.prevEnd != "" && strings.HasPrefix(text, f.prevEnd) {
		text = strings.TrimSpace(text[len(f.prevEnd):])
	}

	words := strings.Fields(text)
	if len(words) > overlapWords {
		words = words[len(words)-overlapWords:]
	}
	f.prevEnd = strings.Join(words, " ")
	return text
}
