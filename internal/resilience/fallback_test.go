package resilience

import (
	"errors"
	"testing"
	"time"
)

// speechBackend stands in for a synthesis or dialogue provider in a group.
type speechBackend struct {
	name  string
	err   error // returned on every call when set
	calls int
}

func (b *speechBackend) speak() ([]byte, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	return []byte(b.name), nil
}

func newSpeechGroup(primary, fallback *speechBackend) *FallbackGroup[*speechBackend] {
	fg := NewFallbackGroup(primary, primary.name, FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
		Kind:           "tts",
	})
	fg.AddFallback(fallback.name, fallback)
	return fg
}

func TestFallbackGroupHealthyPrimarySpeaks(t *testing.T) {
	elevenlabs := &speechBackend{name: "elevenlabs"}
	mock := &speechBackend{name: "mock"}
	fg := newSpeechGroup(elevenlabs, mock)

	err := fg.Execute(func(b *speechBackend) error {
		_, err := b.speak()
		return err
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elevenlabs.calls != 1 || mock.calls != 0 {
		t.Fatalf("calls = %d/%d, want the primary only", elevenlabs.calls, mock.calls)
	}
}

func TestFallbackGroupFailsOverToNextBackend(t *testing.T) {
	elevenlabs := &speechBackend{name: "elevenlabs", err: errBackendDown}
	mock := &speechBackend{name: "mock"}
	fg := newSpeechGroup(elevenlabs, mock)

	err := fg.Execute(func(b *speechBackend) error {
		_, err := b.speak()
		return err
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.calls != 1 {
		t.Fatalf("fallback calls = %d, want 1", mock.calls)
	}
}

func TestFallbackGroupAllBackendsDown(t *testing.T) {
	elevenlabs := &speechBackend{name: "elevenlabs", err: errBackendDown}
	mock := &speechBackend{name: "mock", err: errBackendDown}
	fg := newSpeechGroup(elevenlabs, mock)

	err := fg.Execute(func(b *speechBackend) error {
		_, err := b.speak()
		return err
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroupSkipsTrippedPrimary(t *testing.T) {
	elevenlabs := &speechBackend{name: "elevenlabs", err: errBackendDown}
	mock := &speechBackend{name: "mock"}
	fg := NewFallbackGroup(elevenlabs, elevenlabs.name, FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{
			MaxFailures:  2,
			ResetTimeout: time.Hour,
		},
		Kind: "tts",
	})
	fg.AddFallback(mock.name, mock)

	// Two failed turns trip the primary's breaker.
	for i := 0; i < 2; i++ {
		_ = fg.Execute(func(b *speechBackend) error {
			_, err := b.speak()
			return err
		})
	}
	primaryCalls := elevenlabs.calls

	// Later turns must skip the tripped primary entirely.
	err := fg.Execute(func(b *speechBackend) error {
		_, err := b.speak()
		return err
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elevenlabs.calls != primaryCalls {
		t.Fatalf("primary calls = %d, want %d (open breaker must shield it)",
			elevenlabs.calls, primaryCalls)
	}
}

func TestExecuteWithResultReturnsPrimaryAudio(t *testing.T) {
	elevenlabs := &speechBackend{name: "elevenlabs"}
	mock := &speechBackend{name: "mock"}
	fg := newSpeechGroup(elevenlabs, mock)

	audio, err := ExecuteWithResult(fg, func(b *speechBackend) ([]byte, error) {
		return b.speak()
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(audio) != "elevenlabs" {
		t.Fatalf("audio = %q, want the primary's", audio)
	}
}

func TestExecuteWithResultFailsOver(t *testing.T) {
	elevenlabs := &speechBackend{name: "elevenlabs", err: errBackendDown}
	mock := &speechBackend{name: "mock"}
	fg := newSpeechGroup(elevenlabs, mock)

	audio, err := ExecuteWithResult(fg, func(b *speechBackend) ([]byte, error) {
		return b.speak()
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(audio) != "mock" {
		t.Fatalf("audio = %q, want the fallback's", audio)
	}
}

func TestExecuteWithResultAllFail(t *testing.T) {
	elevenlabs := &speechBackend{name: "elevenlabs", err: errBackendDown}
	fg := NewFallbackGroup(elevenlabs, elevenlabs.name, FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
		Kind:           "tts",
	})

	_, err := ExecuteWithResult(fg, func(b *speechBackend) ([]byte, error) {
		return b.speak()
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
