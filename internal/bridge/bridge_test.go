package bridge

import (
	"sync"
	"testing"
	"time"

	"github.com/ringline-ai/ringline/internal/session"
	"github.com/ringline-ai/ringline/pkg/provider/stt"
	sttmock "github.com/ringline-ai/ringline/pkg/provider/stt/mock"
)

type collector struct {
	mu    sync.Mutex
	texts []string
}

func (c *collector) add(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
}

func (c *collector) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.texts))
	copy(out, c.texts)
	return out
}

func TestFragmentsAggregateInOrder(t *testing.T) {
	t.Parallel()

	sess := session.New("CA1", "MS1")
	stream := sttmock.NewSession()
	var got collector
	b := New(sess, stream, got.add, WithDebounce(50*time.Millisecond))

	stream.Emit("I would")
	stream.Emit("like an")
	stream.Emit("appointment")
	time.Sleep(150 * time.Millisecond)

	texts := got.get()
	if len(texts) != 1 {
		t.Fatalf("got %d utterances %v, want 1", len(texts), texts)
	}
	if texts[0] != "I would like an appointment" {
		t.Errorf("aggregated = %q, want %q", texts[0], "I would like an appointment")
	}

	_ = stream.Close()
	b.Wait()
}

func TestDebounceSeparatesUtterances(t *testing.T) {
	t.Parallel()

	sess := session.New("CA1", "MS1")
	stream := sttmock.NewSession()
	var got collector
	b := New(sess, stream, got.add, WithDebounce(30*time.Millisecond))

	stream.Emit("first utterance")
	time.Sleep(100 * time.Millisecond)
	stream.Emit("second utterance")
	time.Sleep(100 * time.Millisecond)

	texts := got.get()
	if len(texts) != 2 {
		t.Fatalf("got %d utterances %v, want 2", len(texts), texts)
	}
	if texts[0] != "first utterance" || texts[1] != "second utterance" {
		t.Errorf("utterances = %v", texts)
	}

	_ = stream.Close()
	b.Wait()
}

func TestEmptyAndWhitespaceFragmentsIgnored(t *testing.T) {
	t.Parallel()

	sess := session.New("CA1", "MS1")
	stream := sttmock.NewSession()
	var got collector
	b := New(sess, stream, got.add, WithDebounce(30*time.Millisecond))

	stream.Emit("")
	stream.Emit("   ")
	time.Sleep(100 * time.Millisecond)

	if texts := got.get(); len(texts) != 0 {
		t.Errorf("blank fragments produced utterances %v", texts)
	}

	_ = stream.Close()
	b.Wait()
}

func TestPendingTextFlushedOnClose(t *testing.T) {
	t.Parallel()

	sess := session.New("CA1", "MS1")
	stream := sttmock.NewSession()
	var got collector
	b := New(sess, stream, got.add, WithDebounce(10*time.Second))

	stream.Emit("goodbye then")
	// Give the bridge a moment to consume the fragment before closing.
	time.Sleep(50 * time.Millisecond)
	_ = stream.Close()
	b.Wait()

	texts := got.get()
	if len(texts) != 1 || texts[0] != "goodbye then" {
		t.Errorf("utterances after close = %v, want [goodbye then]", texts)
	}
}

// rawStream lets tests emit interim transcripts, which the mock does not.
type rawStream struct {
	finals chan stt.Transcript
}

func (r *rawStream) SendAudio([]byte)              {}
func (r *rawStream) Finals() <-chan stt.Transcript { return r.finals }
func (r *rawStream) Close() error                  { close(r.finals); return nil }

func TestInterimResultsIgnored(t *testing.T) {
	t.Parallel()

	sess := session.New("CA1", "MS1")
	stream := &rawStream{finals: make(chan stt.Transcript, 8)}
	var got collector
	b := New(sess, stream, got.add, WithDebounce(30*time.Millisecond))

	stream.finals <- stt.Transcript{Text: "boo", IsFinal: false}
	stream.finals <- stt.Transcript{Text: "book an", IsFinal: true}
	stream.finals <- stt.Transcript{Text: "appointme", IsFinal: false}
	stream.finals <- stt.Transcript{Text: "appointment", IsFinal: true}
	time.Sleep(100 * time.Millisecond)

	texts := got.get()
	if len(texts) != 1 || texts[0] != "book an appointment" {
		t.Errorf("utterances = %v, want [book an appointment]", texts)
	}

	_ = stream.Close()
	b.Wait()
}
