// Package bridge aggregates final transcripts from a streaming transcription
// session into completed utterances using a debounce window.
package bridge

import (
	"log/slog"
	"strings"
	"time"

	"github.com/ringline-ai/ringline/internal/session"
	"github.com/ringline-ai/ringline/pkg/provider/stt"
)

// defaultDebounce is how long the bridge waits after a final fragment before
// declaring the utterance complete. Streaming services often emit several
// finals in quick succession for one sentence.
const defaultDebounce = 300 * time.Millisecond

// Bridge consumes final transcripts from one call's streaming session and
// invokes the completion callback once no further fragment arrives within
// the debounce window. Fragments are joined in arrival order.
type Bridge struct {
	sess       *session.Session
	onComplete func(text string)
	logger     *slog.Logger
	debounce   time.Duration

	done chan struct{}
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithDebounce overrides the debounce window.
func WithDebounce(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.debounce = d
		}
	}
}

// New starts a bridge reading finals from the stream. onComplete receives
// each aggregated utterance on the bridge's goroutine. The bridge stops when
// the stream's Finals channel closes; pending text is flushed on shutdown so
// a transcript arriving just before hangup is not lost.
func New(sess *session.Session, stream stt.SessionHandle, onComplete func(string), opts ...Option) *Bridge {
	b := &Bridge{
		sess:       sess,
		onComplete: onComplete,
		logger:     slog.Default(),
		debounce:   defaultDebounce,
		done:       make(chan struct{}),
	}
	for _, o := range opts {
		o(b)
	}
	go b.run(stream.Finals())
	return b
}

// Wait blocks until the bridge's goroutine has exited.
func (b *Bridge) Wait() {
	<-b.done
}

func (b *Bridge) run(finals <-chan stt.Transcript) {
	defer close(b.done)

	var pending []string
	timer := time.NewTimer(b.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	complete := func() {
		armed = false
		text := strings.TrimSpace(strings.Join(pending, " "))
		pending = pending[:0]
		if text == "" {
			return
		}
		b.sess.Mark("stt_done")
		b.logger.Debug("utterance complete", "text", text)
		if b.onComplete != nil {
			b.onComplete(text)
		}
	}

	for {
		select {
		case tr, ok := <-finals:
			if !ok {
				if armed {
					if !timer.Stop() {
						<-timer.C
					}
					complete()
				}
				return
			}
			if !tr.IsFinal {
				continue
			}
			text := strings.TrimSpace(tr.Text)
			if text == "" {
				continue
			}
			pending = append(pending, text)
			if armed && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(b.debounce)
			armed = true
		case <-timer.C:
			complete()
		}
	}
}
