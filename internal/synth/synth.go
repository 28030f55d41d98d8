// Package synth turns response text into correctly framed outbound call
// audio, keeping the media stream alive while synthesis is in flight.
package synth

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ringline-ai/ringline/internal/session"
	"github.com/ringline-ai/ringline/pkg/audio"
	"github.com/ringline-ai/ringline/pkg/provider/tts"
)

const (
	// defaultKeepAliveEvery spaces the zero-payload frames that keep the
	// transport from idling out during synthesis latency.
	defaultKeepAliveEvery = 2 * time.Second
	// defaultSynthTimeout bounds one synthesis call.
	defaultSynthTimeout = 15 * time.Second
	// playbackGuard pads the playback timer so the speaking state never
	// clears while audio is still draining to the handset.
	playbackGuard = 100 * time.Millisecond
	// endOfSpeechMark names the marker frame sent after the response audio.
	endOfSpeechMark = "endOfTTS"
)

// Transport sends outbound events on the call's media stream.
type Transport interface {
	// SendMedia sends one outbound audio payload of mu-law bytes.
	SendMedia(payload []byte) error
	// SendMark sends a named playback marker.
	SendMark(name string) error
	// SendKeepAlive sends a zero-payload media frame.
	SendKeepAlive() error
}

// Synthesizer renders one call's responses. Failures are logged and
// returned, never panicked past Speak; the orchestrator's settle timer owns
// state cleanup either way.
type Synthesizer struct {
	provider  tts.Provider
	transport Transport
	sess      *session.Session
	logger    *slog.Logger

	keepAliveEvery time.Duration
	timeout        time.Duration
	stageDir       string
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synthesizer) { s.logger = l }
}

// WithKeepAliveInterval overrides the keep-alive spacing.
func WithKeepAliveInterval(d time.Duration) Option {
	return func(s *Synthesizer) {
		if d > 0 {
			s.keepAliveEvery = d
		}
	}
}

// WithTimeout bounds one synthesis call.
func WithTimeout(d time.Duration) Option {
	return func(s *Synthesizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithStageDir sets where encoded audio is staged before sending. Defaults
// to the system temp directory.
func WithStageDir(dir string) Option {
	return func(s *Synthesizer) { s.stageDir = dir }
}

// New creates a Synthesizer for one call.
func New(provider tts.Provider, transport Transport, sess *session.Session, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		provider:       provider,
		transport:      transport,
		sess:           sess,
		logger:         slog.Default(),
		keepAliveEvery: defaultKeepAliveEvery,
		timeout:        defaultSynthTimeout,
		stageDir:       os.TempDir(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Speak synthesizes text and sends it as exactly one outbound media payload
// followed by one end-of-speech marker. Keep-alive frames are emitted every
// two seconds while the synthesis call is in flight. On any failure nothing
// partial is sent and the error is returned after logging.
func (s *Synthesizer) Speak(ctx context.Context, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("synth: panic during speak: %v", r)
			s.logger.Error("speak panicked", "panic", r)
		}
	}()

	if text == "" {
		return fmt.Errorf("synth: empty response text")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pcm16k, err := s.synthesizeWithKeepAlive(ctx, text)
	if err != nil {
		s.logger.Error("synthesis failed", "error", err)
		return fmt.Errorf("synth: %w", err)
	}

	ulaw, err := s.encode(pcm16k)
	if err != nil {
		s.logger.Error("audio encoding failed", "error", err)
		return fmt.Errorf("synth: %w", err)
	}

	if err := s.transport.SendMedia(ulaw); err != nil {
		s.logger.Error("outbound media send failed", "error", err)
		return fmt.Errorf("synth: send media: %w", err)
	}
	if err := s.transport.SendMark(endOfSpeechMark); err != nil {
		s.logger.Error("outbound mark send failed", "error", err)
		return fmt.Errorf("synth: send mark: %w", err)
	}

	playback := audio.PlaybackDuration(len(ulaw))
	s.logger.Debug("response sent", "bytes", len(ulaw), "playback", playback)
	time.AfterFunc(playback+playbackGuard, func() {
		s.sess.TransitionTo(session.StateListening)
	})
	return nil
}

// synthesizeWithKeepAlive runs the synthesis call while a ticker goroutine
// keeps the media stream warm. The ticker stops before this returns, so
// keep-alives never interleave with the response audio.
func (s *Synthesizer) synthesizeWithKeepAlive(ctx context.Context, text string) ([]byte, error) {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.keepAliveEvery)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.transport.SendKeepAlive(); err != nil {
					s.logger.Warn("keep-alive send failed", "error", err)
				}
			}
		}
	}()

	pcm, err := s.provider.Synthesize(ctx, text)
	close(stop)
	<-done
	if err != nil {
		return nil, err
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("synthesis returned no audio")
	}
	return pcm, nil
}

// encode downsamples 16 kHz PCM to the stream's 8 kHz mu-law encoding. The
// encoded audio is staged through a temp file that is removed whether or not
// the rest of the send succeeds.
func (s *Synthesizer) encode(pcm16k []byte) ([]byte, error) {
	pcm8k := audio.ResampleMono16(pcm16k, audio.WideSampleRate, audio.SampleRate)
	ulaw := audio.EncodeMulaw(pcm8k)

	stage := filepath.Join(s.stageDir, "ringline-"+uuid.NewString()+".ulaw")
	if err := os.WriteFile(stage, ulaw, 0o600); err != nil {
		return nil, fmt.Errorf("stage encoded audio: %w", err)
	}
	defer func() {
		if rmErr := os.Remove(stage); rmErr != nil {
			s.logger.Warn("stage file cleanup failed", "path", stage, "error", rmErr)
		}
	}()

	staged, err := os.ReadFile(stage)
	if err != nil {
		return nil, fmt.Errorf("read staged audio: %w", err)
	}
	return staged, nil
}
