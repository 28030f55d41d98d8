// Package segmenter turns a stream of inbound audio frames into bounded
// utterance segments using an external voice-activity classifier, and hands
// each flushed segment to batch transcription.
package segmenter

import (
	"context"
	"log/slog"
	"time"

	"github.com/ringline-ai/ringline/internal/observe"
	"github.com/ringline-ai/ringline/pkg/audio"
	"github.com/ringline-ai/ringline/pkg/provider/stt"
	"github.com/ringline-ai/ringline/pkg/provider/vad"
)

const (
	// blockFrames is how many 20ms frames make one classification block.
	blockFrames = 25
	// defaultSilenceAfter ends an utterance once no speech block arrived for
	// this long.
	defaultSilenceAfter = 500 * time.Millisecond
	// defaultMaxSpeech caps a single utterance, bounding latency and memory
	// under continuous speech.
	defaultMaxSpeech = 10 * time.Second
	// errLogInterval rate-limits classifier failure logs.
	errLogInterval = time.Second
	// frameQueue bounds the inbound frame channel. At 50 frames a second
	// this absorbs several seconds of classifier stall.
	frameQueue = 512
)

// Segmenter accumulates frames into half-second blocks, classifies each
// block, and flushes a segment to transcription on silence or on the
// duration cap. Frames enter through Push and are processed on a dedicated
// goroutine, so a slow classifier never blocks the transport read loop.
type Segmenter struct {
	classifier  vad.Classifier
	transcriber stt.BatchTranscriber
	onUtterance func(text string)
	logger      *slog.Logger
	metrics     *observe.Metrics
	now         func() time.Time

	silenceAfter time.Duration
	maxSpeech    time.Duration
	decodeGain   float64

	frames chan audio.Frame
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// Touched only by Push, which runs on the transport's read loop.
	lastDropLog time.Time

	// Loop-local state, touched only by run.
	block      []byte
	segment    []byte
	isSpeaking bool
	start      time.Time
	lastSpeech time.Time
	lastErrLog time.Time
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Segmenter) { s.logger = l }
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Segmenter) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithSilenceAfter overrides the silence flush threshold.
func WithSilenceAfter(d time.Duration) Option {
	return func(s *Segmenter) {
		if d > 0 {
			s.silenceAfter = d
		}
	}
}

// WithMaxSpeech overrides the utterance duration cap.
func WithMaxSpeech(d time.Duration) Option {
	return func(s *Segmenter) {
		if d > 0 {
			s.maxSpeech = d
		}
	}
}

// WithDecodeGain boosts decoded samples before classification and
// transcription. Telephone audio often needs it.
func WithDecodeGain(g float64) Option {
	return func(s *Segmenter) {
		if g > 0 {
			s.decodeGain = g
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Segmenter) { s.now = now }
}

// New creates a Segmenter and starts its processing goroutine. onUtterance
// receives each non-empty transcript; it runs on the segmenter's goroutine
// and must not block for long.
func New(classifier vad.Classifier, transcriber stt.BatchTranscriber, onUtterance func(string), opts ...Option) *Segmenter {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Segmenter{
		classifier:   classifier,
		transcriber:  transcriber,
		onUtterance:  onUtterance,
		logger:       slog.Default(),
		metrics:      observe.DefaultMetrics(),
		now:          time.Now,
		silenceAfter: defaultSilenceAfter,
		maxSpeech:    defaultMaxSpeech,
		decodeGain:   1,
		frames:       make(chan audio.Frame, frameQueue),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	go s.run()
	return s
}

// Push hands one inbound frame to the segmenter. Frames arriving while the
// queue is full are dropped; losing capture audio is preferable to stalling
// the transport. Drop warnings are rate-limited to one per second.
func (s *Segmenter) Push(frame audio.Frame) {
	select {
	case s.frames <- frame:
	case <-s.ctx.Done():
	default:
		if now := s.now(); now.Sub(s.lastDropLog) >= errLogInterval {
			s.lastDropLog = now
			s.logger.Warn("segmenter queue full, dropping frames")
		}
	}
}

// Close stops the processing goroutine. Any partially accumulated segment is
// discarded; the call is over, there is nobody to answer.
func (s *Segmenter) Close() {
	s.cancel()
	<-s.done
}

func (s *Segmenter) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case frame := <-s.frames:
			s.block = append(s.block, frame.Data...)
			if len(s.block) >= blockFrames*audio.FrameBytes {
				s.processBlock(s.block)
				s.block = s.block[:0]
			}
		}
	}
}

// processBlock classifies one accumulated block and applies the flush
// triggers.
func (s *Segmenter) processBlock(block []byte) {
	pcm8 := audio.DecodeMulawGain(block, s.decodeGain)
	pcm16 := audio.ResampleMono16(pcm8, audio.SampleRate, audio.WideSampleRate)

	speech := s.classify(pcm16)
	now := s.now()

	if speech {
		if !s.isSpeaking {
			s.isSpeaking = true
			s.start = now
			s.logger.Debug("speech started")
		}
		s.segment = append(s.segment, pcm16...)
		s.lastSpeech = now
	}

	if !s.isSpeaking {
		return
	}
	silence := now.Sub(s.lastSpeech) > s.silenceAfter
	capped := now.Sub(s.start) > s.maxSpeech
	if silence || capped {
		trigger := "silence"
		if capped {
			trigger = "cap"
		}
		s.logger.Debug("flushing segment",
			"duration", now.Sub(s.start), "trigger", trigger)
		s.metrics.RecordSegmentFlush(s.ctx, trigger)
		s.flush()
	}
}

// classify asks the voice-activity service about one block. Failures count
// as silence so an outage never produces runaway segments, and errors are
// logged at most once a second.
func (s *Segmenter) classify(pcm []byte) bool {
	start := time.Now()
	speech, err := s.classifier.IsSpeech(s.ctx, pcm)
	s.metrics.VADDuration.Record(s.ctx, time.Since(start).Seconds())
	if err != nil {
		if now := s.now(); now.Sub(s.lastErrLog) >= errLogInterval {
			s.lastErrLog = now
			s.logger.Error("voice activity classification failed", "error", err)
		}
		return false
	}
	return speech
}

// flush transcribes the accumulated segment and resets speaking state.
// Reset happens regardless of transcription outcome.
func (s *Segmenter) flush() {
	segment := s.segment
	s.segment = nil
	s.isSpeaking = false

	if len(segment) == 0 {
		return
	}
	start := time.Now()
	text, err := s.transcriber.Transcribe(s.ctx, segment)
	s.metrics.STTDuration.Record(s.ctx, time.Since(start).Seconds())
	if err != nil {
		s.logger.Error("segment transcription failed", "error", err)
		return
	}
	if text == "" {
		return
	}
	if s.onUtterance != nil {
		s.onUtterance(text)
	}
}
