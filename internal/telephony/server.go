// Package telephony terminates the media stream WebSocket and assembles the
// per-call audio pipeline behind it.
package telephony

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/ringline-ai/ringline/internal/bridge"
	"github.com/ringline-ai/ringline/internal/capture"
	"github.com/ringline-ai/ringline/internal/observe"
	"github.com/ringline-ai/ringline/internal/orchestrator"
	"github.com/ringline-ai/ringline/internal/segmenter"
	"github.com/ringline-ai/ringline/internal/session"
	"github.com/ringline-ai/ringline/internal/synth"
	"github.com/ringline-ai/ringline/pkg/provider/dialogue"
	"github.com/ringline-ai/ringline/pkg/provider/stt"
	"github.com/ringline-ai/ringline/pkg/provider/tts"
	"github.com/ringline-ai/ringline/pkg/provider/vad"
)

// Providers bundles the external services one call pipeline depends on.
type Providers struct {
	VAD      vad.Classifier
	Stream   stt.StreamProvider
	Batch    stt.BatchTranscriber
	Dialogue dialogue.Provider
	TTS      tts.Provider
}

// PipelineConfig carries the per-call tunables from configuration into the
// pipeline constructors. Zero values fall back to each package's default.
type PipelineConfig struct {
	Language          string
	SilenceAfter      time.Duration
	MaxSpeech         time.Duration
	Debounce          time.Duration
	SettleDelay       time.Duration
	KeepAliveInterval time.Duration
	SynthTimeout      time.Duration
	DecodeGain        float64
	RawDumpDir        string
}

// Server accepts media stream connections and runs one pipeline per call.
type Server struct {
	providers Providers
	registry  *session.Registry
	logger    *slog.Logger
	metrics   *observe.Metrics

	mu  sync.RWMutex
	cfg PipelineConfig
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics sets the metrics instance. Defaults to observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithRegistry sets the session registry. Defaults to a fresh one.
func WithRegistry(r *session.Registry) Option {
	return func(s *Server) { s.registry = r }
}

// NewServer creates a media stream server.
func NewServer(providers Providers, cfg PipelineConfig, opts ...Option) *Server {
	s := &Server{
		providers: providers,
		cfg:       cfg,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.registry == nil {
		s.registry = session.NewRegistry(s.logger)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Registry returns the server's session registry.
func (s *Server) Registry() *session.Registry { return s.registry }

// UpdateConfig replaces the pipeline tunables. The new values apply to calls
// started after the update; calls already in flight keep their settings.
func (s *Server) UpdateConfig(cfg PipelineConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Server) pipelineConfig() PipelineConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// ServeHTTP upgrades the request to a WebSocket and runs the media stream
// until the far end hangs up.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Error("websocket accept failed", "error", err)
		return
	}
	// Response audio is one large frame; don't let the library reject it.
	conn.SetReadLimit(1 << 22)

	s.handleStream(r.Context(), conn)
	conn.Close(websocket.StatusNormalClosure, "stream ended")
}

// handleStream is one connection's read loop. The pipeline is assembled on
// the start event and torn down when the stream ends, whichever way it ends.
func (s *Server) handleStream(ctx context.Context, conn *websocket.Conn) {
	var pipe *pipeline
	defer func() {
		if pipe != nil {
			s.teardown(pipe)
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			s.logger.Debug("media stream closed", "error", err)
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			// Transport framing noise is expected; drop silently.
			continue
		}

		switch ev.Event {
		case EventStart:
			if ev.Start == nil || ev.Start.CallSID == "" {
				continue
			}
			if pipe != nil {
				s.logger.Warn("duplicate start event", "call", ev.Start.CallSID)
				continue
			}
			pipe = s.startCall(ctx, conn, ev.Start)
		case EventMedia:
			if pipe == nil || ev.Media == nil {
				continue
			}
			payload, err := base64.StdEncoding.DecodeString(ev.Media.Payload)
			if err != nil || len(payload) == 0 {
				continue
			}
			pipe.capture.Ingest(payload)
		case EventMark:
			if pipe != nil && ev.Mark != nil {
				s.logger.Debug("playback mark", "call", pipe.sess.CallID, "name", ev.Mark.Name)
			}
		case EventStop:
			s.logger.Info("media stream stopped", "stream", ev.StreamSID)
			return
		default:
			// Unknown event types are transport noise.
		}
	}
}

// pipeline is the per-call assembly of capture, segmentation, streaming
// aggregation, orchestration, and synthesis.
type pipeline struct {
	sess    *session.Session
	capture *capture.Capture
	seg     *segmenter.Segmenter
	brg     *bridge.Bridge
	stream  stt.SessionHandle
}

// startCall builds the full pipeline for a new media stream.
func (s *Server) startCall(ctx context.Context, conn *websocket.Conn, start *StartPayload) *pipeline {
	sess, created := s.registry.GetOrCreate(start.CallSID, start.StreamSID,
		session.WithLogger(s.logger))
	if !created {
		s.logger.Warn("media stream reattached to existing call", "call", start.CallSID)
	}
	logger := s.logger.With("call", start.CallSID)
	logger.Info("call started", "stream", start.StreamSID, "session", sess.ID)
	s.metrics.ActiveCalls.Add(ctx, 1)
	cfg := s.pipelineConfig()

	var stream stt.SessionHandle
	if s.providers.Stream != nil {
		var err error
		stream, err = s.providers.Stream.StartStream(ctx, stt.StreamConfig{
			SampleRate: 8000,
			Language:   cfg.Language,
		})
		if err != nil {
			// The batch path still works; the call continues without
			// streaming transcription.
			logger.Error("streaming transcription unavailable", "error", err)
			stream = nil
		}
	}

	writer := newStreamWriter(ctx, conn, start.StreamSID)
	speaker := synth.New(s.providers.TTS, writer, sess,
		synth.WithLogger(logger),
		synth.WithKeepAliveInterval(cfg.KeepAliveInterval),
		synth.WithTimeout(cfg.SynthTimeout))
	orch := orchestrator.New(sess, s.providers.Dialogue, speaker,
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(s.metrics),
		orchestrator.WithSettleDelay(cfg.SettleDelay))

	var seg *segmenter.Segmenter
	var segSink capture.Segmenter
	if s.providers.VAD != nil && s.providers.Batch != nil {
		onSegment := func(text string) {
			s.metrics.RecordUtterance(ctx, "segment")
			orch.HandleUtterance(ctx, text)
		}
		// Overlap trimming is stateful per call; the transcriber is shared.
		seg = segmenter.New(s.providers.VAD, stt.NewOverlapFilter(s.providers.Batch), onSegment,
			segmenter.WithLogger(logger),
			segmenter.WithMetrics(s.metrics),
			segmenter.WithSilenceAfter(cfg.SilenceAfter),
			segmenter.WithMaxSpeech(cfg.MaxSpeech),
			segmenter.WithDecodeGain(cfg.DecodeGain))
		segSink = seg
	}

	var brg *bridge.Bridge
	if stream != nil {
		brg = bridge.New(sess, stream, func(text string) {
			s.metrics.RecordUtterance(ctx, "stream")
			orch.HandleUtterance(ctx, text)
		}, bridge.WithLogger(logger), bridge.WithDebounce(cfg.Debounce))
	}

	captOpts := []capture.Option{capture.WithLogger(logger)}
	if cfg.RawDumpDir != "" {
		captOpts = append(captOpts,
			capture.WithRawDump(filepath.Join(cfg.RawDumpDir, start.CallSID+".ulaw")))
	}
	capt := capture.New(sess, stream, segSink, captOpts...)

	return &pipeline{sess: sess, capture: capt, seg: seg, brg: brg, stream: stream}
}

// teardown shuts the pipeline down in dependency order and logs the call
// summary.
func (s *Server) teardown(pipe *pipeline) {
	if pipe.seg != nil {
		pipe.seg.Close()
	}
	if pipe.stream != nil {
		if err := pipe.stream.Close(); err != nil {
			s.logger.Warn("streaming transcription close failed", "error", err)
		}
	}
	if pipe.brg != nil {
		pipe.brg.Wait()
	}
	if err := pipe.capture.Close(); err != nil {
		s.logger.Warn("capture close failed", "error", err)
	}

	if summary := pipe.sess.Summary(); summary != "" {
		s.logger.Info("call summary", "call", pipe.sess.CallID, "summary", summary)
	}
	s.registry.Remove(pipe.sess.CallID)
	s.metrics.ActiveCalls.Add(context.Background(), -1)
	s.logger.Info("call ended", "call", pipe.sess.CallID)
}
