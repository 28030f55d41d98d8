// Package capture receives inbound media frames for one call and fans them
// out to the streaming transcriber and the speech segmenter.
package capture

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ringline-ai/ringline/internal/session"
	"github.com/ringline-ai/ringline/pkg/audio"
	"github.com/ringline-ai/ringline/pkg/provider/stt"
)

// defaultBufferFrames bounds the rolling frame buffer at 30 seconds of audio.
const defaultBufferFrames = 1500

// Segmenter consumes decoded frames for voice activity detection.
type Segmenter interface {
	Push(frame audio.Frame)
}

// Capture fans inbound audio out to the streaming transcriber and the
// segmenter while the session is listening. Safe for concurrent use, though
// the transport delivers frames from a single read loop.
type Capture struct {
	sess      *session.Session
	stream    stt.SessionHandle
	segmenter Segmenter
	logger    *slog.Logger

	mu       sync.Mutex
	buffer   []audio.Frame
	maxMem   int
	elapsed  int // frames received since start
	dumpFile *os.File
}

// Option configures a Capture.
type Option func(*Capture)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c *Capture) { c.logger = l }
}

// WithBufferFrames bounds the rolling frame buffer. Defaults to 30 seconds.
func WithBufferFrames(n int) Option {
	return func(c *Capture) {
		if n > 0 {
			c.maxMem = n
		}
	}
}

// WithRawDump appends every inbound frame to the named file, for offline
// debugging of audio quality. The file holds raw 8 kHz mu-law bytes.
func WithRawDump(path string) Option {
	return func(c *Capture) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			c.logger.Warn("raw audio dump disabled", "path", path, "error", err)
			return
		}
		c.dumpFile = f
	}
}

// New creates a Capture bound to one call's session, streaming transcriber
// handle, and segmenter.
func New(sess *session.Session, stream stt.SessionHandle, seg Segmenter, opts ...Option) *Capture {
	c := &Capture{
		sess:      sess,
		stream:    stream,
		segmenter: seg,
		logger:    slog.Default(),
		maxMem:    defaultBufferFrames,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Ingest handles one inbound media frame. The first frame that arrives while
// the session is listening sets the turn timing baseline. Frames received in
// any other state are still forwarded so the transcriber keeps its pacing,
// but do not restart the baseline.
func (c *Capture) Ingest(payload []byte) {
	if len(payload) == 0 {
		return
	}

	if c.sess.State() == session.StateListening {
		c.sess.MarkStart()
	}

	frame := audio.Frame{
		Data:      payload,
		Timestamp: time.Duration(c.advance()) * audio.FrameDuration,
	}

	c.append(frame)
	if c.stream != nil {
		c.stream.SendAudio(payload)
	}
	if c.segmenter != nil {
		c.segmenter.Push(frame)
	}
}

// Buffered returns a copy of the rolling frame buffer.
func (c *Capture) Buffered() []audio.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]audio.Frame, len(c.buffer))
	copy(out, c.buffer)
	return out
}

// Close releases the raw dump file if one is open.
func (c *Capture) Close() error {
	c.mu.Lock()
	f := c.dumpFile
	c.dumpFile = nil
	c.mu.Unlock()

	if f == nil {
		return nil
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("capture: close raw dump: %w", err)
	}
	return nil
}

func (c *Capture) advance() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.elapsed
	c.elapsed++
	return n
}

func (c *Capture) append(frame audio.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buffer = append(c.buffer, frame)
	if len(c.buffer) > c.maxMem {
		// Drop the oldest overflow in one cut to avoid per-frame copies.
		c.buffer = c.buffer[len(c.buffer)-c.maxMem:]
	}
	if c.dumpFile != nil {
		if _, err := c.dumpFile.Write(frame.Data); err != nil {
			c.logger.Warn("raw audio dump write failed", "error", err)
			_ = c.dumpFile.Close()
			c.dumpFile = nil
		}
	}
}
