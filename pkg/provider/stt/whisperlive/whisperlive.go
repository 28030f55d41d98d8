// Package whisperlive provides a streaming stt.StreamProvider backed by a
// Whisper WebSocket server. The client forwards raw audio frames as binary
// messages; the server answers with JSON messages carrying an is_final flag
// and the recognised text.
package whisperlive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/coder/websocket"

	"github.com/ringline-ai/ringline/pkg/provider/stt"
)

const defaultLanguage = "en"

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithLanguage sets the default recognition language (e.g. "en").
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// Provider implements stt.StreamProvider against a streaming Whisper server.
type Provider struct {
	endpoint string
	language string
}

// Compile-time assertion that Provider satisfies stt.StreamProvider.
var _ stt.StreamProvider = (*Provider)(nil)

// New creates a Provider for the given WebSocket endpoint
// (e.g. "ws://localhost:8002").
func New(endpoint string, opts ...Option) (*Provider, error) {
	if endpoint == "" {
		return nil, errors.New("whisperlive: endpoint must not be empty")
	}
	p := &Provider{
		endpoint: endpoint,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream dials the Whisper server and returns a live session.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("whisperlive: parse endpoint: %w", err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	q := u.Query()
	q.Set("language", lang)
	if cfg.SampleRate > 0 {
		q.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	}
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("whisperlive: dial: %w", err)
	}

	sess := &session{
		conn:   conn,
		finals: make(chan stt.Transcript, 64),
		audio:  make(chan []byte, 256),
		done:   make(chan struct{}),
	}

	sess.wg.Add(2)
	go sess.readLoop(ctx)
	go sess.writeLoop(ctx)

	return sess, nil
}

// result is the JSON message the Whisper server sends for each recognition
// update.
type result struct {
	IsFinal    bool    `json:"is_final"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// parseResult parses a raw server message into a final Transcript.
// Returns (zero, false) for malformed messages and interim results.
func parseResult(msg []byte) (stt.Transcript, bool) {
	var r result
	if err := json.Unmarshal(msg, &r); err != nil {
		return stt.Transcript{}, false
	}
	if !r.IsFinal {
		return stt.Transcript{}, false
	}
	return stt.Transcript{Text: r.Text, IsFinal: true, Confidence: r.Confidence}, true
}

// session is a live streaming Whisper session. It implements stt.SessionHandle.
type session struct {
	conn   *websocket.Conn
	finals chan stt.Transcript
	audio  chan []byte

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// SendAudio queues one audio frame for delivery. Frames sent after Close, or
// while the send buffer is full because the connection stalled, are dropped.
func (s *session) SendAudio(frame []byte) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.audio <- frame:
	case <-s.done:
	default:
	}
}

// Finals returns the channel of final transcripts.
func (s *session) Finals() <-chan stt.Transcript { return s.finals }

// Close terminates the session cleanly.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		// Closing the connection unblocks the read loop.
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
		s.wg.Wait()
	})
	return nil
}

// writeLoop reads from the audio channel and sends binary messages to the server.
func (s *session) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case frame := <-s.audio:
			if err := s.conn.Write(ctx, websocket.MessageBinary, frame); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// readLoop receives JSON messages from the server and dispatches final
// transcripts. Partial results are dropped here; the pipeline only acts on
// committed text.
func (s *session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.finals)

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			// Normal close or context cancellation.
			return
		}

		t, ok := parseResult(msg)
		if !ok {
			continue
		}

		select {
		case s.finals <- t:
		case <-s.done:
			return
		}
	}
}
