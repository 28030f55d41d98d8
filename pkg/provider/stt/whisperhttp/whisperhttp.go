// Package whisperhttp provides a batch stt.BatchTranscriber backed by a
// Whisper HTTP server. One complete speech segment is posted as raw PCM and
// the whole transcript comes back in a single JSON response.
package whisperhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ringline-ai/ringline/pkg/provider/stt"
)

const (
	defaultLanguage = "en"
	defaultTimeout  = 15 * time.Second
)

// Option is a functional option for configuring the Transcriber.
type Option func(*Transcriber)

// WithLanguage sets the recognition language passed on each request.
func WithLanguage(lang string) Option {
	return func(t *Transcriber) { t.language = lang }
}

// WithTimeout bounds each transcription request. Default is 15s.
func WithTimeout(d time.Duration) Option {
	return func(t *Transcriber) { t.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client. Mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(t *Transcriber) { t.httpClient = hc }
}

// Transcriber implements stt.BatchTranscriber against a Whisper HTTP endpoint.
// It is stateless and safe to share across calls; per-call overlap trimming is
// the job of [stt.OverlapFilter].
type Transcriber struct {
	endpoint   string
	language   string
	httpClient *http.Client
}

// Compile-time assertion that Transcriber satisfies stt.BatchTranscriber.
var _ stt.BatchTranscriber = (*Transcriber)(nil)

// New creates a Transcriber for the given endpoint
// (e.g. "http://localhost:8000/transcribe").
func New(endpoint string, opts ...Option) (*Transcriber, error) {
	if endpoint == "" {
		return nil, errors.New("whisperhttp: endpoint must not be empty")
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("whisperhttp: parse endpoint: %w", err)
	}
	t := &Transcriber{
		endpoint:   endpoint,
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// response is the JSON body returned by the Whisper server.
type response struct {
	Text string `json:"text"`
}

// Transcribe posts the PCM segment and returns the trimmed transcript.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	u, err := url.Parse(t.endpoint)
	if err != nil {
		return "", fmt.Errorf("whisperhttp: parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("language", t.language)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(pcm))
	if err != nil {
		return "", fmt.Errorf("whisperhttp: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisperhttp: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("whisperhttp: unexpected status %d", resp.StatusCode)
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", fmt.Errorf("whisperhttp: decode response: %w", err)
	}

	return strings.TrimSpace(r.Text), nil
}
