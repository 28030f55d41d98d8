// Package silero provides a vad.Classifier backed by a Silero VAD HTTP
// service. The service accepts a raw PCM block as an octet-stream POST with a
// probability threshold query parameter and answers with a JSON speech/no-speech
// decision.
package silero

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ringline-ai/ringline/pkg/provider/vad"
)

const (
	defaultThreshold = 0.8
	defaultTimeout   = 2 * time.Second
)

// Option is a functional option for configuring the Classifier.
type Option func(*Classifier)

// WithThreshold sets the speech probability threshold in [0.0, 1.0].
// Default is 0.8, tuned for 8 kHz telephony audio upsampled to 16 kHz.
func WithThreshold(t float64) Option {
	return func(c *Classifier) { c.threshold = t }
}

// WithTimeout bounds each classification request. The segmenter relies on this
// staying short: a slow VAD backend must not stall the audio pipeline.
// Default is 2s.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client. Mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Classifier) { c.httpClient = hc }
}

// Classifier implements vad.Classifier against a Silero VAD HTTP endpoint.
type Classifier struct {
	endpoint   string
	threshold  float64
	httpClient *http.Client
}

// Compile-time assertion that Classifier satisfies vad.Classifier.
var _ vad.Classifier = (*Classifier)(nil)

// New creates a Classifier for the given endpoint (e.g. "http://localhost:8001/vad").
func New(endpoint string, opts ...Option) (*Classifier, error) {
	if endpoint == "" {
		return nil, errors.New("silero: endpoint must not be empty")
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("silero: parse endpoint: %w", err)
	}
	c := &Classifier{
		endpoint:   endpoint,
		threshold:  defaultThreshold,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// decision is the JSON response body from the Silero service.
type decision struct {
	IsSpeech    bool    `json:"is_speech"`
	Probability float64 `json:"probability"`
}

// IsSpeech posts the PCM block and returns the service's speech decision.
func (c *Classifier) IsSpeech(ctx context.Context, pcm []byte) (bool, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return false, fmt.Errorf("silero: parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("threshold", strconv.FormatFloat(c.threshold, 'g', -1, 64))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(pcm))
	if err != nil {
		return false, fmt.Errorf("silero: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("silero: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("silero: unexpected status %d", resp.StatusCode)
	}

	var d decision
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return false, fmt.Errorf("silero: decode response: %w", err)
	}
	return d.IsSpeech, nil
}
