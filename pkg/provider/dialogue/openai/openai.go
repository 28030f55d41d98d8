// Package openai provides a dialogue Provider backed by the OpenAI chat
// completions API with a strict JSON response contract.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/ringline-ai/ringline/pkg/provider/dialogue"
)

const (
	defaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.3
)

// systemPromptFmt is the instruction fixing the JSON exchange contract.
// %s is replaced by the business info block and the current date.
const systemPromptFmt = `You are a phone assistant for a small business.

Business context (prices, hours, staff, location); use it verbatim or adapt it:

%s

Current date: %s

Primary goals:
1. Maintain conversation context: date, time, duration, staff.
2. Figure out the caller's intent (schedule, inquiry, smalltalk, fallback).
3. Return a structured JSON object with the reply and the updated context.

Always respond ONLY with valid JSON in this format:
{
  "intent": "schedule | inquiry | smalltalk | fallback",
  "response_text": "...",
  "nextState": "...",
  "check_availability": false,
  "updatedContext": {
    "currentState": "...",
    "userIntention": "...",
    "userName": "",
    "collectedDetails": { "date": "", "time": "", "duration": "", "staff": "" },
    "bookingConfirmed": false
  }
}`

// Option is a functional option for the Provider.
type Option func(*config)

// config holds optional configuration applied in New.
type config struct {
	model        string
	baseURL      string
	timeout      time.Duration
	businessInfo string
}

// WithModel overrides the completion model. Default is gpt-4o-mini.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithBusinessInfo injects the business info block (free-form text or JSON)
// into the system prompt.
func WithBusinessInfo(info string) Option {
	return func(c *config) { c.businessInfo = info }
}

// Provider implements dialogue.Provider using the OpenAI API.
type Provider struct {
	client       oai.Client
	model        string
	businessInfo string
}

// Compile-time assertion that Provider satisfies dialogue.Provider.
var _ dialogue.Provider = (*Provider)(nil)

// New constructs a new OpenAI dialogue Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Provider{
		client:       oai.NewClient(reqOpts...),
		model:        cfg.model,
		businessInfo: cfg.businessInfo,
	}, nil
}

// Complete runs one dialogue exchange against the chat completions API.
func (p *Provider) Complete(ctx context.Context, req dialogue.Request) (*dialogue.Result, error) {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(p.systemPrompt()),
			oai.UserMessage(userPrompt(req)),
		},
		Temperature: param.NewOpt(defaultTemperature),
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: empty choices in response")
	}

	result, err := parseResult(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// systemPrompt renders the JSON-contract system prompt with the business info
// block and today's date.
func (p *Provider) systemPrompt() string {
	info := p.businessInfo
	if info == "" {
		info = "(no business info configured)"
	}
	return fmt.Sprintf(systemPromptFmt, info, time.Now().Format("2006-01-02"))
}

// userPrompt renders the caller's utterance together with the current
// conversation state so the model can update rather than restart it.
func userPrompt(req dialogue.Request) string {
	c := req.Context
	state := c.CurrentState
	if state == "" {
		state = "Unknown"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current conversational state: %q\n", state)
	sb.WriteString("Details collected so far:\n")
	fmt.Fprintf(&sb, "- Date: %s\n", orDefault(c.Details.Date, "not provided"))
	fmt.Fprintf(&sb, "- Time: %s\n", orDefault(c.Details.Time, "not provided"))
	fmt.Fprintf(&sb, "- Duration: %s\n", orDefault(c.Details.Duration, "not provided"))
	fmt.Fprintf(&sb, "- Staff: %s\n", orDefault(c.Details.Staff, "Any"))
	fmt.Fprintf(&sb, "Booking confirmed: %v\n\n", c.BookingConfirmed)
	fmt.Fprintf(&sb, "Caller speech: %q\n\n", req.Utterance)
	sb.WriteString("Update the conversation context and clarify the caller's intent.")
	return sb.String()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// parseResult decodes the model's JSON reply, tolerating a markdown code
// fence around the object.
func parseResult(content string) (*dialogue.Result, error) {
	content = strings.TrimSpace(content)
	if after, ok := strings.CutPrefix(content, "```json"); ok {
		content = after
	} else if after, ok := strings.CutPrefix(content, "```"); ok {
		content = after
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")

	var r dialogue.Result
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		return nil, fmt.Errorf("openai: decode dialogue result: %w", err)
	}
	return &r, nil
}

// wrapAPIError converts SDK errors into dialogue.StatusError so callers can
// classify server-class failures for retry.
func wrapAPIError(err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		return &dialogue.StatusError{Code: apiErr.StatusCode, Err: err}
	}
	return fmt.Errorf("openai: chat completion: %w", err)
}
