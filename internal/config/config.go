// Package config provides the configuration schema, loader, and provider
// registry for the Ringline voice agent.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity for the Ringline server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Duration wraps time.Duration with YAML decoding from strings like "500ms".
type Duration time.Duration

// UnmarshalYAML decodes either a duration string or a bare number of
// nanoseconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := node.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value")
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration structure for Ringline.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Business  BusinessConfig  `yaml:"business"`
}

// ServerConfig holds network and logging settings for the Ringline server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each field selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	VAD       ProviderEntry `yaml:"vad"`
	STTStream ProviderEntry `yaml:"stt_stream"`
	STTBatch  ProviderEntry `yaml:"stt_batch"`
	Dialogue  ProviderEntry `yaml:"dialogue"`
	TTS       ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "silero").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o-mini").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// PipelineConfig holds the per-call audio pipeline tunables. Zero values
// fall back to each package's built-in default.
type PipelineConfig struct {
	// Language is the BCP 47 language hint passed to transcription.
	Language string `yaml:"language"`

	// SilenceAfter ends an utterance once no speech was classified for this
	// long.
	SilenceAfter Duration `yaml:"silence_after"`

	// MaxSpeech caps a single utterance's duration.
	MaxSpeech Duration `yaml:"max_speech"`

	// Debounce is how long the transcription bridge waits after a final
	// fragment before declaring the utterance complete.
	Debounce Duration `yaml:"debounce"`

	// SettleDelay is the pause after a response before listening resumes.
	SettleDelay Duration `yaml:"settle_delay"`

	// KeepAliveInterval spaces the keep-alive frames sent while synthesis is
	// in flight.
	KeepAliveInterval Duration `yaml:"keep_alive_interval"`

	// SynthTimeout bounds one synthesis call.
	SynthTimeout Duration `yaml:"synth_timeout"`

	// DecodeGain boosts decoded telephone audio before classification and
	// transcription. 1.0 leaves it untouched.
	DecodeGain float64 `yaml:"decode_gain"`

	// RawDumpDir, when set, makes each call append its raw inbound mu-law
	// audio to a file in this directory, for offline debugging.
	RawDumpDir string `yaml:"raw_dump_dir"`
}

// BusinessConfig points at the business knowledge injected into the dialogue
// system prompt.
type BusinessConfig struct {
	// InfoFile is a path to a JSON or text file with opening hours, staff,
	// services, and prices. Optional.
	InfoFile string `yaml:"info_file"`
}
