package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"vad":        {"silero"},
	"stt_stream": {"whisperlive"},
	"stt_batch":  {"whisper"},
	"dialogue":   {"openai"},
	"tts":        {"elevenlabs"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Warn for unknown provider names.
	validateProviderName("vad", cfg.Providers.VAD.Name)
	validateProviderName("stt_stream", cfg.Providers.STTStream.Name)
	validateProviderName("stt_batch", cfg.Providers.STTBatch.Name)
	validateProviderName("dialogue", cfg.Providers.Dialogue.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	// Provider availability warnings
	if cfg.Providers.Dialogue.Name == "" {
		slog.Warn("no dialogue provider configured; calls will only hear the built-in fallback response")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("no tts provider configured; responses will be silent")
	}
	if cfg.Providers.STTStream.Name == "" && cfg.Providers.STTBatch.Name == "" {
		errs = append(errs, errors.New("providers: at least one of stt_stream or stt_batch must be configured"))
	}
	if cfg.Providers.VAD.Name != "" && cfg.Providers.STTBatch.Name == "" {
		slog.Warn("providers.vad is configured without stt_batch; flushed segments have nowhere to go")
	}

	// Pipeline ranges
	if cfg.Pipeline.DecodeGain < 0 {
		errs = append(errs, fmt.Errorf("pipeline.decode_gain %.2f must not be negative", cfg.Pipeline.DecodeGain))
	}
	for _, d := range []struct {
		name  string
		value Duration
	}{
		{"silence_after", cfg.Pipeline.SilenceAfter},
		{"max_speech", cfg.Pipeline.MaxSpeech},
		{"debounce", cfg.Pipeline.Debounce},
		{"settle_delay", cfg.Pipeline.SettleDelay},
		{"keep_alive_interval", cfg.Pipeline.KeepAliveInterval},
		{"synth_timeout", cfg.Pipeline.SynthTimeout},
	} {
		if d.value < 0 {
			errs = append(errs, fmt.Errorf("pipeline.%s must not be negative", d.name))
		}
	}
	if cfg.Pipeline.SilenceAfter > 0 && cfg.Pipeline.MaxSpeech > 0 &&
		cfg.Pipeline.SilenceAfter.Std() >= cfg.Pipeline.MaxSpeech.Std() {
		errs = append(errs, errors.New("pipeline.silence_after must be shorter than pipeline.max_speech"))
	}

	// Business info file existence is checked at load time in main; here only
	// an early warning.
	if cfg.Business.InfoFile != "" {
		if _, err := os.Stat(cfg.Business.InfoFile); err != nil {
			slog.Warn("business.info_file is not readable", "path", cfg.Business.InfoFile, "error", err)
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
