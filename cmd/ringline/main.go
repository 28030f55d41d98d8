// Command ringline is the main entry point for the Ringline voice agent server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ringline-ai/ringline/internal/app"
	"github.com/ringline-ai/ringline/internal/config"
	"github.com/ringline-ai/ringline/internal/observe"
	"github.com/ringline-ai/ringline/internal/resilience"
	"github.com/ringline-ai/ringline/internal/telephony"
	"github.com/ringline-ai/ringline/pkg/provider/dialogue"
	oaidialogue "github.com/ringline-ai/ringline/pkg/provider/dialogue/openai"
	"github.com/ringline-ai/ringline/pkg/provider/stt"
	"github.com/ringline-ai/ringline/pkg/provider/stt/whisperhttp"
	"github.com/ringline-ai/ringline/pkg/provider/stt/whisperlive"
	"github.com/ringline-ai/ringline/pkg/provider/tts"
	"github.com/ringline-ai/ringline/pkg/provider/tts/elevenlabs"
	"github.com/ringline-ai/ringline/pkg/provider/vad"
	"github.com/ringline-ai/ringline/pkg/provider/vad/silero"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	watch := flag.Bool("watch", true, "reload the config file when it changes")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "ringline: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "ringline: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	logger := newLogger(cfg.Server.LogLevel, level)
	slog.SetDefault(logger)

	slog.Info("ringline starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "ringline",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Business info ─────────────────────────────────────────────────────────
	businessInfo := loadBusinessInfo(cfg.Business.InfoFile)

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, businessInfo)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(cfg, providers, app.WithLogLevelVar(level))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	if *watch {
		if err := application.Watch(*configPath); err != nil {
			slog.Warn("config watcher disabled", "err", err)
		}
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry, businessInfo string) {
	// ── VAD ───────────────────────────────────────────────────────────────────

	reg.RegisterVAD("silero", func(entry config.ProviderEntry) (vad.Classifier, error) {
		var opts []silero.Option
		if th := optFloat(entry.Options, "threshold"); th > 0 {
			opts = append(opts, silero.WithThreshold(th))
		}
		return silero.New(entry.BaseURL, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTTStream("whisperlive", func(entry config.ProviderEntry) (stt.StreamProvider, error) {
		var opts []whisperlive.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisperlive.WithLanguage(lang))
		}
		return whisperlive.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTTBatch("whisper", func(entry config.ProviderEntry) (stt.BatchTranscriber, error) {
		var opts []whisperhttp.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisperhttp.WithLanguage(lang))
		}
		return whisperhttp.New(entry.BaseURL, opts...)
	})

	// ── Dialogue ──────────────────────────────────────────────────────────────

	reg.RegisterDialogue("openai", func(entry config.ProviderEntry) (dialogue.Provider, error) {
		var opts []oaidialogue.Option
		if entry.Model != "" {
			opts = append(opts, oaidialogue.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, oaidialogue.WithBaseURL(entry.BaseURL))
		}
		if businessInfo != "" {
			opts = append(opts, oaidialogue.WithBusinessInfo(businessInfo))
		}
		return oaidialogue.New(entry.APIKey, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		voiceID := optString(entry.Options, "voice_id")
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		return elevenlabs.New(entry.APIKey, voiceID, opts...)
	})
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them bundled for the media stream server. Dialogue and TTS are
// wrapped in their resilience fallbacks so a missing or failing backend
// degrades instead of crashing a call.
func buildProviders(cfg *config.Config, reg *config.Registry) (telephony.Providers, error) {
	var ps telephony.Providers
	fbCfg := resilience.FallbackConfig{}

	if name := cfg.Providers.VAD.Name; name != "" {
		p, err := reg.CreateVAD(cfg.Providers.VAD)
		if err != nil {
			return ps, fmt.Errorf("create vad provider %q: %w", name, err)
		}
		ps.VAD = p
		slog.Info("provider created", "kind", "vad", "name", name)
	}

	if name := cfg.Providers.STTStream.Name; name != "" {
		p, err := reg.CreateSTTStream(cfg.Providers.STTStream)
		if err != nil {
			return ps, fmt.Errorf("create stt_stream provider %q: %w", name, err)
		}
		ps.Stream = p
		slog.Info("provider created", "kind", "stt_stream", "name", name)
	}

	if name := cfg.Providers.STTBatch.Name; name != "" {
		p, err := reg.CreateSTTBatch(cfg.Providers.STTBatch)
		if err != nil {
			return ps, fmt.Errorf("create stt_batch provider %q: %w", name, err)
		}
		ps.Batch = p
		slog.Info("provider created", "kind", "stt_batch", "name", name)
	}

	if name := cfg.Providers.Dialogue.Name; name != "" {
		p, err := reg.CreateDialogue(cfg.Providers.Dialogue)
		if err != nil {
			return ps, fmt.Errorf("create dialogue provider %q: %w", name, err)
		}
		ps.Dialogue = resilience.NewDialogueFallback(p, name, fbCfg)
		slog.Info("provider created", "kind", "dialogue", "name", name)
	} else {
		ps.Dialogue = resilience.NewDialogueFallback(resilience.NoDialogue, "none", fbCfg)
	}

	if name := cfg.Providers.TTS.Name; name != "" {
		p, err := reg.CreateTTS(cfg.Providers.TTS)
		if err != nil {
			return ps, fmt.Errorf("create tts provider %q: %w", name, err)
		}
		ps.TTS = resilience.NewTTSFallback(p, name, fbCfg)
		slog.Info("provider created", "kind", "tts", "name", name)
	} else {
		ps.TTS = resilience.NewTTSFallback(resilience.NoTTS, "none", fbCfg)
	}

	return ps, nil
}

// loadBusinessInfo reads the business knowledge file, returning "" when it is
// not configured or unreadable.
func loadBusinessInfo(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("business info file unreadable, dialogue runs without it", "path", path, "err", err)
		return ""
	}
	return string(data)
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        Ringline startup summary       ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("VAD", cfg.Providers.VAD.Name, "")
	printProvider("STT stream", cfg.Providers.STTStream.Name, "")
	printProvider("STT batch", cfg.Providers.STTBatch.Name, "")
	printProvider("Dialogue", cfg.Providers.Dialogue.Name, cfg.Providers.Dialogue.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	if cfg.Business.InfoFile != "" {
		fmt.Printf("║  Business info   : %-19s ║\n", "configured")
	} else {
		fmt.Printf("║  Business info   : %-19s ║\n", "(none)")
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel, lvl *slog.LevelVar) *slog.Logger {
	switch level {
	case config.LogDebug:
		lvl.Set(slog.LevelDebug)
	case config.LogWarn:
		lvl.Set(slog.LevelWarn)
	case config.LogError:
		lvl.Set(slog.LevelError)
	default:
		lvl.Set(slog.LevelInfo)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// optFloat extracts a numeric value from a provider Options map. YAML decodes
// numbers as int or float64 depending on their spelling.
func optFloat(opts map[string]any, key string) float64 {
	if opts == nil {
		return 0
	}
	switch v := opts[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
