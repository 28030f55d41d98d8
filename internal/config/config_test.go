package config_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ringline-ai/ringline/internal/config"
	"github.com/ringline-ai/ringline/pkg/provider/dialogue"
	"github.com/ringline-ai/ringline/pkg/provider/stt"
	"github.com/ringline-ai/ringline/pkg/provider/tts"
	"github.com/ringline-ai/ringline/pkg/provider/vad"
)

const sampleYAML = `
server:
  listen_addr: ":8080"
  log_level: info

providers:
  vad:
    name: silero
    base_url: http://localhost:9090
  stt_stream:
    name: whisperlive
    base_url: ws://localhost:9091
  stt_batch:
    name: whisper
    base_url: http://localhost:9092
  dialogue:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  tts:
    name: elevenlabs
    api_key: el-test
    options:
      voice_id: rachel

pipeline:
  language: en
  silence_after: 500ms
  max_speech: 10s
  debounce: 300ms
  settle_delay: 400ms
  keep_alive_interval: 2s
  synth_timeout: 15s
  decode_gain: 1.5

business:
  info_file: ""
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("server.listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":8080")
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("server.log_level: got %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
	if cfg.Providers.Dialogue.Name != "openai" {
		t.Errorf("providers.dialogue.name: got %q, want %q", cfg.Providers.Dialogue.Name, "openai")
	}
	if cfg.Providers.Dialogue.Model != "gpt-4o-mini" {
		t.Errorf("providers.dialogue.model: got %q", cfg.Providers.Dialogue.Model)
	}
	if got := cfg.Providers.TTS.Options["voice_id"]; got != "rachel" {
		t.Errorf("providers.tts.options.voice_id: got %v, want rachel", got)
	}
	if cfg.Pipeline.SilenceAfter.Std() != 500*time.Millisecond {
		t.Errorf("pipeline.silence_after: got %v, want 500ms", cfg.Pipeline.SilenceAfter.Std())
	}
	if cfg.Pipeline.MaxSpeech.Std() != 10*time.Second {
		t.Errorf("pipeline.max_speech: got %v, want 10s", cfg.Pipeline.MaxSpeech.Std())
	}
	if cfg.Pipeline.DecodeGain != 1.5 {
		t.Errorf("pipeline.decode_gain: got %.2f, want 1.5", cfg.Pipeline.DecodeGain)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	yaml := `
server:
  listen_addr: ":8080"
  log_levle: info
providers:
  stt_batch:
    name: whisper
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for misspelled field, got nil")
	}
}

func TestDuration_UnmarshalForms(t *testing.T) {
	yaml := `
providers:
  stt_batch:
    name: whisper
pipeline:
  silence_after: 750ms
  debounce: 300000000
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Pipeline.SilenceAfter.Std() != 750*time.Millisecond {
		t.Errorf("string form: got %v, want 750ms", cfg.Pipeline.SilenceAfter.Std())
	}
	if cfg.Pipeline.Debounce.Std() != 300*time.Millisecond {
		t.Errorf("integer form: got %v, want 300ms", cfg.Pipeline.Debounce.Std())
	}
}

func TestRegistry_Unknown(t *testing.T) {
	reg := config.NewRegistry()
	entry := config.ProviderEntry{Name: "nonexistent"}

	if _, err := reg.CreateVAD(entry); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateVAD: expected ErrProviderNotRegistered, got: %v", err)
	}
	if _, err := reg.CreateSTTStream(entry); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateSTTStream: expected ErrProviderNotRegistered, got: %v", err)
	}
	if _, err := reg.CreateSTTBatch(entry); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateSTTBatch: expected ErrProviderNotRegistered, got: %v", err)
	}
	if _, err := reg.CreateDialogue(entry); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateDialogue: expected ErrProviderNotRegistered, got: %v", err)
	}
	if _, err := reg.CreateTTS(entry); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateTTS: expected ErrProviderNotRegistered, got: %v", err)
	}
}

func TestRegistry_RegisteredVAD(t *testing.T) {
	reg := config.NewRegistry()
	want := &stubVAD{}
	reg.RegisterVAD("stub", func(e config.ProviderEntry) (vad.Classifier, error) {
		return want, nil
	})
	got, err := reg.CreateVAD(config.ProviderEntry{Name: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("returned provider is not the expected instance")
	}
}

func TestRegistry_RegisteredDialogue(t *testing.T) {
	reg := config.NewRegistry()
	want := &stubDialogue{}
	reg.RegisterDialogue("stub", func(e config.ProviderEntry) (dialogue.Provider, error) {
		return want, nil
	})
	got, err := reg.CreateDialogue(config.ProviderEntry{Name: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("returned provider is not the expected instance")
	}
}

func TestRegistry_RegisteredSTTBatch(t *testing.T) {
	reg := config.NewRegistry()
	want := &stubBatch{}
	reg.RegisterSTTBatch("stub", func(e config.ProviderEntry) (stt.BatchTranscriber, error) {
		return want, nil
	})
	got, err := reg.CreateSTTBatch(config.ProviderEntry{Name: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("returned provider is not the expected instance")
	}
}

func TestRegistry_RegisteredSTTStream(t *testing.T) {
	reg := config.NewRegistry()
	want := &stubStream{}
	reg.RegisterSTTStream("stub", func(e config.ProviderEntry) (stt.StreamProvider, error) {
		return want, nil
	})
	got, err := reg.CreateSTTStream(config.ProviderEntry{Name: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("returned provider is not the expected instance")
	}
}

func TestRegistry_RegisteredTTS(t *testing.T) {
	reg := config.NewRegistry()
	want := &stubTTS{}
	reg.RegisterTTS("stub", func(e config.ProviderEntry) (tts.Provider, error) {
		return want, nil
	})
	got, err := reg.CreateTTS(config.ProviderEntry{Name: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("returned provider is not the expected instance")
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	reg := config.NewRegistry()
	wantErr := errors.New("factory boom")
	reg.RegisterDialogue("broken", func(e config.ProviderEntry) (dialogue.Provider, error) {
		return nil, wantErr
	})
	_, err := reg.CreateDialogue(config.ProviderEntry{Name: "broken"})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected factory error %v, got %v", wantErr, err)
	}
}

// Stub implementations, just enough to satisfy the interfaces.

type stubVAD struct{}

func (s *stubVAD) IsSpeech(_ context.Context, _ []byte) (bool, error) { return false, nil }

type stubStream struct{}

func (s *stubStream) StartStream(_ context.Context, _ stt.StreamConfig) (stt.SessionHandle, error) {
	return nil, nil
}

type stubBatch struct{}

func (s *stubBatch) Transcribe(_ context.Context, _ []byte) (string, error) { return "", nil }

type stubDialogue struct{}

func (s *stubDialogue) Complete(_ context.Context, _ dialogue.Request) (*dialogue.Result, error) {
	return &dialogue.Result{}, nil
}

type stubTTS struct{}

func (s *stubTTS) Synthesize(_ context.Context, _ string) ([]byte, error) { return nil, nil }
