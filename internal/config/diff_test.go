package config_test

import (
	"testing"
	"time"

	"github.com/ringline-ai/ringline/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server:   config.ServerConfig{LogLevel: config.LogInfo},
		Pipeline: config.PipelineConfig{SilenceAfter: config.Duration(500 * time.Millisecond)},
		Business: config.BusinessConfig{InfoFile: "/etc/ringline/business.json"},
	}
	d := config.Diff(cfg, cfg)
	if d.Any() {
		t.Errorf("expected empty diff for identical configs, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if d.PipelineChanged || d.BusinessChanged {
		t.Error("only the log level should be flagged")
	}
}

func TestDiff_PipelineChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Pipeline: config.PipelineConfig{SettleDelay: config.Duration(400 * time.Millisecond)},
	}
	new := &config.Config{
		Pipeline: config.PipelineConfig{SettleDelay: config.Duration(600 * time.Millisecond)},
	}

	d := config.Diff(old, new)
	if !d.PipelineChanged {
		t.Error("expected PipelineChanged=true")
	}
	if d.NewPipeline.SettleDelay.Std() != 600*time.Millisecond {
		t.Errorf("expected NewPipeline.SettleDelay=600ms, got %v", d.NewPipeline.SettleDelay.Std())
	}
}

func TestDiff_BusinessChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Business: config.BusinessConfig{InfoFile: "/tmp/a.json"}}
	new := &config.Config{Business: config.BusinessConfig{InfoFile: "/tmp/b.json"}}

	d := config.Diff(old, new)
	if !d.BusinessChanged {
		t.Error("expected BusinessChanged=true")
	}
	if d.NewBusiness.InfoFile != "/tmp/b.json" {
		t.Errorf("expected NewBusiness.InfoFile=/tmp/b.json, got %q", d.NewBusiness.InfoFile)
	}
}

func TestDiff_ProviderChangeIsNotHotReloadable(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Providers: config.ProvidersConfig{Dialogue: config.ProviderEntry{Name: "openai"}},
	}
	new := &config.Config{
		Providers: config.ProvidersConfig{Dialogue: config.ProviderEntry{Name: "other"}},
	}

	d := config.Diff(old, new)
	if d.Any() {
		t.Errorf("provider changes must not appear in the hot-reload diff, got %+v", d)
	}
}
