// Package app wires all Ringline subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves until the context is cancelled, and Shutdown tears
// everything down in order.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ringline-ai/ringline/internal/config"
	"github.com/ringline-ai/ringline/internal/health"
	"github.com/ringline-ai/ringline/internal/observe"
	"github.com/ringline-ai/ringline/internal/session"
	"github.com/ringline-ai/ringline/internal/telephony"
)

// shutdownTimeout bounds the drain of in-flight connections during Shutdown.
const shutdownTimeout = 15 * time.Second

// defaultListenAddr is used when server.listen_addr is not configured.
const defaultListenAddr = ":8080"

// App owns all subsystem lifetimes: the media stream server, the HTTP
// surface around it (health, metrics), and the optional config watcher.
type App struct {
	cfg      *config.Config
	media    *telephony.Server
	registry *session.Registry
	httpSrv  *http.Server
	probes   *health.Handler

	// logLevel, when set, lets the config watcher apply log level changes
	// without a restart.
	logLevel *slog.LevelVar
	watcher  *config.Watcher

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithLogLevelVar hands the App the level var backing the process logger so
// config reloads can adjust verbosity live.
func WithLogLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// WithSessionRegistry injects a session registry instead of creating a fresh one.
func WithSessionRegistry(r *session.Registry) Option {
	return func(a *App) { a.registry = r }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(cfg *config.Config, providers telephony.Providers, opts ...Option) (*App, error) {
	if providers.Stream == nil && providers.Batch == nil {
		return nil, errors.New("app: no transcription path configured")
	}

	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.registry == nil {
		a.registry = session.NewRegistry(slog.Default())
	}

	metrics := observe.DefaultMetrics()

	a.media = telephony.NewServer(providers, pipelineConfig(cfg.Pipeline),
		telephony.WithMetrics(metrics),
		telephony.WithRegistry(a.registry))

	mux := http.NewServeMux()
	mux.Handle("/call", a.media)
	mux.Handle("/metrics", promhttp.Handler())
	a.probes = health.New(health.WithActiveCalls(a.registry.Len))
	a.probes.Register(mux)

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = defaultListenAddr
	}
	a.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// MediaServer returns the media stream server, mainly for tests.
func (a *App) MediaServer() *telephony.Server { return a.media }

// Handler returns the full HTTP handler (media stream, health, metrics).
func (a *App) Handler() http.Handler { return a.httpSrv.Handler }

// Watch starts a config file watcher that hot-applies the reloadable subset
// of the configuration: log level and pipeline tunables. Everything else
// needs a restart and is only logged.
func (a *App) Watch(path string) error {
	w, err := config.NewWatcher(path, a.applyReload)
	if err != nil {
		return fmt.Errorf("app: start config watcher: %w", err)
	}
	a.watcher = w
	return nil
}

func (a *App) applyReload(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Any() {
		return
	}

	if d.LogLevelChanged {
		if a.logLevel != nil {
			a.logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		} else {
			slog.Warn("log level changed in config but the logger is not reloadable")
		}
	}

	if d.PipelineChanged {
		a.media.UpdateConfig(pipelineConfig(d.NewPipeline))
		slog.Info("pipeline tunables updated, applies to new calls")
	}

	if d.BusinessChanged {
		slog.Warn("business info changed; the dialogue prompt updates on restart")
	}
}

// Run serves HTTP until ctx is cancelled, then drains in-flight connections.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.httpSrv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.httpSrv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown stops the watcher, drains the HTTP server, and runs all closers.
// Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		// Fail readiness first so the load balancer steers new calls away
		// while in-flight ones drain.
		a.probes.SetDraining(true)
		if a.watcher != nil {
			a.watcher.Stop()
		}
		err = a.httpSrv.Shutdown(ctx)
		for _, c := range a.closers {
			if cerr := c(); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}

// pipelineConfig converts the YAML pipeline block into the telephony
// server's tunables.
func pipelineConfig(p config.PipelineConfig) telephony.PipelineConfig {
	return telephony.PipelineConfig{
		Language:          p.Language,
		SilenceAfter:      p.SilenceAfter.Std(),
		MaxSpeech:         p.MaxSpeech.Std(),
		Debounce:          p.Debounce.Std(),
		SettleDelay:       p.SettleDelay.Std(),
		KeepAliveInterval: p.KeepAliveInterval.Std(),
		SynthTimeout:      p.SynthTimeout.Std(),
		DecodeGain:        p.DecodeGain,
		RawDumpDir:        p.RawDumpDir,
	}
}

// slogLevel maps a config log level to its slog equivalent.
func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
