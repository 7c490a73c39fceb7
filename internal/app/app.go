// Package app wires all subsystems into a running backend.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the HTTP API until the context is cancelled, and
// Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithStore, WithTimer).
// When an option is not provided, New creates real implementations from the
// config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yxz1025/ai-helper/internal/autochat"
	"github.com/yxz1025/ai-helper/internal/catalog"
	"github.com/yxz1025/ai-helper/internal/config"
	"github.com/yxz1025/ai-helper/internal/health"
	"github.com/yxz1025/ai-helper/internal/httpapi"
	"github.com/yxz1025/ai-helper/internal/observe"
	"github.com/yxz1025/ai-helper/internal/profile"
	profilememory "github.com/yxz1025/ai-helper/internal/profile/memory"
	profilepostgres "github.com/yxz1025/ai-helper/internal/profile/postgres"
	"github.com/yxz1025/ai-helper/internal/reply"
	"github.com/yxz1025/ai-helper/internal/voice"
	"github.com/yxz1025/ai-helper/pkg/audiocache"
	"github.com/yxz1025/ai-helper/pkg/provider/asr"
	"github.com/yxz1025/ai-helper/pkg/provider/llm"
	"github.com/yxz1025/ai-helper/pkg/provider/tts"
)

// shutdownGrace bounds the HTTP server drain during shutdown.
const shutdownGrace = 10 * time.Second

// Providers holds one interface value per provider slot. Populated by
// main.go via the config registry; never nil (the offline mocks fill empty
// slots).
type Providers struct {
	LLM llm.Provider
	ASR asr.Provider
	TTS tts.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	store     profile.Store
	cache     *audiocache.Cache
	transport *voice.Transport
	generator *reply.Generator
	hub       *httpapi.Hub
	server    *http.Server
	metrics   *observe.Metrics
	timer     autochat.Timer

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a profile store instead of creating one from config.
func WithStore(s profile.Store) Option {
	return func(a *App) { a.store = s }
}

// WithTimer injects the scheduler timer source. Used in tests.
func WithTimer(t autochat.Timer) Option {
	return func(a *App) { a.timer = t }
}

// WithMetrics injects a metrics instance instead of the global default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.LLM == nil || providers.ASR == nil || providers.TTS == nil {
		return nil, errors.New("app: all provider slots must be filled")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Profile store ─────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Audio cache ───────────────────────────────────────────────────
	if err := a.initAudioCache(); err != nil {
		return nil, fmt.Errorf("app: init audio cache: %w", err)
	}

	// ── 3. Voice transport + reply generator ─────────────────────────────
	if err := a.initPipeline(); err != nil {
		return nil, fmt.Errorf("app: init pipeline: %w", err)
	}

	// ── 4. Session hub + HTTP server ─────────────────────────────────────
	if err := a.initServer(); err != nil {
		return nil, fmt.Errorf("app: init server: %w", err)
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore sets up PostgreSQL persistence, or the in-memory store when no
// DSN is configured.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil // injected
	}

	dsn := a.cfg.Storage.PostgresDSN
	if dsn == "" {
		a.store = profilememory.NewStore()
		return nil
	}

	store, err := profilepostgres.NewStore(ctx, dsn)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	return nil
}

// initAudioCache opens the synthesized-audio cache when a directory is
// configured.
func (a *App) initAudioCache() error {
	dir := a.cfg.Storage.AudioCache.Dir
	if dir == "" {
		return nil
	}

	cache, err := audiocache.Open(audiocache.Options{
		Dir: dir,
		TTL: a.cfg.Storage.AudioCache.TTL.Std(),
	})
	if err != nil {
		return err
	}
	a.cache = cache
	a.closers = append(a.closers, cache.Close)
	return nil
}

// initPipeline builds the voice transport and reply generator over the
// configured providers.
func (a *App) initPipeline() error {
	transportOpts := []voice.Option{voice.WithMetrics(a.metrics)}
	if a.cache != nil {
		transportOpts = append(transportOpts, voice.WithCache(a.cache))
	}
	transport, err := voice.NewTransport(a.providers.ASR, a.providers.TTS, transportOpts...)
	if err != nil {
		return err
	}
	a.transport = transport

	generator, err := reply.NewGenerator(a.providers.LLM, reply.WithMetrics(a.metrics))
	if err != nil {
		return err
	}
	a.generator = generator
	return nil
}

// initServer builds the session hub, health checks, and HTTP server.
func (a *App) initServer() error {
	hub, err := httpapi.NewHub(httpapi.HubDeps{
		Store:     a.store,
		Selector:  catalog.NewSelector(catalog.New()),
		Generator: a.generator,
		Transport: a.transport,
		AutoChat:  a.autoChatConfig(),
		Timer:     a.timer,
		Metrics:   a.metrics,
	})
	if err != nil {
		return err
	}
	a.hub = hub

	probes := []health.Probe{health.Speech(a.transport.DegradedProviders)}
	if pg, ok := a.store.(*profilepostgres.Store); ok {
		probes = append(probes, health.Database(pg.Ping))
	}

	api, err := httpapi.NewServer(httpapi.ServerOptions{
		Hub:       hub,
		Store:     a.store,
		JWTSecret: a.cfg.Auth.JWTSecret,
		TokenTTL:  a.cfg.Auth.TokenTTL.Std(),
		Health:    health.New(probes...),
		Metrics:   a.metrics,
	})
	if err != nil {
		return err
	}

	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	a.server = &http.Server{
		Addr:    addr,
		Handler: api.Handler(),
	}
	return nil
}

// autoChatConfig converts the config section into scheduler tuning.
func (a *App) autoChatConfig() autochat.Config {
	return autochat.Config{
		Enabled:     a.cfg.AutoChat.IsEnabled(),
		Interval:    a.cfg.AutoChat.Interval.Std(),
		MaxAttempts: a.cfg.AutoChat.MaxAttempts,
		RetryDelay:  a.cfg.AutoChat.RetryDelay.Std(),
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves the HTTP API and blocks until ctx is cancelled or the server
// fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", a.server.Addr, "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return a.server.Shutdown(drainCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("app: run: %w", err)
	}
	return ctx.Err()
}

// ApplyConfig handles hot-reloadable config changes from the watcher.
func (a *App) ApplyConfig(ctx context.Context, diff config.ConfigDiff) {
	if diff.AutoChatChanged {
		cfg := autochat.Config{
			Enabled:     diff.NewAutoChat.IsEnabled(),
			Interval:    diff.NewAutoChat.Interval.Std(),
			MaxAttempts: diff.NewAutoChat.MaxAttempts,
			RetryDelay:  diff.NewAutoChat.RetryDelay.Std(),
		}
		a.hub.SetAutoChatConfig(ctx, cfg)
		slog.Info("applied auto chat config", "interval", cfg.Interval, "enabled", cfg.Enabled)
	}
	if diff.RestartRequired {
		slog.Warn("config change requires restart to take effect")
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops all sessions and tears down subsystems in reverse-init
// order. It respects the context deadline: if ctx expires before all closers
// finish, remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		a.hub.Close(ctx)

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
