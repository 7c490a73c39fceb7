// Command aihelper is the main entry point for the ai-helper backend: the
// voice conversation server behind the children's English learning app.
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

	"github.com/yxz1025/ai-helper/internal/app"
	"github.com/yxz1025/ai-helper/internal/config"
	"github.com/yxz1025/ai-helper/internal/observe"
	"github.com/yxz1025/ai-helper/pkg/provider/asr"
	asrbaidu "github.com/yxz1025/ai-helper/pkg/provider/asr/baidu"
	asrmock "github.com/yxz1025/ai-helper/pkg/provider/asr/mock"
	"github.com/yxz1025/ai-helper/pkg/provider/baidutoken"
	"github.com/yxz1025/ai-helper/pkg/provider/llm"
	llmmock "github.com/yxz1025/ai-helper/pkg/provider/llm/mock"
	llmopenai "github.com/yxz1025/ai-helper/pkg/provider/llm/openai"
	llmwenxin "github.com/yxz1025/ai-helper/pkg/provider/llm/wenxin"
	"github.com/yxz1025/ai-helper/pkg/provider/tts"
	ttsbaidu "github.com/yxz1025/ai-helper/pkg/provider/tts/baidu"
	ttsmock "github.com/yxz1025/ai-helper/pkg/provider/tts/mock"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "aihelper: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "aihelper: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("aihelper starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics ───────────────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(flushCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		diff := config.Diff(old, new)
		if diff.LogLevelChanged {
			logLevel.Set(slogLevel(diff.NewLogLevel))
			slog.Info("log level changed", "level", diff.NewLogLevel)
		}
		application.ApplyConfig(ctx, diff)
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []llmopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(entry.BaseURL))
		}
		return llmopenai.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterLLM("wenxin", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []llmwenxin.Option
		if entry.BaseURL != "" {
			opts = append(opts, llmwenxin.WithEndpoint(entry.BaseURL))
		}
		return llmwenxin.New(baidutoken.New(entry.APIKey, entry.SecretKey), opts...)
	})

	reg.RegisterLLM("mock", func(config.ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{}, nil
	})

	// ── ASR ───────────────────────────────────────────────────────────────────

	reg.RegisterASR("baidu", func(entry config.ProviderEntry) (asr.Provider, error) {
		var opts []asrbaidu.Option
		if entry.BaseURL != "" {
			opts = append(opts, asrbaidu.WithEndpoint(entry.BaseURL))
		}
		return asrbaidu.New(baidutoken.New(entry.APIKey, entry.SecretKey), opts...)
	})

	reg.RegisterASR("mock", func(config.ProviderEntry) (asr.Provider, error) {
		return &asrmock.Provider{}, nil
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("baidu", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []ttsbaidu.Option
		if entry.BaseURL != "" {
			opts = append(opts, ttsbaidu.WithEndpoint(entry.BaseURL))
		}
		return ttsbaidu.New(baidutoken.New(entry.APIKey, entry.SecretKey), opts...)
	})

	reg.RegisterTTS("mock", func(config.ProviderEntry) (tts.Provider, error) {
		return &ttsmock.Provider{}, nil
	})
}

// buildProviders instantiates the providers named in cfg using the registry.
// Only the LLM slot falls back to the offline mock when left empty; the
// speech slots must name a provider explicitly, which [config.Validate]
// enforces before this runs.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	llmEntry := cfg.Providers.LLM
	if llmEntry.Name == "" {
		llmEntry.Name = "mock"
	}
	p, err := reg.CreateLLM(llmEntry)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", llmEntry.Name, err)
	}
	ps.LLM = p
	slog.Info("provider created", "kind", "llm", "name", llmEntry.Name)

	asrEntry := cfg.Providers.ASR
	if asrEntry.Name == "" {
		return nil, errors.New("providers.asr: name is required")
	}
	rp, err := reg.CreateASR(asrEntry)
	if err != nil {
		return nil, fmt.Errorf("create asr provider %q: %w", asrEntry.Name, err)
	}
	ps.ASR = rp
	slog.Info("provider created", "kind", "asr", "name", asrEntry.Name)

	ttsEntry := cfg.Providers.TTS
	if ttsEntry.Name == "" {
		return nil, errors.New("providers.tts: name is required")
	}
	sp, err := reg.CreateTTS(ttsEntry)
	if err != nil {
		return nil, fmt.Errorf("create tts provider %q: %w", ttsEntry.Name, err)
	}
	ps.TTS = sp
	slog.Info("provider created", "kind", "tts", "name", ttsEntry.Name)

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        ai-helper — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("ASR", cfg.Providers.ASR.Name, "")
	printProvider("TTS", cfg.Providers.TTS.Name, "")
	if cfg.Storage.PostgresDSN != "" {
		fmt.Printf("║  Storage         : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Storage         : %-19s ║\n", "in-memory")
	}
	if cfg.Storage.AudioCache.Dir != "" {
		fmt.Printf("║  Audio cache     : %-19s ║\n", "enabled")
	} else {
		fmt.Printf("║  Audio cache     : %-19s ║\n", "(disabled)")
	}
	if cfg.AutoChat.IsEnabled() {
		fmt.Printf("║  Auto chat       : %-19s ║\n", "enabled")
	} else {
		fmt.Printf("║  Auto chat       : %-19s ║\n", "(disabled)")
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "mock (offline)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

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
