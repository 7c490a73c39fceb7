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
	"llm": {"openai", "wenxin", "mock"},
	"asr": {"baidu", "mock"},
	"tts": {"baidu", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
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

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("asr", cfg.Providers.ASR.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	// Credential completeness per provider.
	switch cfg.Providers.LLM.Name {
	case "openai":
		if cfg.Providers.LLM.APIKey == "" {
			errs = append(errs, errors.New("providers.llm: openai requires api_key"))
		}
	case "wenxin":
		if cfg.Providers.LLM.APIKey == "" || cfg.Providers.LLM.SecretKey == "" {
			errs = append(errs, errors.New("providers.llm: wenxin requires api_key and secret_key"))
		}
	}
	for kind, entry := range map[string]ProviderEntry{"asr": cfg.Providers.ASR, "tts": cfg.Providers.TTS} {
		switch entry.Name {
		case "":
			// Speech providers must be chosen deliberately. A missing name is
			// almost always a deployment mistake, so it does not fall back to
			// the offline mock the way the LLM slot does.
			errs = append(errs, fmt.Errorf("providers.%s: name is required (use \"mock\" for offline mode)", kind))
		case "baidu":
			if entry.APIKey == "" || entry.SecretKey == "" {
				errs = append(errs, fmt.Errorf("providers.%s: baidu requires api_key and secret_key", kind))
			}
		}
	}

	// Provider availability warnings
	if cfg.Providers.LLM.Name == "" || cfg.Providers.LLM.Name == "mock" {
		slog.Warn("no LLM provider configured; replies come from the offline mock")
	}
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; learner profiles are kept in memory and lost on restart")
	}
	if cfg.Auth.JWTSecret == "" {
		slog.Warn("auth.jwt_secret is empty; API authentication is disabled")
	}

	// Auto chat tuning
	if cfg.AutoChat.Interval != 0 && cfg.AutoChat.Interval.Std() < MinAutoChatInterval {
		errs = append(errs, fmt.Errorf("auto_chat.interval %s is below the minimum %s", cfg.AutoChat.Interval.Std(), MinAutoChatInterval))
	}
	if cfg.AutoChat.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("auto_chat.max_attempts %d must not be negative", cfg.AutoChat.MaxAttempts))
	}
	if cfg.AutoChat.RetryDelay.Std() < 0 {
		errs = append(errs, fmt.Errorf("auto_chat.retry_delay %s must not be negative", cfg.AutoChat.RetryDelay.Std()))
	}
	if cfg.Auth.TokenTTL.Std() < 0 {
		errs = append(errs, fmt.Errorf("auth.token_ttl %s must not be negative", cfg.Auth.TokenTTL.Std()))
	}
	if cfg.Storage.AudioCache.TTL.Std() < 0 {
		errs = append(errs, fmt.Errorf("storage.audio_cache.ttl %s must not be negative", cfg.Storage.AudioCache.TTL.Std()))
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
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
