package config_test

import (
	"testing"
	"time"

	"github.com/yxz1025/ai-helper/internal/config"
)

func boolPtr(b bool) *bool { return &b }

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ListenAddr: ":8080", LogLevel: config.LogInfo},
		AutoChat: config.AutoChatConfig{
			Enabled:     boolPtr(true),
			Interval:    config.Duration(30 * time.Second),
			MaxAttempts: 3,
			RetryDelay:  config.Duration(5 * time.Second),
		},
	}
}

func TestDiffNoChanges(t *testing.T) {
	t.Parallel()

	old, new := baseConfig(), baseConfig()
	d := config.Diff(old, new)
	if d.LogLevelChanged || d.AutoChatChanged || d.RestartRequired {
		t.Fatalf("diff of identical configs = %+v, want empty", d)
	}
}

func TestDiffHotReloadableChanges(t *testing.T) {
	t.Parallel()

	old, new := baseConfig(), baseConfig()
	new.Server.LogLevel = config.LogDebug
	new.AutoChat.Interval = config.Duration(time.Minute)

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("log level diff = %+v", d)
	}
	if !d.AutoChatChanged || d.NewAutoChat.Interval.Std() != time.Minute {
		t.Errorf("auto chat diff = %+v", d)
	}
	if d.RestartRequired {
		t.Error("hot-reloadable changes should not require restart")
	}
}

func TestDiffTreatsUnsetEnabledAsOn(t *testing.T) {
	t.Parallel()

	old, new := baseConfig(), baseConfig()
	new.AutoChat.Enabled = nil

	if d := config.Diff(old, new); d.AutoChatChanged {
		t.Fatalf("diff = %+v, want no change between explicit true and unset", d)
	}

	new.AutoChat.Enabled = boolPtr(false)
	if d := config.Diff(old, new); !d.AutoChatChanged {
		t.Fatal("disabling auto chat not reported as a change")
	}
}

func TestDiffRestartRequired(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"listen addr", func(c *config.Config) { c.Server.ListenAddr = ":9090" }},
		{"llm provider", func(c *config.Config) { c.Providers.LLM.Name = "openai" }},
		{"asr credentials", func(c *config.Config) { c.Providers.ASR.APIKey = "new" }},
		{"postgres dsn", func(c *config.Config) { c.Storage.PostgresDSN = "postgres://other" }},
		{"jwt secret", func(c *config.Config) { c.Auth.JWTSecret = "rotated" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			old, new := baseConfig(), baseConfig()
			tt.mutate(new)
			if d := config.Diff(old, new); !d.RestartRequired {
				t.Fatalf("diff = %+v, want RestartRequired", d)
			}
		})
	}
}
