package config

// ConfigDiff describes what changed between two configs. Only fields that can
// be safely hot-reloaded are tracked in detail; everything else just sets
// RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// AutoChatChanged is true when any auto_chat tuning field changed.
	AutoChatChanged bool
	NewAutoChat     AutoChatConfig

	// RestartRequired is true when a field outside the hot-reloadable set
	// changed (server address, providers, storage, auth).
	RestartRequired bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if autoChatChanged(old.AutoChat, new.AutoChat) {
		d.AutoChatChanged = true
		d.NewAutoChat = new.AutoChat
	}

	if old.Server.ListenAddr != new.Server.ListenAddr ||
		entryChanged(old.Providers.LLM, new.Providers.LLM) ||
		entryChanged(old.Providers.ASR, new.Providers.ASR) ||
		entryChanged(old.Providers.TTS, new.Providers.TTS) ||
		old.Storage != new.Storage ||
		old.Auth != new.Auth {
		d.RestartRequired = true
	}

	return d
}

// autoChatChanged compares the resolved tuning, so flipping enabled between
// unset and an explicit true is not reported as a change.
func autoChatChanged(old, new AutoChatConfig) bool {
	return old.IsEnabled() != new.IsEnabled() ||
		old.Interval != new.Interval ||
		old.MaxAttempts != new.MaxAttempts ||
		old.RetryDelay != new.RetryDelay
}

// entryChanged compares the fields of a provider entry that affect wiring.
// Options are provider-internal and intentionally ignored here.
func entryChanged(old, new ProviderEntry) bool {
	return old.Name != new.Name ||
		old.APIKey != new.APIKey ||
		old.SecretKey != new.SecretKey ||
		old.BaseURL != new.BaseURL ||
		old.Model != new.Model
}
