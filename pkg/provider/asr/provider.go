// Package asr defines the Provider interface for speech recognition backends.
//
// A provider takes a complete recorded utterance and returns the recognised
// text. Streaming recognition is out of scope: the client surface records a
// clip and uploads it whole. Implementors must be safe for concurrent use.
package asr

import "context"

// AudioConfig describes the uploaded audio clip.
type AudioConfig struct {
	// Format is the container/codec name, e.g. "mp3", "wav", "pcm".
	Format string

	// SampleRate in Hz, e.g. 16000.
	SampleRate int

	// Channels is the channel count. Children's recordings are mono.
	Channels int
}

// Result is a successful recognition.
type Result struct {
	// Text is the recognised utterance.
	Text string

	// Confidence in [0, 1]. Providers that do not report confidence should
	// use a fixed estimate rather than zero.
	Confidence float64
}

// Provider is the abstraction over any speech recognition backend.
type Provider interface {
	// Recognize transcribes the given audio. Returns an error when the
	// backend rejects the clip or the request fails; the caller decides how
	// to degrade.
	Recognize(ctx context.Context, audio []byte, cfg AudioConfig) (*Result, error)

	// Name returns the provider's registry name for logs and metrics.
	Name() string
}
