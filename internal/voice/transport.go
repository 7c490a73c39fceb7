// Package voice is the transport between the conversation engine and the
// speech providers. It owns the voice-parameter policy and converts provider
// errors into tagged results: callers inspect the Success flag and degrade,
// they never receive a Go error for a provider failure and they never see a
// panic from this layer.
package voice

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/yxz1025/ai-helper/internal/observe"
	"github.com/yxz1025/ai-helper/internal/resilience"
	"github.com/yxz1025/ai-helper/pkg/audiocache"
	"github.com/yxz1025/ai-helper/pkg/provider/asr"
	"github.com/yxz1025/ai-helper/pkg/provider/tts"
	"github.com/yxz1025/ai-helper/pkg/types"
)

// callTimeout bounds every provider round-trip.
const callTimeout = 10 * time.Second

// RecognitionResult is the tagged outcome of a recognition attempt.
type RecognitionResult struct {
	// Success tells whether Text carries a usable transcription.
	Success bool

	// Text is the recognised utterance. Empty on failure.
	Text string

	// Confidence in [0, 1]. Zero on failure.
	Confidence float64

	// Err describes the failure for logs. Nil on success.
	Err error
}

// SynthesisResult is the tagged outcome of a synthesis attempt.
type SynthesisResult struct {
	// Success tells whether Clip carries playable audio.
	Success bool

	// Clip is the synthesised audio. Nil on failure.
	Clip *types.AudioClip

	// Cached tells whether the clip came from the audio cache rather than
	// the provider.
	Cached bool

	// Err describes the failure for logs. Nil on success.
	Err error
}

// Transport sequences recognition and synthesis calls for the conversation
// engine. Safe for concurrent use.
type Transport struct {
	recognizer asr.Provider
	speaker    tts.Provider
	cache      *audiocache.Cache
	metrics    *observe.Metrics
	logger     *slog.Logger

	// Per-provider breakers keep a dead speech service from stalling every
	// conversation cycle on a timeout.
	asrBreaker *resilience.Breaker
	ttsBreaker *resilience.Breaker
}

// Option is a functional option for [NewTransport].
type Option func(*Transport)

// WithCache attaches a synthesised-audio cache. Without one every synthesis
// hits the provider.
func WithCache(c *audiocache.Cache) Option {
	return func(t *Transport) { t.cache = c }
}

// WithMetrics overrides the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(t *Transport) { t.metrics = m }
}

// WithLogger overrides the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// NewTransport creates a transport over the given providers. Both must be
// non-nil; credential checks happen at provider construction, not here.
func NewTransport(recognizer asr.Provider, speaker tts.Provider, opts ...Option) (*Transport, error) {
	if recognizer == nil {
		return nil, errors.New("voice: recognizer must not be nil")
	}
	if speaker == nil {
		return nil, errors.New("voice: speaker must not be nil")
	}
	t := &Transport{
		recognizer: recognizer,
		speaker:    speaker,
	}
	for _, o := range opts {
		o(t)
	}
	if t.metrics == nil {
		t.metrics = observe.DefaultMetrics()
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	t.asrBreaker = resilience.NewBreaker("asr/"+recognizer.Name(), resilience.WithLogger(t.logger))
	t.ttsBreaker = resilience.NewBreaker("tts/"+speaker.Name(), resilience.WithLogger(t.logger))
	return t, nil
}

// DegradedProviders lists the speech providers whose breaker is currently
// open. Conversations continue in text-only form while a provider is listed.
func (t *Transport) DegradedProviders() []string {
	var names []string
	if t.asrBreaker.State() == resilience.Open {
		names = append(names, "asr/"+t.recognizer.Name())
	}
	if t.ttsBreaker.State() == resilience.Open {
		names = append(names, "tts/"+t.speaker.Name())
	}
	return names
}

// Recognize transcribes a recorded utterance. Failures are reported in the
// result, never panicked or returned as an error.
func (t *Transport) Recognize(ctx context.Context, audio []byte, cfg asr.AudioConfig) RecognitionResult {
	if len(audio) == 0 {
		return RecognitionResult{Err: errors.New("voice: empty audio")}
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	var res *asr.Result
	err := t.asrBreaker.Do(func() error {
		start := time.Now()
		var callErr error
		res, callErr = t.recognizer.Recognize(ctx, audio, cfg)
		t.metrics.ASRDuration.Record(ctx, time.Since(start).Seconds())
		return callErr
	})

	if errors.Is(err, resilience.ErrOpen) {
		t.logger.Debug("speech recognition skipped, breaker open", "provider", t.recognizer.Name())
		return RecognitionResult{Err: err}
	}
	if err != nil {
		t.metrics.RecordProviderError(ctx, t.recognizer.Name(), "asr")
		t.logger.Warn("speech recognition failed", "provider", t.recognizer.Name(), "err", err)
		return RecognitionResult{Err: err}
	}
	return RecognitionResult{Success: true, Text: res.Text, Confidence: res.Confidence}
}

// Synthesize renders text with the given parameters, consulting the clip
// cache first when one is attached. Failures are reported in the result.
func (t *Transport) Synthesize(ctx context.Context, text string, params tts.Params) SynthesisResult {
	if text == "" {
		return SynthesisResult{Err: errors.New("voice: empty text")}
	}
	params = params.Clamp()

	var key string
	if t.cache != nil {
		key = audiocache.Key(text, params)
		if clip, err := t.cache.Get(key); err == nil {
			return SynthesisResult{Success: true, Clip: clip, Cached: true}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	var clip *types.AudioClip
	err := t.ttsBreaker.Do(func() error {
		start := time.Now()
		var callErr error
		clip, callErr = t.speaker.Synthesize(ctx, text, params)
		t.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
		return callErr
	})

	if errors.Is(err, resilience.ErrOpen) {
		t.logger.Debug("speech synthesis skipped, breaker open", "provider", t.speaker.Name())
		return SynthesisResult{Err: err}
	}
	if err != nil {
		t.metrics.RecordProviderError(ctx, t.speaker.Name(), "tts")
		t.logger.Warn("speech synthesis failed", "provider", t.speaker.Name(), "err", err)
		return SynthesisResult{Err: err}
	}

	if t.cache != nil {
		if err := t.cache.Put(key, clip); err != nil {
			t.logger.Debug("audio cache write failed", "err", err)
		}
	}
	return SynthesisResult{Success: true, Clip: clip}
}

// SynthesizeFor is a convenience wrapper deriving the voice parameters from
// the learner profile before synthesising.
func (t *Transport) SynthesizeFor(ctx context.Context, text string, profile types.LearnerProfile) SynthesisResult {
	return t.Synthesize(ctx, text, ParamsFor(profile.Age, profile.Personality))
}
