// Package mock provides an offline asr.Provider used both as the runtime
// fallback when no speech credentials are configured and as a test double.
//
// With no fields set, Recognize cycles deterministically through a fixed set
// of phrases a child learner would plausibly say. Tests can pin an exact
// result or inject an error.
package mock

import (
	"context"
	"sync"

	"github.com/yxz1025/ai-helper/pkg/provider/asr"
)

// RecognizeCall records a single invocation of Recognize.
type RecognizeCall struct {
	// Ctx is the context passed to Recognize.
	Ctx context.Context
	// AudioLen is the length of the audio slice passed to Recognize.
	AudioLen int
	// Cfg is the AudioConfig passed to Recognize.
	Cfg asr.AudioConfig
}

// phrases is the fixed rotation of recognition results.
var phrases = []string{
	"Hello!",
	"How are you?",
	"What's your name?",
	"I'm fine, thank you!",
	"Nice to meet you!",
	"Good morning!",
	"Good afternoon!",
	"Good evening!",
	"Thank you very much!",
	"You're welcome!",
	"What color is this?",
	"I like apples!",
	"Can you help me?",
	"I love learning English!",
	"This is a cat!",
}

// Provider is a mock implementation of asr.Provider.
// Zero values for the response fields select the built-in phrase rotation.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Result, if non-nil, is returned verbatim by Recognize.
	Result *asr.Result

	// Err, if non-nil, is returned as the error from Recognize.
	Err error

	// --- Call records (read after test) ---

	// RecognizeCalls records every invocation of Recognize in order.
	RecognizeCalls []RecognizeCall

	next int
}

// Recognize records the call and returns the configured result, the
// configured error, or the next phrase in the rotation.
func (p *Provider) Recognize(ctx context.Context, audio []byte, cfg asr.AudioConfig) (*asr.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RecognizeCalls = append(p.RecognizeCalls, RecognizeCall{Ctx: ctx, AudioLen: len(audio), Cfg: cfg})

	if p.Err != nil {
		return nil, p.Err
	}
	if p.Result != nil {
		return p.Result, nil
	}

	text := phrases[p.next%len(phrases)]
	p.next++
	return &asr.Result{Text: text, Confidence: 0.85}, nil
}

// Name implements asr.Provider.
func (p *Provider) Name() string { return "mock" }

// Reset clears all recorded calls and the phrase rotation. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RecognizeCalls = nil
	p.next = 0
}

// Ensure Provider implements asr.Provider at compile time.
var _ asr.Provider = (*Provider)(nil)
