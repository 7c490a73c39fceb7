// Package mock provides an offline tts.Provider used both as the runtime
// fallback when no speech credentials are configured and as a test double.
//
// With no fields set, Synthesize returns a small placeholder clip whose
// content encodes the input so tests can assert what was synthesised.
package mock

import (
	"context"
	"sync"

	"github.com/yxz1025/ai-helper/pkg/provider/tts"
	"github.com/yxz1025/ai-helper/pkg/types"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Text is the text passed to Synthesize.
	Text string
	// Params is the Params value passed to Synthesize.
	Params tts.Params
}

// Provider is a mock implementation of tts.Provider.
// Zero values for the response fields produce a placeholder clip.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Clip, if non-nil, is returned verbatim by Synthesize.
	Clip *types.AudioClip

	// Err, if non-nil, is returned as the error from Synthesize.
	Err error

	// --- Call records (read after test) ---

	// SynthesizeCalls records every invocation of Synthesize in order.
	SynthesizeCalls []SynthesizeCall
}

// Synthesize records the call and returns the configured clip, the configured
// error, or a placeholder clip embedding the input text.
func (p *Provider) Synthesize(ctx context.Context, text string, params tts.Params) (*types.AudioClip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Text: text, Params: params})

	if p.Err != nil {
		return nil, p.Err
	}
	if p.Clip != nil {
		return p.Clip, nil
	}
	return &types.AudioClip{Data: []byte("mock-audio:" + text), Format: "mp3"}, nil
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return "mock" }

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
