// Package tts defines the Provider interface for speech synthesis backends.
//
// A provider turns one complete English sentence into an encoded audio clip.
// Voice parameters use the Baidu 0–15 integer scale; providers on a
// different scale must map from it. Implementors must be safe for concurrent
// use.
package tts

import (
	"context"

	"github.com/yxz1025/ai-helper/pkg/types"
)

// Params are the synthesis voice parameters. All integer fields are on the
// 0–15 scale with 5 as the neutral midpoint, except Voice which selects a
// speaker preset.
type Params struct {
	// Language is the synthesis language code, e.g. "en".
	Language string

	// Speed is the speaking rate, 0 (slowest) to 15 (fastest).
	Speed int

	// Pitch is the voice pitch, 0 (lowest) to 15 (highest).
	Pitch int

	// Volume is the loudness, 0 (quietest) to 15 (loudest).
	Volume int

	// Voice selects the speaker preset (0 female, 1 male, higher values are
	// provider-specific presets).
	Voice int
}

// Clamp returns a copy of p with Speed, Pitch, and Volume forced into the
// 0–15 scale. Voice is left as-is since presets are provider-defined.
func (p Params) Clamp() Params {
	p.Speed = clamp15(p.Speed)
	p.Pitch = clamp15(p.Pitch)
	p.Volume = clamp15(p.Volume)
	return p
}

func clamp15(v int) int {
	if v < 0 {
		return 0
	}
	if v > 15 {
		return 15
	}
	return v
}

// Provider is the abstraction over any speech synthesis backend.
type Provider interface {
	// Synthesize renders text with the given voice parameters. Returns an
	// error when the backend rejects the request or the request fails; the
	// caller decides how to degrade (typically by delivering text-only).
	Synthesize(ctx context.Context, text string, params Params) (*types.AudioClip, error)

	// Name returns the provider's registry name for logs and metrics.
	Name() string
}
