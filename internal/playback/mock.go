package playback

import (
	"context"
	"sync"

	"github.com/yxz1025/ai-helper/pkg/types"
)

// PlayCall records a single invocation of MockDevice.Play.
type PlayCall struct {
	// Clip is the clip passed to Play.
	Clip *types.AudioClip
}

// MockDevice is a test double for [Device]. With no fields set, Play returns
// nil immediately. Set Block to make Play wait for a release signal so tests
// can observe in-flight playback.
type MockDevice struct {
	mu sync.Mutex

	// Err, if non-nil, is returned by Play after any blocking.
	Err error

	// Block, when non-nil, makes Play wait until the channel is closed or a
	// value is received, or the context is cancelled.
	Block chan struct{}

	// PlayCalls records every invocation of Play in order.
	PlayCalls []PlayCall
}

// Play records the call, optionally blocks, and returns Err or ctx.Err().
func (d *MockDevice) Play(ctx context.Context, clip *types.AudioClip) error {
	d.mu.Lock()
	d.PlayCalls = append(d.PlayCalls, PlayCall{Clip: clip})
	block := d.Block
	err := d.Err
	d.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// CallCount returns the number of recorded Play calls. Thread-safe, for
// polling from another goroutine.
func (d *MockDevice) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.PlayCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (d *MockDevice) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.PlayCalls = nil
}

var _ Device = (*MockDevice)(nil)
