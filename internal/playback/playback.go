// Package playback owns audio playback for a learner session. A Controller
// guarantees at most one active playback: starting a new clip stops the
// previous one, and every started playback resolves with exactly one
// completion or error signal.
package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/yxz1025/ai-helper/internal/observe"
	"github.com/yxz1025/ai-helper/pkg/types"
)

// ErrEmptyClip is returned by Play for clips with no audio data. The device
// is never touched in this case.
var ErrEmptyClip = errors.New("playback: empty clip")

// ErrStopped is returned by Play when the playback was stopped before it
// completed, either by Stop or by a newer Play call.
var ErrStopped = errors.New("playback: stopped")

// Device renders one clip to the learner. Play must block until the clip has
// resolved: a nil error on natural completion, a non-nil error on device
// failure, and ctx.Err() promptly when ctx is cancelled.
type Device interface {
	Play(ctx context.Context, clip *types.AudioClip) error
}

// Controller serialises playback onto a Device. Safe for concurrent use.
type Controller struct {
	device  Device
	metrics *observe.Metrics
	logger  *slog.Logger

	mu     sync.Mutex
	active *playHandle
}

// playHandle identifies one Play invocation so a finishing playback never
// cancels a newer one that superseded it.
type playHandle struct {
	cancel context.CancelFunc
}

// Option is a functional option for [NewController].
type Option func(*Controller)

// WithMetrics overrides the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithLogger overrides the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// NewController creates a controller over the given device.
func NewController(device Device, opts ...Option) (*Controller, error) {
	if device == nil {
		return nil, errors.New("playback: device must not be nil")
	}
	c := &Controller{device: device}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// Play renders clip on the device and blocks until it completes or fails.
// Any playback already in progress is stopped first. Returns nil on natural
// completion, [ErrEmptyClip] without touching the device for empty clips,
// [ErrStopped] when cancelled by Stop or a newer Play, and the device error
// otherwise.
func (c *Controller) Play(ctx context.Context, clip *types.AudioClip) error {
	if clip == nil || clip.Empty() {
		return ErrEmptyClip
	}

	playCtx, cancel := context.WithCancel(ctx)
	h := &playHandle{cancel: cancel}

	c.mu.Lock()
	if c.active != nil {
		c.active.cancel()
	}
	c.active = h
	c.mu.Unlock()

	start := time.Now()
	err := c.device.Play(playCtx, clip)
	c.metrics.PlaybackDuration.Record(ctx, time.Since(start).Seconds())

	c.mu.Lock()
	if c.active == h {
		c.active = nil
	}
	c.mu.Unlock()
	cancel()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return ErrStopped
		}
		c.logger.Warn("playback failed", "err", err)
		return err
	}
	return nil
}

// Stop halts the active playback, if any. The interrupted Play call returns
// [ErrStopped]. Safe to call when nothing is playing.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		c.active.cancel()
		c.active = nil
	}
}
