// Package autochat implements the autonomous conversation scheduler: a
// per-learner state machine that periodically decides whether to speak,
// selects content, sequences synthesis and playback, and schedules
// context-aware follow-ups.
//
// A Session is a single logical actor. Its state transitions happen under one
// mutex; provider calls and playback run outside the lock in a per-cycle
// goroutine, and cycles are strictly sequential — a new conversation never
// starts while one is awaiting playback. A generation counter makes results
// from cycles begun before the last Stop invisible.
package autochat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yxz1025/ai-helper/internal/catalog"
	"github.com/yxz1025/ai-helper/internal/observe"
	"github.com/yxz1025/ai-helper/internal/playback"
	"github.com/yxz1025/ai-helper/internal/profile"
	"github.com/yxz1025/ai-helper/internal/reply"
	"github.com/yxz1025/ai-helper/internal/voice"
	"github.com/yxz1025/ai-helper/pkg/provider/asr"
	"github.com/yxz1025/ai-helper/pkg/types"
)

// State is the scheduler lifecycle state.
type State string

const (
	// StateIdle means the session exists but autonomous conversation has
	// never been started (or has been stopped and reset to idle).
	StateIdle State = "idle"

	// StateActive means the interval loop is running and the session may
	// initiate a conversation on the next tick.
	StateActive State = "active"

	// StateAwaitingPlayback means a conversation has been emitted and the
	// session is waiting for its playback to resolve. No new conversation
	// starts in this state.
	StateAwaitingPlayback State = "awaiting_playback"

	// StateStopped means Stop was called. Timers are cancelled and late
	// provider results are discarded.
	StateStopped State = "stopped"
)

// minConversationSpacing is the minimum gap between two autonomous
// conversations. Cycles firing earlier are skipped silently.
const minConversationSpacing = 10 * time.Second

// turnBuffer is the capacity of the turn event channel. Emission never
// blocks a cycle; turns overflowing the buffer are dropped with a warning.
const turnBuffer = 16

// Config tunes the autonomous loop.
type Config struct {
	// Enabled gates the whole loop; Start on a disabled config is a no-op.
	Enabled bool

	// Interval between autonomous cycles. Defaults to 30 seconds.
	Interval time.Duration

	// MaxAttempts is the per-cycle playback retry budget. Defaults to 3.
	MaxAttempts int

	// RetryDelay is the wait before a playback retry. Defaults to 5 seconds.
	RetryDelay time.Duration
}

// withDefaults fills zero fields with the default tuning.
func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
	return c
}

// SurfaceGate reports whether the client surface can receive an autonomous
// turn right now (chat surface visible and the learner not recording).
type SurfaceGate func() bool

// Status is a point-in-time snapshot of a session for the status endpoint.
type Status struct {
	State           State  `json:"state"`
	CurrentTemplate string `json:"current_template,omitempty"`
	IntervalMS      int64  `json:"interval_ms"`
	RetriesLeft     int    `json:"retries_left"`
}

// Session drives autonomous conversation for one learner.
type Session struct {
	learnerID string
	store     profile.Store
	selector  *catalog.Selector
	generator *reply.Generator
	transport *voice.Transport
	player    *playback.Controller
	timer     Timer
	gate      SurfaceGate
	metrics   *observe.Metrics
	logger    *slog.Logger
	now       func() time.Time

	turns chan types.Turn

	mu               sync.Mutex
	state            State
	cfg              Config
	generation       uint64
	lastConversation time.Time
	current          *catalog.Template
	retriesLeft      int
	cancelTick       func()
	cancelFollowUp   func()
	cancelRetry      func()
	retryInFlight    bool
	pausedFromActive bool
}

// Params collects the dependencies for [NewSession].
type Params struct {
	LearnerID string
	Store     profile.Store
	Selector  *catalog.Selector
	Generator *reply.Generator
	Transport *voice.Transport
	Player    *playback.Controller

	// Timer defaults to the wall clock.
	Timer Timer

	// Gate defaults to always-open.
	Gate SurfaceGate

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// Now defaults to time.Now. Injected for testability.
	Now func() time.Time
}

// NewSession creates an idle session for one learner.
func NewSession(p Params) (*Session, error) {
	if p.LearnerID == "" {
		return nil, errors.New("autochat: learner id must not be empty")
	}
	if p.Store == nil || p.Selector == nil || p.Generator == nil || p.Transport == nil || p.Player == nil {
		return nil, errors.New("autochat: store, selector, generator, transport, and player are required")
	}
	s := &Session{
		learnerID: p.LearnerID,
		store:     p.Store,
		selector:  p.Selector,
		generator: p.Generator,
		transport: p.Transport,
		player:    p.Player,
		timer:     p.Timer,
		gate:      p.Gate,
		metrics:   p.Metrics,
		logger:    p.Logger,
		now:       p.Now,
		turns:     make(chan types.Turn, turnBuffer),
		state:     StateIdle,
	}
	if s.timer == nil {
		s.timer = NewTimer()
	}
	if s.gate == nil {
		s.gate = func() bool { return true }
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.logger = s.logger.With("learner", p.LearnerID)
	return s, nil
}

// Turns returns the channel on which the session emits delivered AI turns.
// The channel is never closed; consumers stop reading after Stop.
func (s *Session) Turns() <-chan types.Turn { return s.turns }

// GetStatus returns a snapshot of the session.
func (s *Session) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State:       s.state,
		IntervalMS:  s.cfg.Interval.Milliseconds(),
		RetriesLeft: s.retriesLeft,
	}
	if s.current != nil {
		st.CurrentTemplate = s.current.ID
	}
	return st
}

// ─── Lifecycle ───────────────────────────────────────────────────────────────

// Start begins the autonomous loop with the given config: an immediate first
// cycle, then one cycle per interval. Start is idempotent while the loop is
// running — a second call neither restarts the loop nor stacks timers.
func (s *Session) Start(ctx context.Context, cfg Config) {
	cfg = cfg.withDefaults()
	if !cfg.Enabled {
		s.logger.Debug("autonomous conversation disabled by config")
		return
	}

	s.mu.Lock()
	if s.state == StateActive || s.state == StateAwaitingPlayback {
		s.mu.Unlock()
		s.logger.Debug("autonomous conversation already running")
		return
	}
	s.state = StateActive
	s.cfg = cfg
	s.generation++
	gen := s.generation
	s.retriesLeft = cfg.MaxAttempts
	s.retryInFlight = false
	s.pausedFromActive = false
	s.mu.Unlock()

	s.logger.Info("autonomous conversation started",
		"interval", cfg.Interval,
		"max_attempts", cfg.MaxAttempts,
	)
	s.metrics.ActiveSessions.Add(ctx, 1)

	go s.runCycle(ctx, gen, types.SourceScheduled, nil)
	s.scheduleTick(ctx, gen)
}

// Stop halts the loop: pending tick, retry, and follow-up timers are
// cancelled, active playback is stopped, and any provider result from a cycle
// begun before this call is discarded. Safe to call repeatedly.
func (s *Session) Stop(ctx context.Context) {
	s.mu.Lock()
	// An idle session paused mid-run still stops: otherwise Resume would
	// revive a loop the caller explicitly shut down.
	paused := s.state == StateIdle && s.pausedFromActive
	if s.state == StateStopped || (s.state == StateIdle && !paused) {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	s.generation++
	s.current = nil
	s.pausedFromActive = false
	s.cancelTimersLocked()
	s.mu.Unlock()

	s.player.Stop()
	if !paused {
		// Pause already released the active-session gauge.
		s.metrics.ActiveSessions.Add(ctx, -1)
	}
	s.logger.Info("autonomous conversation stopped")
}

// Pause suspends the loop when the hosting app goes to the background. The
// running state is remembered so Resume can restore it.
func (s *Session) Pause(ctx context.Context) {
	s.mu.Lock()
	wasRunning := s.state == StateActive || s.state == StateAwaitingPlayback
	if !wasRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateIdle
	s.generation++
	s.current = nil
	s.pausedFromActive = true
	s.cancelTimersLocked()
	s.mu.Unlock()

	s.player.Stop()
	s.metrics.ActiveSessions.Add(ctx, -1)
	s.logger.Info("autonomous conversation paused")
}

// Resume restarts the loop after Pause when the app returns to the
// foreground. A session that was not paused mid-run stays idle.
func (s *Session) Resume(ctx context.Context) {
	s.mu.Lock()
	if !s.pausedFromActive || s.state != StateIdle {
		s.mu.Unlock()
		return
	}
	cfg := s.cfg
	s.mu.Unlock()

	s.logger.Info("autonomous conversation resumed")
	s.Start(ctx, cfg)
}

// UpdateConfig applies new tuning. A running loop is restarted so the new
// interval takes effect immediately.
func (s *Session) UpdateConfig(ctx context.Context, cfg Config) {
	s.mu.Lock()
	running := s.state == StateActive || s.state == StateAwaitingPlayback
	s.cfg = cfg.withDefaults()
	s.mu.Unlock()

	if running {
		s.Stop(ctx)
		s.Start(ctx, cfg)
	}
}

// cancelTimersLocked cancels every pending timer. Must be called with s.mu
// held.
func (s *Session) cancelTimersLocked() {
	if s.cancelTick != nil {
		s.cancelTick()
		s.cancelTick = nil
	}
	if s.cancelFollowUp != nil {
		s.cancelFollowUp()
		s.cancelFollowUp = nil
	}
	if s.cancelRetry != nil {
		s.cancelRetry()
		s.cancelRetry = nil
	}
	s.retryInFlight = false
}

// scheduleTick arms the next interval tick for the given generation.
func (s *Session) scheduleTick(ctx context.Context, gen uint64) {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	interval := s.cfg.Interval
	s.cancelTick = s.timer.AfterFunc(interval, func() {
		go s.runCycle(ctx, gen, types.SourceScheduled, nil)
		s.scheduleTick(ctx, gen)
	})
	s.mu.Unlock()
}

// ─── Autonomous cycle ────────────────────────────────────────────────────────

// runCycle performs one conversation attempt. For scheduled cycles the
// content comes from the selector; follow-up cycles carry their reply in
// followUp and reuse the current template for attribution.
func (s *Session) runCycle(ctx context.Context, gen uint64, source types.TurnSource, followUp *types.StructuredReply) {
	s.mu.Lock()
	if s.generation != gen || s.state != StateActive {
		s.mu.Unlock()
		return
	}
	isRetry := s.retryInFlight
	s.retryInFlight = false
	s.cancelRetry = nil
	if !s.gate() {
		s.mu.Unlock()
		s.metrics.RecordSkippedCycle(ctx, "surface")
		s.logger.Debug("cycle skipped: surface not ready")
		return
	}
	// Retries repeat a conversation that already claimed its slot, so the
	// spacing check does not apply to them.
	if !isRetry && !s.lastConversation.IsZero() && s.now().Sub(s.lastConversation) < minConversationSpacing {
		s.mu.Unlock()
		s.metrics.RecordSkippedCycle(ctx, "too_soon")
		s.logger.Debug("cycle skipped: previous conversation too recent")
		return
	}
	// A fresh scheduled cycle starts with a full retry budget.
	if source == types.SourceScheduled && !isRetry {
		s.retriesLeft = s.cfg.MaxAttempts
	}
	s.mu.Unlock()

	prof, err := s.store.LoadProfile(ctx, s.learnerID)
	if err != nil {
		s.metrics.RecordSkippedCycle(ctx, "profile")
		s.logger.Warn("cycle skipped: profile unavailable", "err", err)
		return
	}
	prof = prof.Clamp()

	var (
		content  types.StructuredReply
		template *catalog.Template
	)
	switch source {
	case types.SourceFollowup:
		if followUp == nil {
			return
		}
		content = *followUp
		s.mu.Lock()
		template = s.current
		s.mu.Unlock()
	default:
		template = s.selector.Select(catalog.Context{Profile: prof, Now: s.now()})
		if template == nil {
			s.metrics.RecordSkippedCycle(ctx, "no_template")
			s.logger.Debug("cycle skipped: no suitable template")
			return
		}
		content = template.Reply
	}

	synth := s.transport.SynthesizeFor(ctx, content.English, prof)

	s.mu.Lock()
	if s.generation != gen || s.state != StateActive {
		s.mu.Unlock()
		return
	}
	s.current = template
	// The conversation counts as initiated from this moment, regardless of
	// how playback resolves.
	s.lastConversation = s.now()
	if synth.Success {
		s.state = StateAwaitingPlayback
	}
	s.mu.Unlock()

	turn := types.Turn{
		ID:        uuid.NewString(),
		LearnerID: s.learnerID,
		Source:    source,
		Reply:     content,
		Timestamp: s.now(),
	}
	if synth.Success {
		turn.Audio = synth.Clip
	}
	templateID := ""
	if template != nil {
		templateID = template.ID
	}
	s.emit(ctx, turn, templateID)

	if !synth.Success {
		// Text-only delivery: no playback to await, no follow-up to pace
		// against it.
		s.recordEngagement(ctx)
		return
	}

	err = s.player.Play(ctx, synth.Clip)

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	if s.state == StateAwaitingPlayback {
		s.state = StateActive
	}
	s.mu.Unlock()

	switch {
	case err == nil:
		s.recordEngagement(ctx)
		if source == types.SourceScheduled {
			s.scheduleFollowUp(ctx, gen, template)
		}
	case errors.Is(err, playback.ErrStopped):
		// Stopped by Stop or by a newer conversation; nothing to do.
	default:
		s.retryAfterPlaybackError(ctx, gen, err)
	}
}

// retryAfterPlaybackError arms at most one pending retry; when the budget is
// exhausted the session simply waits for the next tick.
func (s *Session) retryAfterPlaybackError(ctx context.Context, gen uint64, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.state != StateActive {
		return
	}
	if s.retryInFlight {
		return
	}
	if s.retriesLeft <= 0 {
		s.logger.Warn("playback retries exhausted, waiting for next cycle", "err", cause)
		return
	}
	s.retriesLeft--
	s.retryInFlight = true
	delay := s.cfg.RetryDelay
	s.logger.Warn("playback failed, scheduling retry",
		"err", cause,
		"delay", delay,
		"retries_left", s.retriesLeft,
	)
	s.cancelRetry = s.timer.AfterFunc(delay, func() {
		go s.runCycle(ctx, gen, types.SourceScheduled, nil)
	})
}

// scheduleFollowUp arms the follow-up timer for a completed conversation.
// Follow-up turns never chain: only scheduled conversations arrive here.
func (s *Session) scheduleFollowUp(ctx context.Context, gen uint64, template *catalog.Template) {
	if template == nil || template.FollowUpDelay <= 0 {
		return
	}
	content := s.selector.FollowUp(template)
	if content == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return
	}
	if s.cancelFollowUp != nil {
		s.cancelFollowUp()
	}
	s.cancelFollowUp = s.timer.AfterFunc(template.FollowUpDelay, func() {
		go s.runCycle(ctx, gen, types.SourceFollowup, content)
	})
}

// ─── User-initiated turns ────────────────────────────────────────────────────

// HandleUserAudio runs a learner-initiated voice turn: recognise the
// utterance, generate a teaching reply, synthesise it, and play it. The
// returned turn always carries usable reply content — recognition or
// generation failure degrades to a fallback reply, and synthesis failure to a
// text-only turn — so the learner never faces silence.
func (s *Session) HandleUserAudio(ctx context.Context, audio []byte, cfg asr.AudioConfig) (types.Turn, error) {
	prof, err := s.store.LoadProfile(ctx, s.learnerID)
	if err != nil {
		return types.Turn{}, err
	}
	prof = prof.Clamp()

	var result reply.Result
	rec := s.transport.Recognize(ctx, audio, cfg)
	if rec.Success {
		history, err := s.store.RecentTurns(ctx, s.learnerID, 5)
		if err != nil {
			s.logger.Warn("history unavailable, generating without context", "err", err)
		}
		result = s.generator.Generate(ctx, rec.Text, prof, history)
	} else {
		result = s.generator.Fallback(ctx, rec.Err)
	}

	synth := s.transport.SynthesizeFor(ctx, result.Content.English, prof)

	turn := types.Turn{
		ID:        uuid.NewString(),
		LearnerID: s.learnerID,
		Source:    types.SourceUser,
		Reply:     result.Content,
		Heard:     rec.Text,
		Timestamp: s.now(),
	}
	if synth.Success {
		turn.Audio = synth.Clip
	}

	// A user exchange also counts as recent conversation, so the autonomous
	// loop does not speak over it.
	s.mu.Lock()
	s.lastConversation = s.now()
	s.mu.Unlock()

	s.emit(ctx, turn, "")

	if err := s.store.RecordPractice(ctx, s.learnerID, s.now()); err != nil {
		s.logger.Warn("failed to record practice", "err", err)
	}

	if synth.Success {
		if err := s.player.Play(ctx, synth.Clip); err != nil && !errors.Is(err, playback.ErrStopped) {
			s.logger.Warn("user turn playback failed", "err", err)
		}
	}

	return turn, nil
}

// ─── Shared helpers ──────────────────────────────────────────────────────────

// emit delivers the turn to subscribers and persists it as history.
func (s *Session) emit(ctx context.Context, turn types.Turn, templateID string) {
	select {
	case s.turns <- turn:
	default:
		s.logger.Warn("turn channel full, dropping turn", "turn", turn.ID)
	}
	s.metrics.RecordTurn(ctx, string(turn.Source), templateID)

	if err := s.store.AppendTurn(ctx, turn); err != nil {
		s.logger.Warn("failed to persist turn", "turn", turn.ID, "err", err)
	}
}

// recordEngagement bumps the learner's auto-chat engagement counters.
func (s *Session) recordEngagement(ctx context.Context) {
	if err := s.store.RecordEngagement(ctx, s.learnerID, s.now()); err != nil {
		s.logger.Warn("failed to record engagement", "err", err)
	}
}
