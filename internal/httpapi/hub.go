package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/yxz1025/ai-helper/internal/autochat"
	"github.com/yxz1025/ai-helper/internal/catalog"
	"github.com/yxz1025/ai-helper/internal/observe"
	"github.com/yxz1025/ai-helper/internal/playback"
	"github.com/yxz1025/ai-helper/internal/profile"
	"github.com/yxz1025/ai-helper/internal/reply"
	"github.com/yxz1025/ai-helper/internal/voice"
	"github.com/yxz1025/ai-helper/pkg/types"
)

// defaultProfile is the profile created for a learner on first contact,
// before the client has submitted one.
var defaultProfile = types.LearnerProfile{
	Age:         6,
	Difficulty:  types.DifficultyEasy,
	Personality: types.PersonalityFriendly,
}

// HubDeps collects the shared dependencies every learner session is built
// from.
type HubDeps struct {
	Store     profile.Store
	Selector  *catalog.Selector
	Generator *reply.Generator
	Transport *voice.Transport

	// AutoChat is the tuning applied when a session starts its loop.
	AutoChat autochat.Config

	// Timer defaults to the wall clock. Injected in tests.
	Timer autochat.Timer

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// learnerSession bundles one learner's scheduler with their client surface.
type learnerSession struct {
	session *autochat.Session
	surface *Surface
	pumpCtx context.CancelFunc
}

// Hub owns the per-learner conversation sessions. Sessions are created
// lazily on first contact and live until Close. Safe for concurrent use.
type Hub struct {
	deps HubDeps

	mu       sync.Mutex
	sessions map[string]*learnerSession
	closed   bool
}

// NewHub creates an empty hub.
func NewHub(deps HubDeps) (*Hub, error) {
	if deps.Store == nil || deps.Selector == nil || deps.Generator == nil || deps.Transport == nil {
		return nil, errors.New("httpapi: store, selector, generator, and transport are required")
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.DefaultMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Hub{
		deps:     deps,
		sessions: make(map[string]*learnerSession),
	}, nil
}

// Session returns the learner's conversation session, creating it (and a
// default profile for a first-time learner) when necessary.
func (h *Hub) Session(ctx context.Context, learnerID string) (*autochat.Session, error) {
	ls, err := h.learner(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	return ls.session, nil
}

// SurfaceFor returns the learner's client surface, creating the session when
// necessary.
func (h *Hub) SurfaceFor(ctx context.Context, learnerID string) (*Surface, error) {
	ls, err := h.learner(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	return ls.surface, nil
}

// AutoChatConfig returns the tuning new session loops start with.
func (h *Hub) AutoChatConfig() autochat.Config {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.deps.AutoChat
}

// SetAutoChatConfig applies new tuning to all existing sessions and to
// sessions created later. Used by config hot-reload.
func (h *Hub) SetAutoChatConfig(ctx context.Context, cfg autochat.Config) {
	h.mu.Lock()
	h.deps.AutoChat = cfg
	sessions := make([]*learnerSession, 0, len(h.sessions))
	for _, ls := range h.sessions {
		sessions = append(sessions, ls)
	}
	h.mu.Unlock()

	for _, ls := range sessions {
		ls.session.UpdateConfig(ctx, cfg)
	}
}

func (h *Hub) learner(ctx context.Context, learnerID string) (*learnerSession, error) {
	if learnerID == "" {
		return nil, errors.New("httpapi: learner id must not be empty")
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, errors.New("httpapi: hub is closed")
	}
	if ls, ok := h.sessions[learnerID]; ok {
		h.mu.Unlock()
		return ls, nil
	}
	h.mu.Unlock()

	if err := h.ensureProfile(ctx, learnerID); err != nil {
		return nil, err
	}

	surface := NewSurface(h.deps.Logger.With("learner", learnerID))
	player, err := playback.NewController(surface,
		playback.WithMetrics(h.deps.Metrics),
		playback.WithLogger(h.deps.Logger),
	)
	if err != nil {
		return nil, fmt.Errorf("httpapi: create playback controller: %w", err)
	}

	session, err := autochat.NewSession(autochat.Params{
		LearnerID: learnerID,
		Store:     h.deps.Store,
		Selector:  h.deps.Selector,
		Generator: h.deps.Generator,
		Transport: h.deps.Transport,
		Player:    player,
		Timer:     h.deps.Timer,
		Gate:      surface.Ready,
		Metrics:   h.deps.Metrics,
		Logger:    h.deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("httpapi: create session: %w", err)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	ls := &learnerSession{session: session, surface: surface, pumpCtx: cancel}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		cancel()
		return nil, errors.New("httpapi: hub is closed")
	}
	// Another request may have created the session concurrently; keep the
	// first one.
	if existing, ok := h.sessions[learnerID]; ok {
		h.mu.Unlock()
		cancel()
		return existing, nil
	}
	h.sessions[learnerID] = ls
	h.mu.Unlock()

	go pumpTurns(pumpCtx, session, surface)
	return ls, nil
}

// ensureProfile creates a default profile for a first-time learner.
func (h *Hub) ensureProfile(ctx context.Context, learnerID string) error {
	_, err := h.deps.Store.LoadProfile(ctx, learnerID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, profile.ErrNotFound) {
		return fmt.Errorf("httpapi: load profile: %w", err)
	}

	p := defaultProfile
	p.ID = learnerID
	if err := h.deps.Store.SaveProfile(ctx, p); err != nil {
		return fmt.Errorf("httpapi: create default profile: %w", err)
	}
	h.deps.Logger.Info("created default profile", "learner", learnerID)
	return nil
}

// pumpTurns forwards emitted turns from the session to the client surface.
func pumpTurns(ctx context.Context, s *autochat.Session, surface *Surface) {
	for {
		select {
		case <-ctx.Done():
			return
		case turn := <-s.Turns():
			surface.PushTurn(turn)
		}
	}
}

// Close stops every session and releases the hub. Subsequent calls to
// Session fail.
func (h *Hub) Close(ctx context.Context) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	sessions := make([]*learnerSession, 0, len(h.sessions))
	for _, ls := range h.sessions {
		sessions = append(sessions, ls)
	}
	h.mu.Unlock()

	for _, ls := range sessions {
		ls.session.Stop(ctx)
		ls.surface.Close()
		ls.pumpCtx()
	}
}
