// Package memory provides an in-memory [profile.Store] for tests and for
// running the server without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/yxz1025/ai-helper/internal/profile"
	"github.com/yxz1025/ai-helper/internal/reply"
	"github.com/yxz1025/ai-helper/pkg/types"
)

// Compile-time interface check.
var _ profile.Store = (*Store)(nil)

// historyEntry is one stored conversation line.
type historyEntry struct {
	fromLearner bool
	text        string
}

// Store is an in-memory learner store. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]types.LearnerProfile
	history  map[string][]historyEntry
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithNow overrides the clock that decides when a new practice day starts.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		profiles: make(map[string]types.LearnerProfile),
		history:  make(map[string][]historyEntry),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// staleDay reports whether last falls on an earlier day than now, meaning the
// daily practice counter belongs to a previous day. A zero last means the
// learner was never active, which is not stale.
func staleDay(last, now time.Time) bool {
	if last.IsZero() {
		return false
	}
	return last.Year() < now.Year() ||
		(last.Year() == now.Year() && last.YearDay() < now.YearDay())
}

// LoadProfile implements profile.Store. A counter last touched on a previous
// day reads as zero.
func (s *Store) LoadProfile(_ context.Context, learnerID string) (types.LearnerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[learnerID]
	if !ok {
		return types.LearnerProfile{}, profile.ErrNotFound
	}
	if staleDay(p.LastActive, s.now()) {
		p.TodayPractice = 0
	}
	return p, nil
}

// SaveProfile implements profile.Store.
func (s *Store) SaveProfile(_ context.Context, p types.LearnerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p.Clamp()
	return nil
}

// RecordEngagement implements profile.Store.
func (s *Store) RecordEngagement(_ context.Context, learnerID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[learnerID]
	if !ok {
		return profile.ErrNotFound
	}
	p.LastActive = at
	s.profiles[learnerID] = p
	return nil
}

// RecordPractice implements profile.Store. The first practice of a new day
// restarts the counter at one.
func (s *Store) RecordPractice(_ context.Context, learnerID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[learnerID]
	if !ok {
		return profile.ErrNotFound
	}
	if staleDay(p.LastActive, at) {
		p.TodayPractice = 1
	} else {
		p.TodayPractice++
	}
	p.LastActive = at
	s.profiles[learnerID] = p
	return nil
}

// AppendTurn implements profile.Store.
func (s *Store) AppendTurn(_ context.Context, t types.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Heard != "" {
		s.history[t.LearnerID] = append(s.history[t.LearnerID], historyEntry{fromLearner: true, text: t.Heard})
	}
	s.history[t.LearnerID] = append(s.history[t.LearnerID], historyEntry{fromLearner: false, text: t.Reply.English})
	return nil
}

// RecentTurns implements profile.Store.
func (s *Store) RecentTurns(_ context.Context, learnerID string, n int) ([]reply.HistoryTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.history[learnerID]
	if n <= 0 || len(entries) == 0 {
		return nil, nil
	}
	start := 0
	if len(entries) > n {
		start = len(entries) - n
	}
	out := make([]reply.HistoryTurn, 0, len(entries)-start)
	for _, e := range entries[start:] {
		out = append(out, reply.HistoryTurn{FromLearner: e.fromLearner, Text: e.text})
	}
	return out, nil
}
