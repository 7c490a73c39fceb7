// Package postgres provides the PostgreSQL-backed [profile.Store].
//
// All operations share a single [pgxpool.Pool]. [NewStore] runs the schema
// migration so required tables exist before the first query.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	p, err := store.LoadProfile(ctx, learnerID)
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yxz1025/ai-helper/internal/profile"
	"github.com/yxz1025/ai-helper/internal/reply"
	"github.com/yxz1025/ai-helper/pkg/types"
)

// Compile-time interface check.
var _ profile.Store = (*Store)(nil)

// Store is the PostgreSQL-backed learner store. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store, establishes a connection pool to the PostgreSQL
// database at dsn, and runs [Migrate] so all required tables exist.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("profile store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("profile store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("profile store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("profile store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies database connectivity. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// LoadProfile implements profile.Store. A practice counter last touched on a
// previous day reads as zero; the epoch guard keeps never-active learners
// (zero last_active) at their stored value.
func (s *Store) LoadProfile(ctx context.Context, learnerID string) (types.LearnerProfile, error) {
	const q = `
SELECT id, age, difficulty, personality,
	CASE WHEN last_active::date > DATE '0001-01-01' AND last_active::date < CURRENT_DATE
		THEN 0 ELSE today_practice END,
	total_score, last_active
FROM learner_profiles
WHERE id = $1`

	var p types.LearnerProfile
	var difficulty, personality string
	err := s.pool.QueryRow(ctx, q, learnerID).Scan(
		&p.ID, &p.Age, &difficulty, &personality,
		&p.TodayPractice, &p.TotalScore, &p.LastActive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.LearnerProfile{}, profile.ErrNotFound
	}
	if err != nil {
		return types.LearnerProfile{}, fmt.Errorf("profile store: load %q: %w", learnerID, err)
	}

	p.Difficulty = types.Difficulty(difficulty)
	p.Personality = types.Personality(personality)
	return p.Clamp(), nil
}

// SaveProfile implements profile.Store.
func (s *Store) SaveProfile(ctx context.Context, p types.LearnerProfile) error {
	if p.ID == "" {
		return fmt.Errorf("profile store: profile id must not be empty")
	}
	p = p.Clamp()

	const q = `
INSERT INTO learner_profiles (id, age, difficulty, personality, today_practice, total_score, last_active)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
	age            = EXCLUDED.age,
	difficulty     = EXCLUDED.difficulty,
	personality    = EXCLUDED.personality,
	today_practice = EXCLUDED.today_practice,
	total_score    = EXCLUDED.total_score,
	last_active    = EXCLUDED.last_active`

	_, err := s.pool.Exec(ctx, q,
		p.ID, p.Age, string(p.Difficulty), string(p.Personality),
		p.TodayPractice, p.TotalScore, p.LastActive,
	)
	if err != nil {
		return fmt.Errorf("profile store: save %q: %w", p.ID, err)
	}
	return nil
}

// RecordEngagement implements profile.Store.
func (s *Store) RecordEngagement(ctx context.Context, learnerID string, at time.Time) error {
	const q = `
UPDATE learner_profiles
SET auto_chat_count = auto_chat_count + 1, last_active = $2
WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, learnerID, at)
	if err != nil {
		return fmt.Errorf("profile store: record engagement %q: %w", learnerID, err)
	}
	if tag.RowsAffected() == 0 {
		return profile.ErrNotFound
	}
	return nil
}

// RecordPractice implements profile.Store. The first practice of a new day
// restarts the counter at one.
func (s *Store) RecordPractice(ctx context.Context, learnerID string, at time.Time) error {
	const q = `
UPDATE learner_profiles
SET today_practice = CASE
		WHEN last_active::date > DATE '0001-01-01' AND last_active::date < $2::date
			THEN 1 ELSE today_practice + 1 END,
	last_active = $2
WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, learnerID, at)
	if err != nil {
		return fmt.Errorf("profile store: record practice %q: %w", learnerID, err)
	}
	if tag.RowsAffected() == 0 {
		return profile.ErrNotFound
	}
	return nil
}

// AppendTurn implements profile.Store. User-initiated turns write two rows,
// the heard utterance first so history ordering matches the conversation.
func (s *Store) AppendTurn(ctx context.Context, t types.Turn) error {
	const q = `
INSERT INTO conversation_history (learner_id, from_learner, text, created_at)
VALUES ($1, $2, $3, $4)`

	batch := &pgx.Batch{}
	if t.Heard != "" {
		batch.Queue(q, t.LearnerID, true, t.Heard, t.Timestamp)
	}
	batch.Queue(q, t.LearnerID, false, t.Reply.English, t.Timestamp)

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("profile store: append turn %q: %w", t.ID, err)
	}
	return nil
}

// RecentTurns implements profile.Store.
func (s *Store) RecentTurns(ctx context.Context, learnerID string, n int) ([]reply.HistoryTurn, error) {
	if n <= 0 {
		return nil, nil
	}

	const q = `
SELECT from_learner, text
FROM conversation_history
WHERE learner_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`

	rows, err := s.pool.Query(ctx, q, learnerID, n)
	if err != nil {
		return nil, fmt.Errorf("profile store: recent turns %q: %w", learnerID, err)
	}
	defer rows.Close()

	var turns []reply.HistoryTurn
	for rows.Next() {
		var h reply.HistoryTurn
		if err := rows.Scan(&h.FromLearner, &h.Text); err != nil {
			return nil, fmt.Errorf("profile store: scan turn: %w", err)
		}
		turns = append(turns, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("profile store: recent turns %q: %w", learnerID, err)
	}

	// Query returns newest first; callers want oldest first.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
