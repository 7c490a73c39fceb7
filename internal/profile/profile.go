// Package profile defines the persistence boundary for learner profiles,
// engagement tracking, and conversation history. The conversation engine
// depends only on the [Store] interface; PostgreSQL and in-memory
// implementations live in the subpackages.
package profile

import (
	"context"
	"errors"
	"time"

	"github.com/yxz1025/ai-helper/internal/reply"
	"github.com/yxz1025/ai-helper/pkg/types"
)

// ErrNotFound is returned by LoadProfile when no profile exists for the
// learner.
var ErrNotFound = errors.New("profile: not found")

// Store is the persistence interface for learner state. Implementations must
// be safe for concurrent use.
type Store interface {
	// LoadProfile returns the learner's profile, or [ErrNotFound].
	LoadProfile(ctx context.Context, learnerID string) (types.LearnerProfile, error)

	// SaveProfile creates or replaces the learner's profile.
	SaveProfile(ctx context.Context, p types.LearnerProfile) error

	// RecordEngagement notes that the learner received an autonomous
	// conversation at the given time: it bumps the auto-chat counter and the
	// last-active timestamp.
	RecordEngagement(ctx context.Context, learnerID string, at time.Time) error

	// RecordPractice increments the learner's practice counter for today and
	// updates the last-active timestamp.
	RecordPractice(ctx context.Context, learnerID string, at time.Time) error

	// AppendTurn persists a delivered turn as conversation history. For
	// user-initiated turns both the heard utterance and the AI reply are
	// recorded.
	AppendTurn(ctx context.Context, t types.Turn) error

	// RecentTurns returns up to n most recent history entries for the
	// learner, oldest first, shaped for prompt embedding.
	RecentTurns(ctx context.Context, learnerID string, n int) ([]reply.HistoryTurn, error)
}
