package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// DDL — learner profiles
// ─────────────────────────────────────────────────────────────────────────────

const ddlLearnerProfiles = `
CREATE TABLE IF NOT EXISTS learner_profiles (
    id              TEXT         PRIMARY KEY,
    age             INT          NOT NULL,
    difficulty      TEXT         NOT NULL DEFAULT 'easy',
    personality     TEXT         NOT NULL DEFAULT 'friendly',
    today_practice  INT          NOT NULL DEFAULT 0,
    total_score     INT          NOT NULL DEFAULT 0,
    auto_chat_count INT          NOT NULL DEFAULT 0,
    last_active     TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// ─────────────────────────────────────────────────────────────────────────────
// DDL — conversation history
// ─────────────────────────────────────────────────────────────────────────────

const ddlConversationHistory = `
CREATE TABLE IF NOT EXISTS conversation_history (
    id           BIGSERIAL    PRIMARY KEY,
    learner_id   TEXT         NOT NULL,
    from_learner BOOLEAN      NOT NULL,
    text         TEXT         NOT NULL,
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_conversation_history_learner
    ON conversation_history (learner_id, created_at);
`

// Migrate ensures all required tables and indexes exist. It is idempotent and
// runs automatically from [NewStore].
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range []string{ddlLearnerProfiles, ddlConversationHistory} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
