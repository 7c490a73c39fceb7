package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/yxz1025/ai-helper/internal/profile"
	"github.com/yxz1025/ai-helper/internal/profile/memory"
	"github.com/yxz1025/ai-helper/pkg/types"
)

// testDay pins the store clock so day-rollover logic sees a fixed "today".
var testDay = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func seeded(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.NewStore(memory.WithNow(func() time.Time { return testDay }))
	err := s.SaveProfile(t.Context(), types.LearnerProfile{
		ID:          "learner-1",
		Age:         6,
		Difficulty:  types.DifficultyEasy,
		Personality: types.PersonalityFriendly,
	})
	if err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	return s
}

func TestLoadProfileNotFound(t *testing.T) {
	s := memory.NewStore()
	if _, err := s.LoadProfile(t.Context(), "nobody"); !errors.Is(err, profile.ErrNotFound) {
		t.Errorf("LoadProfile = %v, want ErrNotFound", err)
	}
}

func TestSaveProfileClamps(t *testing.T) {
	s := memory.NewStore()
	err := s.SaveProfile(t.Context(), types.LearnerProfile{
		ID:          "learner-1",
		Age:         99,
		Difficulty:  types.Difficulty("impossible"),
		Personality: types.Personality("grumpy"),
	})
	if err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}

	p, err := s.LoadProfile(t.Context(), "learner-1")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if p.Age != types.MaxAge {
		t.Errorf("Age = %d, want %d", p.Age, types.MaxAge)
	}
	if p.Difficulty != types.DifficultyEasy || p.Personality != types.PersonalityFriendly {
		t.Errorf("enums not normalised: %+v", p)
	}
}

func TestRecordPractice(t *testing.T) {
	s := seeded(t)
	at := testDay

	if err := s.RecordPractice(t.Context(), "learner-1", at); err != nil {
		t.Fatalf("RecordPractice: %v", err)
	}

	p, _ := s.LoadProfile(t.Context(), "learner-1")
	if p.TodayPractice != 1 {
		t.Errorf("TodayPractice = %d, want 1", p.TodayPractice)
	}
	if !p.LastActive.Equal(at) {
		t.Errorf("LastActive = %v, want %v", p.LastActive, at)
	}

	if err := s.RecordPractice(t.Context(), "nobody", at); !errors.Is(err, profile.ErrNotFound) {
		t.Errorf("RecordPractice(unknown) = %v, want ErrNotFound", err)
	}
}

func TestRecordEngagement(t *testing.T) {
	s := seeded(t)
	at := testDay

	if err := s.RecordEngagement(t.Context(), "learner-1", at); err != nil {
		t.Fatalf("RecordEngagement: %v", err)
	}

	p, _ := s.LoadProfile(t.Context(), "learner-1")
	if !p.LastActive.Equal(at) {
		t.Errorf("LastActive = %v, want %v", p.LastActive, at)
	}
	if p.TodayPractice != 0 {
		t.Errorf("TodayPractice = %d, engagement must not count as practice", p.TodayPractice)
	}
}

func TestPracticeCounterResetsOnNewDay(t *testing.T) {
	day1 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	now := day1
	s := memory.NewStore(memory.WithNow(func() time.Time { return now }))
	err := s.SaveProfile(t.Context(), types.LearnerProfile{ID: "learner-1", Age: 6})
	if err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}

	for range 3 {
		if err := s.RecordPractice(t.Context(), "learner-1", day1); err != nil {
			t.Fatalf("RecordPractice: %v", err)
		}
	}
	p, _ := s.LoadProfile(t.Context(), "learner-1")
	if p.TodayPractice != 3 {
		t.Fatalf("TodayPractice = %d, want 3", p.TodayPractice)
	}

	// Next morning the counter reads zero before any practice…
	now = day2
	p, _ = s.LoadProfile(t.Context(), "learner-1")
	if p.TodayPractice != 0 {
		t.Errorf("TodayPractice after rollover = %d, want 0", p.TodayPractice)
	}

	// …and the first practice of the day restarts it at one.
	if err := s.RecordPractice(t.Context(), "learner-1", day2); err != nil {
		t.Fatalf("RecordPractice: %v", err)
	}
	p, _ = s.LoadProfile(t.Context(), "learner-1")
	if p.TodayPractice != 1 {
		t.Errorf("TodayPractice = %d, want 1", p.TodayPractice)
	}
	if !p.LastActive.Equal(day2) {
		t.Errorf("LastActive = %v, want %v", p.LastActive, day2)
	}
}

func TestTurnHistory(t *testing.T) {
	s := seeded(t)

	turns := []types.Turn{
		{LearnerID: "learner-1", Source: types.SourceScheduled, Reply: types.StructuredReply{English: "Hello there!"}},
		{LearnerID: "learner-1", Source: types.SourceUser, Heard: "Hello!", Reply: types.StructuredReply{English: "Hi! How are you?"}},
		{LearnerID: "learner-1", Source: types.SourceUser, Heard: "I'm fine!", Reply: types.StructuredReply{English: "Wonderful!"}},
	}
	for _, turn := range turns {
		if err := s.AppendTurn(t.Context(), turn); err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}

	// Five stored lines: one AI-only turn plus two heard/reply pairs.
	got, err := s.RecentTurns(t.Context(), "learner-1", 10)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("RecentTurns returned %d entries, want 5", len(got))
	}
	if got[0].FromLearner || got[0].Text != "Hello there!" {
		t.Errorf("entry 0 = %+v", got[0])
	}
	if !got[1].FromLearner || got[1].Text != "Hello!" {
		t.Errorf("entry 1 = %+v", got[1])
	}

	// A smaller window keeps the most recent lines, oldest first.
	got, err = s.RecentTurns(t.Context(), "learner-1", 2)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("RecentTurns returned %d entries, want 2", len(got))
	}
	if !got[0].FromLearner || got[0].Text != "I'm fine!" {
		t.Errorf("entry 0 = %+v", got[0])
	}
	if got[1].FromLearner || got[1].Text != "Wonderful!" {
		t.Errorf("entry 1 = %+v", got[1])
	}
}

func TestRecentTurnsEmpty(t *testing.T) {
	s := memory.NewStore()
	got, err := s.RecentTurns(t.Context(), "nobody", 5)
	if err != nil || got != nil {
		t.Errorf("RecentTurns = %v, %v; want nil, nil", got, err)
	}
}
