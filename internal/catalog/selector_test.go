package catalog_test

import (
	"testing"
	"time"
	"unicode/utf8"

	"github.com/yxz1025/ai-helper/internal/catalog"
	"github.com/yxz1025/ai-helper/pkg/types"
)

func first(n int) int { return 0 }

func at(hour int) time.Time {
	return time.Date(2025, 3, 10, hour, 0, 0, 0, time.UTC)
}

func profile(age int) types.LearnerProfile {
	return types.LearnerProfile{
		ID:            "learner-1",
		Age:           age,
		Difficulty:    types.DifficultyEasy,
		Personality:   types.PersonalityFriendly,
		TodayPractice: 3,
	}
}

func TestSelectPrefersTimeOfDay(t *testing.T) {
	tests := []struct {
		name string
		hour int
		want []string
	}{
		{"morning", 9, []string{catalog.Greeting, catalog.Encouragement, catalog.Vocabulary}},
		{"afternoon", 14, []string{catalog.GameInvitation, catalog.StoryTime, catalog.Vocabulary}},
		{"evening", 20, []string{catalog.StoryTime, catalog.ProgressCelebration, catalog.Greeting}},
		{"late night", 2, []string{catalog.StoryTime, catalog.ProgressCelebration, catalog.Greeting}},
	}

	c := catalog.New()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Walk the whole pool: every pick must come from the
			// time-of-day set.
			for i := range tc.want {
				i := i
				s := catalog.NewSelector(c, catalog.WithRandInt(func(n int) int { return i % n }))
				got := s.Select(catalog.Context{Profile: profile(6), Now: at(tc.hour)})
				if got == nil {
					t.Fatal("Select returned nil")
				}
				if !contains(tc.want, got.ID) {
					t.Errorf("Select at %02d:00 = %q, want one of %v", tc.hour, got.ID, tc.want)
				}
			}
		})
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func TestSelectEncouragesIdleLearner(t *testing.T) {
	s := catalog.NewSelector(catalog.New(), catalog.WithRandInt(first))

	p := profile(6)
	p.TodayPractice = 0

	got := s.Select(catalog.Context{Profile: p, Now: at(14)})
	if got == nil {
		t.Fatal("Select returned nil")
	}
	if got.ID != catalog.Encouragement {
		t.Errorf("Select = %q, want %q", got.ID, catalog.Encouragement)
	}
}

func TestSelectRespectsAgeBracket(t *testing.T) {
	c := catalog.New()
	s := catalog.NewSelector(c, catalog.WithRandInt(first))

	// Every template a young learner can be offered must have a short
	// sentence.
	for i := 0; i < len(c.Templates()); i++ {
		i := i
		s := catalog.NewSelector(c, catalog.WithRandInt(func(n int) int { return i % n }))
		got := s.Select(catalog.Context{Profile: profile(5), Now: at(9)})
		if got == nil {
			t.Fatal("Select returned nil")
		}
		if n := utf8.RuneCountInString(got.Reply.English); n >= 100 {
			t.Errorf("young learner offered %q with sentence length %d", got.ID, n)
		}
	}

	// An older learner never hears the short greeting opener.
	got := s.Select(catalog.Context{Profile: profile(9), Now: at(9)})
	if got == nil {
		t.Fatal("Select returned nil")
	}
	if n := utf8.RuneCountInString(got.Reply.English); n < 50 {
		t.Errorf("older learner offered %q with sentence length %d", got.ID, n)
	}
}

func TestSelectClampsProfile(t *testing.T) {
	s := catalog.NewSelector(catalog.New(), catalog.WithRandInt(first))

	// Age 99 clamps to 10, which selects from the older bracket.
	got := s.Select(catalog.Context{Profile: profile(99), Now: at(9)})
	if got == nil {
		t.Fatal("Select returned nil")
	}
	if n := utf8.RuneCountInString(got.Reply.English); n < 50 {
		t.Errorf("clamped learner offered %q with sentence length %d", got.ID, n)
	}
}

func TestFollowUp(t *testing.T) {
	c := catalog.New()
	s := catalog.NewSelector(c, catalog.WithRandInt(first))

	greeting := c.ByID(catalog.Greeting)
	fu := s.FollowUp(greeting)
	if fu == nil {
		t.Fatal("FollowUp(greeting) = nil")
	}
	if fu.English != greeting.FollowUps[0].English {
		t.Errorf("FollowUp = %q, want %q", fu.English, greeting.FollowUps[0].English)
	}

	// Story time has a delay but no prepared follow-up content.
	if fu := s.FollowUp(c.ByID(catalog.StoryTime)); fu != nil {
		t.Errorf("FollowUp(story_time) = %+v, want nil", fu)
	}
	if fu := s.FollowUp(nil); fu != nil {
		t.Errorf("FollowUp(nil) = %+v, want nil", fu)
	}
}

func TestCatalogByID(t *testing.T) {
	c := catalog.New()
	if got := c.ByID(catalog.Vocabulary); got == nil || got.ID != catalog.Vocabulary {
		t.Errorf("ByID(vocabulary) = %+v", got)
	}
	if got := c.ByID("nope"); got != nil {
		t.Errorf("ByID(nope) = %+v, want nil", got)
	}
}
