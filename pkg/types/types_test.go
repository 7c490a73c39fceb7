package types_test

import (
	"testing"

	"github.com/yxz1025/ai-helper/pkg/types"
)

func TestBracketForAge(t *testing.T) {
	tests := []struct {
		age  int
		want types.AgeBracket
	}{
		{5, types.BracketYoung},
		{7, types.BracketYoung},
		{8, types.BracketOlder},
		{10, types.BracketOlder},
	}
	for _, tc := range tests {
		if got := types.BracketForAge(tc.age); got != tc.want {
			t.Errorf("BracketForAge(%d) = %q, want %q", tc.age, got, tc.want)
		}
	}
}

func TestProfileClamp(t *testing.T) {
	tests := []struct {
		name string
		in   types.LearnerProfile
		want types.LearnerProfile
	}{
		{
			name: "in range untouched",
			in:   types.LearnerProfile{Age: 8, Difficulty: types.DifficultyHard, Personality: types.PersonalityPlayful},
			want: types.LearnerProfile{Age: 8, Difficulty: types.DifficultyHard, Personality: types.PersonalityPlayful},
		},
		{
			name: "age below minimum",
			in:   types.LearnerProfile{Age: 2, Difficulty: types.DifficultyEasy, Personality: types.PersonalityFriendly},
			want: types.LearnerProfile{Age: 5, Difficulty: types.DifficultyEasy, Personality: types.PersonalityFriendly},
		},
		{
			name: "age above maximum",
			in:   types.LearnerProfile{Age: 42, Difficulty: types.DifficultyMedium, Personality: types.PersonalityPatient},
			want: types.LearnerProfile{Age: 10, Difficulty: types.DifficultyMedium, Personality: types.PersonalityPatient},
		},
		{
			name: "unknown enums normalised",
			in:   types.LearnerProfile{Age: 6, Difficulty: "extreme", Personality: "grumpy"},
			want: types.LearnerProfile{Age: 6, Difficulty: types.DifficultyEasy, Personality: types.PersonalityFriendly},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.in.Clamp(); got != tc.want {
				t.Errorf("Clamp() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestProfileBracketClampsFirst(t *testing.T) {
	if got := (types.LearnerProfile{Age: 0}).Bracket(); got != types.BracketYoung {
		t.Errorf("Bracket() = %q, want young", got)
	}
	if got := (types.LearnerProfile{Age: 42}).Bracket(); got != types.BracketOlder {
		t.Errorf("Bracket() = %q, want older", got)
	}
}

func TestEnumValidation(t *testing.T) {
	if !types.DifficultyMedium.IsValid() || types.Difficulty("nope").IsValid() {
		t.Error("Difficulty.IsValid misbehaves")
	}
	if !types.PersonalityPatient.IsValid() || types.Personality("nope").IsValid() {
		t.Error("Personality.IsValid misbehaves")
	}
	if got := types.Difficulty("nope").Normalize(); got != types.DifficultyEasy {
		t.Errorf("Normalize = %q, want easy", got)
	}
	if got := types.Personality("nope").Normalize(); got != types.PersonalityFriendly {
		t.Errorf("Normalize = %q, want friendly", got)
	}
}

func TestDifficultyLabels(t *testing.T) {
	tests := []struct {
		d    types.Difficulty
		want string
	}{
		{types.DifficultyEasy, "beginner"},
		{types.DifficultyMedium, "intermediate"},
		{types.DifficultyHard, "advanced"},
	}
	for _, tc := range tests {
		if got := tc.d.Label(); got != tc.want {
			t.Errorf("%q.Label() = %q, want %q", tc.d, got, tc.want)
		}
	}
}

func TestAudioClipEmpty(t *testing.T) {
	if !(types.AudioClip{}).Empty() {
		t.Error("zero clip not empty")
	}
	if (types.AudioClip{Data: []byte("x")}).Empty() {
		t.Error("clip with data reported empty")
	}
}
