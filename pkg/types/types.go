// Package types holds the shared domain types for the ai-helper conversation
// engine: learner profiles, conversation turns, and structured teaching
// replies. These types are passed between packages and must stay free of
// behaviour beyond validation and normalisation helpers.
package types

import "time"

// Difficulty is the learning difficulty configured for a learner.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid reports whether d is a recognised difficulty level.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Normalize returns d if it is valid, otherwise [DifficultyEasy].
func (d Difficulty) Normalize() Difficulty {
	if d.IsValid() {
		return d
	}
	return DifficultyEasy
}

// Label returns the human-readable English label used in teaching prompts.
func (d Difficulty) Label() string {
	switch d {
	case DifficultyMedium:
		return "intermediate"
	case DifficultyHard:
		return "advanced"
	default:
		return "beginner"
	}
}

// Personality selects the AI companion's speaking persona. It influences both
// the teaching prompt and the synthesised voice parameters.
type Personality string

const (
	PersonalityFriendly    Personality = "friendly"
	PersonalityEncouraging Personality = "encouraging"
	PersonalityPlayful     Personality = "playful"
	PersonalityPatient     Personality = "patient"
)

// IsValid reports whether p is a recognised personality.
func (p Personality) IsValid() bool {
	switch p {
	case PersonalityFriendly, PersonalityEncouraging, PersonalityPlayful, PersonalityPatient:
		return true
	}
	return false
}

// Normalize returns p if it is valid, otherwise [PersonalityFriendly].
func (p Personality) Normalize() Personality {
	if p.IsValid() {
		return p
	}
	return PersonalityFriendly
}

// Label returns the prompt wording for this personality.
func (p Personality) Label() string {
	switch p {
	case PersonalityEncouraging:
		return "warm and encouraging"
	case PersonalityPlayful:
		return "playful and fun"
	case PersonalityPatient:
		return "calm and patient"
	default:
		return "friendly and cheerful"
	}
}

// Age bounds supported by the product. Profiles outside this range are
// clamped, never rejected.
const (
	MinAge = 5
	MaxAge = 10
)

// AgeBracket groups learner ages into the two pedagogical bands the content
// and voice layers distinguish.
type AgeBracket string

const (
	// BracketYoung covers ages 5–7: shorter sentences, slower speech.
	BracketYoung AgeBracket = "5-7"

	// BracketOlder covers ages 8–10: richer sentences, standard speech.
	BracketOlder AgeBracket = "8-10"
)

// BracketForAge returns the bracket for an already-clamped age. Ages 7 and
// below map to [BracketYoung].
func BracketForAge(age int) AgeBracket {
	if age <= 7 {
		return BracketYoung
	}
	return BracketOlder
}

// LearnerProfile describes a single child learner. The conversation engine
// treats it as read-only; mutations go through the profile store.
type LearnerProfile struct {
	// ID uniquely identifies the learner across sessions.
	ID string

	// Age in years, expected within [MinAge, MaxAge]. Use Clamp before
	// handing the profile to the engine.
	Age int

	// Difficulty is the configured learning difficulty.
	Difficulty Difficulty

	// Personality is the configured companion persona.
	Personality Personality

	// TodayPractice is the number of practice interactions completed today.
	TodayPractice int

	// TotalScore is the learner's accumulated score across all sessions.
	TotalScore int

	// LastActive is the time of the learner's most recent interaction.
	LastActive time.Time
}

// Clamp returns a copy of p with Age forced into [MinAge, MaxAge] and the
// enum fields normalised to their defaults when unrecognised.
func (p LearnerProfile) Clamp() LearnerProfile {
	if p.Age < MinAge {
		p.Age = MinAge
	}
	if p.Age > MaxAge {
		p.Age = MaxAge
	}
	p.Difficulty = p.Difficulty.Normalize()
	p.Personality = p.Personality.Normalize()
	return p
}

// Bracket returns the age bracket for the (clamped) profile age.
func (p LearnerProfile) Bracket() AgeBracket {
	return BracketForAge(p.Clamp().Age)
}

// TurnSource tells how a conversation turn was initiated.
type TurnSource string

const (
	// SourceScheduled marks turns started autonomously by the scheduler.
	SourceScheduled TurnSource = "scheduled"

	// SourceUser marks turns that respond to learner speech.
	SourceUser TurnSource = "user"

	// SourceFollowup marks delayed continuation turns after a scheduled turn.
	SourceFollowup TurnSource = "followup"
)

// StructuredReply is the four-part teaching reply every AI turn carries:
// the English sentence to speak, its Chinese translation, a pronunciation or
// usage tip, and a short encouragement.
type StructuredReply struct {
	English       string
	Chinese       string
	Tip           string
	Encouragement string
}

// AudioClip is a synthesised utterance ready for playback.
type AudioClip struct {
	// Data is the encoded audio. Never empty for a valid clip.
	Data []byte

	// Format is the container/codec name, e.g. "mp3" or "wav".
	Format string
}

// Empty reports whether the clip carries no audio data.
func (c AudioClip) Empty() bool { return len(c.Data) == 0 }

// Turn is one AI conversation turn delivered to the client surface. Turns are
// ephemeral: they are emitted, optionally persisted as history, and never
// mutated afterwards.
type Turn struct {
	// ID is a unique identifier for this turn.
	ID string

	// LearnerID identifies whose session produced the turn.
	LearnerID string

	// Source tells how the turn was initiated.
	Source TurnSource

	// Reply is the structured teaching content for this turn.
	Reply StructuredReply

	// Audio is the synthesised speech for Reply.English. Nil when synthesis
	// failed and the turn is delivered text-only.
	Audio *AudioClip

	// Heard is the recognised learner utterance that triggered the turn.
	// Empty for scheduled and follow-up turns.
	Heard string

	// Timestamp is when the turn was produced.
	Timestamp time.Time
}
