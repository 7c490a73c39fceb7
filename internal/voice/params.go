package voice

import (
	"github.com/yxz1025/ai-helper/pkg/provider/tts"
	"github.com/yxz1025/ai-helper/pkg/types"
)

// bracketBase maps an age bracket to its base synthesis parameters. Young
// learners get slower speech, a slightly higher pitch, and the female voice;
// older learners get standard pacing and the male voice.
var bracketBase = map[types.AgeBracket]tts.Params{
	types.BracketYoung: {Language: "en", Speed: 4, Pitch: 6, Volume: 5, Voice: 0},
	types.BracketOlder: {Language: "en", Speed: 5, Pitch: 5, Volume: 5, Voice: 1},
}

// personalityAdjust is the additive adjustment a persona applies on top of
// the bracket base. SetVolume, when non-negative, replaces the base volume
// instead of adding to it.
type personalityAdjust struct {
	speed     int
	pitch     int
	setVolume int
}

var personalityAdjusts = map[types.Personality]personalityAdjust{
	types.PersonalityFriendly:    {speed: -1, pitch: +1, setVolume: -1},
	types.PersonalityEncouraging: {pitch: +2, setVolume: 6},
	types.PersonalityPlayful:     {speed: +1, pitch: +2, setVolume: -1},
	types.PersonalityPatient:     {speed: -1, setVolume: 4},
}

// ParamsFor returns the synthesis parameters for a learner's age and persona:
// the age-bracket base with the persona adjustment applied, clamped to the
// provider scale. Unrecognised personalities fall back to friendly.
func ParamsFor(age int, personality types.Personality) tts.Params {
	base := bracketBase[types.BracketForAge(clampAge(age))]

	adj := personalityAdjusts[personality.Normalize()]
	base.Speed += adj.speed
	base.Pitch += adj.pitch
	if adj.setVolume >= 0 {
		base.Volume = adj.setVolume
	}

	return base.Clamp()
}

func clampAge(age int) int {
	if age < types.MinAge {
		return types.MinAge
	}
	if age > types.MaxAge {
		return types.MaxAge
	}
	return age
}
