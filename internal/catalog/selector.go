package catalog

import (
	"math/rand"
	"time"
	"unicode/utf8"

	"github.com/yxz1025/ai-helper/pkg/types"
)

// Context carries the inputs the selector weighs for one conversation cycle.
type Context struct {
	// Profile is the learner the cycle addresses.
	Profile types.LearnerProfile

	// Now is the wall-clock time of the cycle. Injected for testability.
	Now time.Time
}

// Selector picks conversation templates for autonomous cycles. Safe for
// concurrent use; the random source is only consulted under internal
// synchronisation by the caller (a session runs one cycle at a time).
type Selector struct {
	catalog *Catalog
	randInt func(n int) int
}

// SelectorOption is a functional option for [NewSelector].
type SelectorOption func(*Selector)

// WithRandInt overrides the random index source. Used in tests to make
// selection deterministic.
func WithRandInt(fn func(n int) int) SelectorOption {
	return func(s *Selector) { s.randInt = fn }
}

// NewSelector creates a selector over the given catalog.
func NewSelector(c *Catalog, opts ...SelectorOption) *Selector {
	s := &Selector{catalog: c, randInt: rand.Intn}
	for _, o := range opts {
		o(s)
	}
	return s
}

// preferredForHour returns the template IDs favoured in the given hour of
// day: greetings and warm-up in the morning, games and stories in the
// afternoon, winding-down content in the evening.
func preferredForHour(hour int) []string {
	switch {
	case hour >= 6 && hour < 12:
		return []string{Greeting, Encouragement, Vocabulary}
	case hour >= 12 && hour < 18:
		return []string{GameInvitation, StoryTime, Vocabulary}
	default:
		return []string{StoryTime, ProgressCelebration, Greeting}
	}
}

// suitable reports whether a template's sentence length fits the learner's
// age bracket: young learners get short sentences, older learners get
// substantial ones. A mid-length template can suit both brackets.
func suitable(t Template, profile types.LearnerProfile) bool {
	// Length in characters, so template emoji do not inflate the bounds.
	n := utf8.RuneCountInString(t.Reply.English)
	if profile.Bracket() == types.BracketYoung {
		return n < 100
	}
	return n >= 50
}

// Select picks the template for one cycle, or nil when nothing in the catalog
// suits the learner. The preferred time-of-day set narrows the choice when it
// intersects the suitable set; otherwise any suitable template may be chosen,
// uniformly at random.
func (s *Selector) Select(cx Context) *Template {
	profile := cx.Profile.Clamp()

	preferred := preferredForHour(cx.Now.Hour())
	// A learner who has not practised today hears encouragement first.
	if profile.TodayPractice == 0 {
		preferred = append([]string{Encouragement}, preferred...)
	}

	var suitableSet []*Template
	for i := range s.catalog.templates {
		t := &s.catalog.templates[i]
		if suitable(*t, profile) {
			suitableSet = append(suitableSet, t)
		}
	}
	if len(suitableSet) == 0 {
		return nil
	}

	var pool []*Template
	for _, t := range suitableSet {
		for _, id := range preferred {
			if t.ID == id {
				pool = append(pool, t)
				break
			}
		}
	}
	if len(pool) == 0 {
		pool = suitableSet
	}

	return pool[s.randInt(len(pool))]
}

// FollowUp returns a follow-up reply for the given template, or nil when the
// template has no follow-up content.
func (s *Selector) FollowUp(t *Template) *types.StructuredReply {
	if t == nil || len(t.FollowUps) == 0 {
		return nil
	}
	r := t.FollowUps[s.randInt(len(t.FollowUps))]
	return &r
}
