package reply_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/yxz1025/ai-helper/internal/reply"
	"github.com/yxz1025/ai-helper/pkg/provider/llm"
	llmmock "github.com/yxz1025/ai-helper/pkg/provider/llm/mock"
	"github.com/yxz1025/ai-helper/pkg/types"
)

func first(n int) int { return 0 }

func testProfile() types.LearnerProfile {
	return types.LearnerProfile{
		ID:          "learner-1",
		Age:         6,
		Difficulty:  types.DifficultyEasy,
		Personality: types.PersonalityFriendly,
	}
}

func newGenerator(t *testing.T, p *llmmock.Provider) *reply.Generator {
	t.Helper()
	g, err := reply.NewGenerator(p, reply.WithRandInt(first))
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return g
}

func TestNewGeneratorRequiresProvider(t *testing.T) {
	if _, err := reply.NewGenerator(nil); err == nil {
		t.Error("NewGenerator(nil) succeeded")
	}
}

func TestGenerate(t *testing.T) {
	p := &llmmock.Provider{Response: &llm.Response{
		Content: "Hi! Nice try! 🌟|你好！做得不错！|大声一点哦|Great job!",
	}}
	g := newGenerator(t, p)

	got := g.Generate(t.Context(), "Hello!", testProfile(), nil)
	if got.Fallback {
		t.Fatalf("unexpected fallback: %v", got.Err)
	}
	want := types.StructuredReply{
		English:       "Hi! Nice try! 🌟",
		Chinese:       "你好！做得不错！",
		Tip:           "大声一点哦",
		Encouragement: "Great job!",
	}
	if got.Content != want {
		t.Errorf("Content = %+v, want %+v", got.Content, want)
	}

	if len(p.CompleteCalls) != 1 {
		t.Fatalf("provider called %d times, want 1", len(p.CompleteCalls))
	}
	req := p.CompleteCalls[0].Req
	if req.Temperature != 0.7 || req.MaxTokens != 200 {
		t.Errorf("request tuning = temp %v tokens %d", req.Temperature, req.MaxTokens)
	}
}

func TestGenerateFallsBackOnProviderError(t *testing.T) {
	cause := errors.New("quota exceeded")
	g := newGenerator(t, &llmmock.Provider{Err: cause})

	got := g.Generate(t.Context(), "Hello!", testProfile(), nil)
	if !got.Fallback {
		t.Fatal("Fallback = false, want true")
	}
	if !errors.Is(got.Err, cause) {
		t.Errorf("Err = %v, want %v", got.Err, cause)
	}
	if got.Content.English == "" || got.Content.Chinese == "" {
		t.Errorf("fallback content incomplete: %+v", got.Content)
	}
}

func TestGenerateFallsBackOnMalformedReply(t *testing.T) {
	g := newGenerator(t, &llmmock.Provider{Response: &llm.Response{
		Content: "just some text without separators",
	}})

	got := g.Generate(t.Context(), "Hello!", testProfile(), nil)
	if !got.Fallback {
		t.Fatal("Fallback = false, want true")
	}
	if !errors.Is(got.Err, reply.ErrMalformedReply) {
		t.Errorf("Err = %v, want ErrMalformedReply", got.Err)
	}
}

func TestFallbackWithoutGeneration(t *testing.T) {
	cause := errors.New("recognition failed")
	p := &llmmock.Provider{}
	g := newGenerator(t, p)

	got := g.Fallback(t.Context(), cause)
	if !got.Fallback || !errors.Is(got.Err, cause) {
		t.Errorf("Fallback = %+v", got)
	}
	if len(p.CompleteCalls) != 0 {
		t.Errorf("provider called %d times, want 0", len(p.CompleteCalls))
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    types.StructuredReply
		wantErr bool
	}{
		{
			name: "well formed",
			text: "Hello!|你好！|提示|Well done!",
			want: types.StructuredReply{English: "Hello!", Chinese: "你好！", Tip: "提示", Encouragement: "Well done!"},
		},
		{
			name: "segments are trimmed",
			text: "  Hello!  | 你好！ |\t提示\n| Well done! ",
			want: types.StructuredReply{English: "Hello!", Chinese: "你好！", Tip: "提示", Encouragement: "Well done!"},
		},
		{name: "too few segments", text: "Hello!|你好！|提示", wantErr: true},
		{name: "too many segments", text: "a|b|c|d|e", wantErr: true},
		{name: "empty", text: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := reply.Parse(tc.text)
			if tc.wantErr {
				if !errors.Is(err, reply.ErrMalformedReply) {
					t.Fatalf("err = %v, want ErrMalformedReply", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got != tc.want {
				t.Errorf("Parse = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	profile := types.LearnerProfile{
		ID:          "learner-1",
		Age:         9,
		Difficulty:  types.DifficultyMedium,
		Personality: types.PersonalityPatient,
	}
	history := []reply.HistoryTurn{
		{FromLearner: true, Text: "Hello!"},
		{FromLearner: false, Text: "Hi there!"},
	}

	prompt := reply.BuildPrompt("I like cats!", profile, history)

	for _, want := range []string{"9岁", "中等", "耐心", "I like cats!", "用户: Hello!", "AI: Hi there!"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildPromptTrimsHistory(t *testing.T) {
	history := make([]reply.HistoryTurn, 8)
	for i := range history {
		history[i] = reply.HistoryTurn{FromLearner: true, Text: strings.Repeat("x", i+1)}
	}

	prompt := reply.BuildPrompt("Hello!", testProfile(), history)

	// Only the last five turns survive; the shortest early turns are dropped.
	if strings.Contains(prompt, "用户: xx\n") {
		t.Error("prompt contains a history turn outside the window")
	}
	if !strings.Contains(prompt, "用户: xxxx\n") {
		t.Error("prompt missing the oldest in-window history turn")
	}
}
