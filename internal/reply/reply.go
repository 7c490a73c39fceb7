// Package reply turns learner input into structured teaching replies.
//
// A Generator holds exactly one LLM provider (selected at wiring time by
// credential precedence) and guarantees usable content on every call: when
// the provider fails, times out, or returns a malformed reply, the result
// carries a fixed fallback reply instead of an error the caller would have to
// translate into silence.
package reply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/yxz1025/ai-helper/internal/observe"
	"github.com/yxz1025/ai-helper/pkg/provider/llm"
	"github.com/yxz1025/ai-helper/pkg/types"
)

// generateTimeout bounds one reply generation round-trip.
const generateTimeout = 15 * time.Second

// historyWindow is how many trailing history turns the prompt embeds.
const historyWindow = 5

// replyFieldCount is the number of "|"-delimited segments a well-formed model
// reply carries: english|chinese|tip|encouragement.
const replyFieldCount = 4

// ErrMalformedReply is wrapped into Result.Err when the model's text does not
// split into exactly four segments.
var ErrMalformedReply = errors.New("reply: malformed model reply")

// HistoryTurn is one past exchange embedded into the teaching prompt.
type HistoryTurn struct {
	// FromLearner tells whether the learner (true) or the AI (false) spoke.
	FromLearner bool

	// Text is what was said.
	Text string
}

// Result is the outcome of one generation. Content is always usable: on
// failure it holds a fallback reply and Fallback is true.
type Result struct {
	// Content is the structured teaching reply to deliver.
	Content types.StructuredReply

	// Fallback tells whether Content is a fixed fallback rather than a
	// model-generated reply.
	Fallback bool

	// Err describes why generation fell back. Nil when Fallback is false.
	Err error
}

// fallbackReplies is the fixed set a failed generation draws from.
var fallbackReplies = []types.StructuredReply{
	{
		English:       "That's interesting! Can you tell me more?",
		Chinese:       "这很有趣！你能告诉我更多吗？",
		Tip:           "继续练习，你会越来越棒的！",
		Encouragement: "Great effort! Keep learning!",
	},
	{
		English:       "I'm here to help you learn!",
		Chinese:       "我在这里帮你学习！",
		Tip:           "学习英语是一个有趣的过程！",
		Encouragement: "You're doing great!",
	},
	{
		English:       "Let's practice together!",
		Chinese:       "让我们一起练习吧！",
		Tip:           "多练习会让你的英语更好！",
		Encouragement: "Keep going!",
	},
}

// Generator produces teaching replies. Safe for concurrent use.
type Generator struct {
	provider llm.Provider
	metrics  *observe.Metrics
	logger   *slog.Logger
	randInt  func(n int) int
}

// Option is a functional option for [NewGenerator].
type Option func(*Generator)

// WithMetrics overrides the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithLogger overrides the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithRandInt overrides the fallback selection source. Used in tests.
func WithRandInt(fn func(n int) int) Option {
	return func(g *Generator) { g.randInt = fn }
}

// NewGenerator creates a generator over the given provider.
func NewGenerator(provider llm.Provider, opts ...Option) (*Generator, error) {
	if provider == nil {
		return nil, errors.New("reply: provider must not be nil")
	}
	g := &Generator{provider: provider, randInt: rand.Intn}
	for _, o := range opts {
		o(g)
	}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g, nil
}

// Generate produces a teaching reply for the learner's input. The result is
// always usable; inspect Fallback to tell generated from fallback content.
func (g *Generator) Generate(ctx context.Context, userInput string, profile types.LearnerProfile, history []HistoryTurn) Result {
	profile = profile.Clamp()
	prompt := BuildPrompt(userInput, profile, history)

	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	start := time.Now()
	resp, err := g.provider.Complete(ctx, llm.Request{
		Prompt:      prompt,
		Temperature: 0.7,
		MaxTokens:   200,
	})
	g.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		g.metrics.RecordProviderError(ctx, g.provider.Name(), "llm")
		g.logger.Warn("reply generation failed", "provider", g.provider.Name(), "err", err)
		return g.fallback(ctx, err)
	}

	content, err := Parse(resp.Content)
	if err != nil {
		g.logger.Warn("model reply unparseable", "provider", g.provider.Name(), "err", err)
		return g.fallback(ctx, err)
	}
	return Result{Content: content}
}

// Fallback returns a Result carrying a randomly chosen fixed reply, for
// callers that could not produce model input in the first place (for example
// when speech recognition fails).
func (g *Generator) Fallback(ctx context.Context, cause error) Result {
	return g.fallback(ctx, cause)
}

// fallback returns a Result carrying a randomly chosen fixed reply.
func (g *Generator) fallback(ctx context.Context, cause error) Result {
	g.metrics.FallbackReplies.Add(ctx, 1)
	return Result{
		Content:  fallbackReplies[g.randInt(len(fallbackReplies))],
		Fallback: true,
		Err:      cause,
	}
}

// Parse splits a model reply into its four segments. Each segment is
// whitespace-trimmed. Returns [ErrMalformedReply] when the segment count is
// not exactly four.
func Parse(text string) (types.StructuredReply, error) {
	parts := strings.Split(text, "|")
	if len(parts) != replyFieldCount {
		return types.StructuredReply{}, fmt.Errorf("%w: got %d segments, want %d", ErrMalformedReply, len(parts), replyFieldCount)
	}
	return types.StructuredReply{
		English:       strings.TrimSpace(parts[0]),
		Chinese:       strings.TrimSpace(parts[1]),
		Tip:           strings.TrimSpace(parts[2]),
		Encouragement: strings.TrimSpace(parts[3]),
	}, nil
}

// BuildPrompt assembles the bilingual teaching prompt: persona and format
// instructions, the learner's age, difficulty, and persona labels, the
// learner's utterance, and up to the last five history turns.
func BuildPrompt(userInput string, profile types.LearnerProfile, history []HistoryTurn) string {
	var b strings.Builder

	fmt.Fprintf(&b, `你是一位专为5-10岁中国儿童设计的AI英语老师。你的任务是理解儿童的英语发音并生成温暖友好的回复。

## 当前对话信息
- 孩子年龄：%d岁
- 学习难度：%s
- AI性格：%s
- 孩子刚才说：%s

## 回复要求
1. 准确理解孩子的英语表达，即使发音不标准也要耐心识别
2. 根据年龄调整语言复杂度（5-7岁用简单词汇，8-10岁用中等复杂度）
3. 回复要温暖、鼓励、充满耐心
4. 包含学习建议和积极反馈

## 回复格式
请严格按照以下格式回复，用"|"分隔：

英语回复|中文翻译|学习提示|鼓励话语

## 示例回复
Hello! You speak English very well! 🌟|你好！你的英语说得很好！|记住要大声说出来哦！|Keep going! You're doing great!

## 注意事项
- 如果听不懂，温和地询问并鼓励重试
- 发音错误时先鼓励再纠正
- 学习困难时给予支持和建议
- 表现优秀时真诚赞美
- 保持积极正面的语调
- 适合儿童的内容，避免复杂概念`,
		profile.Age, difficultyText(profile.Difficulty), personalityText(profile.Personality), userInput)

	if len(history) > 0 {
		b.WriteString("\n\n## 对话历史\n")
		start := 0
		if len(history) > historyWindow {
			start = len(history) - historyWindow
		}
		for _, h := range history[start:] {
			if h.FromLearner {
				fmt.Fprintf(&b, "用户: %s\n", h.Text)
			} else {
				fmt.Fprintf(&b, "AI: %s\n", h.Text)
			}
		}
	}

	b.WriteString("\n\n请现在回复：")
	return b.String()
}

// difficultyText maps a difficulty to its Chinese prompt label.
func difficultyText(d types.Difficulty) string {
	switch d {
	case types.DifficultyMedium:
		return "中等"
	case types.DifficultyHard:
		return "困难"
	default:
		return "简单"
	}
}

// personalityText maps a personality to its Chinese prompt label.
func personalityText(p types.Personality) string {
	switch p {
	case types.PersonalityEncouraging:
		return "鼓励"
	case types.PersonalityPlayful:
		return "活泼"
	case types.PersonalityPatient:
		return "耐心"
	default:
		return "友好"
	}
}
