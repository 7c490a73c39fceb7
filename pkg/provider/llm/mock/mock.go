// Package mock provides an offline llm.Provider used both as the runtime
// fallback when no API credentials are configured and as a test double.
//
// With no fields set the provider is deterministic for a given (age bracket,
// seed) pair: it returns a well-formed four-part teaching reply appropriate
// for the bracket named in the request prompt. Tests can instead pin an exact
// response or inject an error.
//
// Example:
//
//	p := &mock.Provider{
//	    Response: &llm.Response{Content: "Hi!|你好|Say it loud|Great job"},
//	}
//	resp, err := p.Complete(ctx, req)
package mock

import (
	"context"
	"math/rand"
	"strings"
	"sync"

	"github.com/yxz1025/ai-helper/pkg/provider/llm"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the Request passed to Complete.
	Req llm.Request
}

// Provider is a mock implementation of llm.Provider.
// Zero values for the response fields select the built-in canned replies.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Response, if non-nil, is returned verbatim by Complete.
	Response *llm.Response

	// Err, if non-nil, is returned as the error from Complete.
	Err error

	// Seed pins the canned-reply selection for deterministic tests. Zero
	// means pick pseudo-randomly.
	Seed int64

	// --- Call records (read after test) ---

	// CompleteCalls records every invocation of Complete in order.
	CompleteCalls []CompleteCall
}

// youngReplies are the canned four-part replies for learners aged 5–7.
var youngReplies = []string{
	"Hello there! You're doing so well! 🌟|你好！你做得很好！|记住要大声说出来哦！|Keep going!",
	"I love talking with you! Can you tell me about your favorite color? 🎨|我喜欢和你聊天！你能告诉我你最喜欢的颜色吗？|用英语说出颜色，比如：I like red!|Wonderful!",
	"You're such a smart little one! Let's learn more words together! 📚|你真是个聪明的小朋友！让我们一起学更多单词吧！|每个新单词都是一个新朋友！|Excellent!",
}

// olderReplies are the canned four-part replies for learners aged 8–10.
var olderReplies = []string{
	"Great to see you again! How has your day been? 😊|很高兴再次见到你！你今天过得怎么样？|试着用英语描述你的一天！|Nice to meet you!",
	"I can see you're working hard on your English. That's wonderful! 📖|我看到你在努力学习英语。这太棒了！|努力学习的孩子最棒！|Keep up the good work!",
	"What would you like to talk about today? I'm here to help you learn! 💬|今天你想聊什么呢？我在这里帮你学习！|选择你感兴趣的话题开始对话！|Great choice!",
}

// Complete records the call and returns the configured response, the
// configured error, or a canned reply chosen by the request's age bracket.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})

	if p.Err != nil {
		return nil, p.Err
	}
	if p.Response != nil {
		return p.Response, nil
	}

	replies := olderReplies
	// The teaching prompt names the learner's age; young learners get the
	// simpler reply set.
	for _, marker := range []string{"5岁", "6岁", "7岁"} {
		if strings.Contains(req.Prompt, marker) {
			replies = youngReplies
			break
		}
	}

	idx := rand.Intn(len(replies))
	if p.Seed != 0 {
		idx = int(p.Seed) % len(replies)
		if idx < 0 {
			idx = -idx
		}
	}
	return &llm.Response{Content: replies[idx], Model: "mock"}, nil
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return "mock" }

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = nil
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)
