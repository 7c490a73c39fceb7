// Package catalog holds the built-in conversation templates and the selector
// that picks which one an autonomous conversation cycle should speak.
package catalog

import (
	"time"

	"github.com/yxz1025/ai-helper/pkg/types"
)

// Template IDs for the built-in catalog.
const (
	Greeting            = "greeting"
	Encouragement       = "encouragement"
	Vocabulary          = "vocabulary"
	StoryTime           = "story_time"
	GameInvitation      = "game_invitation"
	ProgressCelebration = "progress_celebration"
)

// Template is one prepared conversation opener. Templates are immutable after
// catalog construction; the selector returns pointers into a shared slice and
// callers must not mutate them.
type Template struct {
	// ID is the stable template identifier.
	ID string

	// Title is the Chinese display title shown in the client.
	Title string

	// Reply is the structured teaching content spoken when the template is
	// selected.
	Reply types.StructuredReply

	// Triggers are topic tags the template responds to.
	Triggers []string

	// Priority orders templates for display; lower is more prominent.
	Priority int

	// FollowUpDelay is how long after playback completes a follow-up turn
	// may be scheduled. Zero means the template has no follow-up.
	FollowUpDelay time.Duration

	// FollowUps is the fixed set of follow-up replies for this template.
	// Empty when the template has no follow-up content even if a delay is
	// configured.
	FollowUps []types.StructuredReply
}

// builtin is the fixed conversation catalog.
var builtin = []Template{
	{
		ID:    Greeting,
		Title: "问候对话",
		Reply: types.StructuredReply{
			English: "Hello there! How are you feeling today? 🌟",
			Chinese: "你好！你今天感觉怎么样？",
			Tip:     "试着用英语回答：I'm fine, thank you!",
		},
		Triggers:      []string{"morning", "afternoon", "evening"},
		Priority:      1,
		FollowUpDelay: 15 * time.Second,
		FollowUps: []types.StructuredReply{
			{
				English: "Are you ready to learn something new today?",
				Chinese: "你准备好学习新知识了吗？",
				Tip:     "回答：Yes, I'm ready!",
			},
		},
	},
	{
		ID:    Encouragement,
		Title: "鼓励学习",
		Reply: types.StructuredReply{
			English: "I noticed you haven't practiced today. Let's learn something new together! 💪",
			Chinese: "我注意到你今天还没有练习。让我们一起学习新知识吧！",
			Tip:     "每天坚持练习，你会越来越棒的！",
		},
		Triggers:      []string{"no_practice"},
		Priority:      2,
		FollowUpDelay: 20 * time.Second,
		FollowUps: []types.StructuredReply{
			{
				English: "I can help you practice. What would you like to learn?",
				Chinese: "我可以帮你练习。你想学什么呢？",
				Tip:     "可以说：I want to learn colors!",
			},
		},
	},
	{
		ID:    Vocabulary,
		Title: "词汇学习",
		Reply: types.StructuredReply{
			English: "Do you know what color this is? It's red! Can you say 'red'? 🔴",
			Chinese: "你知道这是什么颜色吗？是红色！你能说'red'吗？",
			Tip:     "学习颜色单词：red, blue, green, yellow",
		},
		Triggers:      []string{"vocabulary_practice"},
		Priority:      3,
		FollowUpDelay: 10 * time.Second,
		FollowUps: []types.StructuredReply{
			{
				English: "Can you say 'red' again? Great job!",
				Chinese: "你能再说一遍'red'吗？太棒了！",
				Tip:     "重复练习让记忆更深刻！",
			},
		},
	},
	{
		ID:    StoryTime,
		Title: "故事时间",
		Reply: types.StructuredReply{
			English: "Would you like to hear a story? Once upon a time, there was a little cat... 🐱",
			Chinese: "你想听故事吗？从前，有一只小猫...",
			Tip:     "故事是学习英语的好方法！",
		},
		Triggers:      []string{"story_time"},
		Priority:      4,
		FollowUpDelay: 30 * time.Second,
	},
	{
		ID:    GameInvitation,
		Title: "游戏邀请",
		Reply: types.StructuredReply{
			English: "Let's play a fun game! Can you find something blue in your room? 🎮",
			Chinese: "我们来玩个有趣的游戏吧！你能在房间里找到蓝色的东西吗？",
			Tip:     "游戏让学习更有趣！",
		},
		Triggers:      []string{"game_time"},
		Priority:      5,
		FollowUpDelay: 25 * time.Second,
	},
	{
		ID:    ProgressCelebration,
		Title: "进步庆祝",
		Reply: types.StructuredReply{
			English: "Wow! You've learned so much! I'm so proud of you! 🎉",
			Chinese: "哇！你学到了这么多！我为你感到骄傲！",
			Tip:     "继续努力，你会成为英语小能手！",
		},
		Triggers: []string{"progress_milestone"},
		Priority: 6,
	},
}

// Catalog is an immutable set of conversation templates.
type Catalog struct {
	templates []Template
}

// New returns the built-in catalog.
func New() *Catalog {
	return &Catalog{templates: builtin}
}

// Templates returns all templates in priority order. Callers must not mutate
// the returned slice.
func (c *Catalog) Templates() []Template {
	return c.templates
}

// ByID returns the template with the given ID, or nil.
func (c *Catalog) ByID(id string) *Template {
	for i := range c.templates {
		if c.templates[i].ID == id {
			return &c.templates[i]
		}
	}
	return nil
}
