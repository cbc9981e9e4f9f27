package services

import (
	"math/rand/v2"
	"strings"

	"smartreply-backend/internal/models"
)

// RandSource picks an index in [0, n). A *rand.Rand from math/rand/v2
// satisfies it; it must be safe for concurrent use when shared.
type RandSource interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

type replyCategory struct {
	name     string
	keywords []string
	replies  []string
}

var greetingReplies = []string{"Hey there! 👋", "What's up?", "How's it going?"}

// Checked in order; first match wins.
var replyCategories = []replyCategory{
	{
		name:     "question",
		keywords: []string{"?"},
		replies:  []string{"Good question!", "Let me think...", "Not sure tbh"},
	},
	{
		name:     "excitement",
		keywords: []string{"!", "wow", "amazing"},
		replies:  []string{"That's awesome! 🔥", "So cool!", "Let's gooo!"},
	},
	{
		name:     "agreement",
		keywords: []string{"yes", "yeah", "agree", "right"},
		replies:  []string{"Totally agree!", "For sure!", "100%"},
	},
	{
		name:     "gaming",
		keywords: []string{"game", "play", "win", "gg"},
		replies:  []string{"GG! 🎮", "Nice play!", "W gaming"},
	},
	{
		name:     "humor",
		keywords: []string{"lol", "haha", "funny", "😂"},
		replies:  []string{"Haha nice! 😂", "So funny!", "LMAO"},
	},
	{
		name:     "gratitude",
		keywords: []string{"thank", "appreciate"},
		replies:  []string{"No problem!", "Anytime!", "Happy to help!"},
	},
}

var genericReplySets = [][]string{
	{"Sounds good! 👍", "Let's do it!", "I'm down!"},
	{"Nice one!", "That's cool!", "Love it!"},
	{"Interesting!", "Tell me more", "Go on..."},
	{"For real!", "No way!", "That's wild!"},
	{"Facts!", "True that!", "Agreed!"},
	{"Let's gooo!", "W chat", "Based"},
}

// HeuristicClassifier produces keyword-driven suggestions without any I/O.
type HeuristicClassifier struct {
	rng RandSource
}

// NewHeuristicClassifier returns a classifier drawing from rng for the
// no-match bucket. A nil rng uses the process-wide math/rand/v2 source.
func NewHeuristicClassifier(rng RandSource) *HeuristicClassifier {
	if rng == nil {
		rng = globalRand{}
	}
	return &HeuristicClassifier{rng: rng}
}

// Classify inspects only the most recent message. It never fails.
func (c *HeuristicClassifier) Classify(messages []models.ConversationMessage) []string {
	if len(messages) == 0 {
		return cloneReplies(greetingReplies)
	}

	last := strings.ToLower(messages[len(messages)-1].Text)

	if cat, ok := matchCategory(last); ok {
		return cloneReplies(cat.replies)
	}

	return cloneReplies(genericReplySets[c.rng.IntN(len(genericReplySets))])
}

func matchCategory(text string) (replyCategory, bool) {
	for _, cat := range replyCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(text, kw) {
				return cat, true
			}
		}
	}
	return replyCategory{}, false
}

// Callers own the returned slice; the package tables stay untouched.
func cloneReplies(src []string) []string {
	out := make([]string, len(src))
	copy(out, src)
	return out
}
