package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"smartreply-backend/internal/models"
)

const (
	contextWindow    = 10
	maxReplies       = 3
	replyTemperature = 0.7
	replyMaxTokens   = 200
)

const smartReplySystemPrompt = `You are a smart reply assistant for a live chat application. Your job is to generate 3 short, contextually relevant, and natural reply suggestions based on the conversation.

Guidelines:
- Each reply should be 5-50 characters
- Make them casual, friendly, and conversational
- Match the tone of the conversation
- Use emojis sparingly and naturally
- Avoid generic responses
- Be authentic and human-like

Return ONLY a valid JSON array of 3 strings, nothing else. Example: ["That's awesome!", "Let's go!", "I'm down"]`

var errNoReplies = errors.New("reply array is empty")

// buildUserPrompt embeds the last contextWindow messages as "user: text" lines.
func buildUserPrompt(messages []models.ConversationMessage) string {
	if len(messages) > contextWindow {
		messages = messages[len(messages)-contextWindow:]
	}

	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, m.User+": "+m.Text)
	}

	var b strings.Builder
	b.WriteString("Recent conversation:\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\nGenerate 3 smart reply suggestions as a JSON array.")
	return b.String()
}

// parseReplyContent validates model output as a JSON array of strings.
// Blank entries are dropped and the result is capped at maxReplies,
// preserving order. Kept entries are returned exactly as the model wrote them.
func parseReplyContent(content string) ([]string, error) {
	raw := strings.TrimSpace(content)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var entries []string
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, &InferenceError{
			Kind:   FailureMalformedContent,
			Detail: content,
			Err:    fmt.Errorf("content is not a JSON array of strings: %w", err),
		}
	}

	replies := make([]string, 0, maxReplies)
	for _, e := range entries {
		if strings.TrimSpace(e) == "" {
			continue
		}
		replies = append(replies, e)
		if len(replies) == maxReplies {
			break
		}
	}

	if len(replies) == 0 {
		return nil, &InferenceError{Kind: FailureMalformedContent, Detail: content, Err: errNoReplies}
	}
	return replies, nil
}
