package models

// ConversationMessage is one line of chat context, oldest first.
type ConversationMessage struct {
	User string `json:"user"`
	Text string `json:"text"`
}

// SmartReplyRequest is the payload sent to the smart-replies endpoint.
type SmartReplyRequest struct {
	Messages []ConversationMessage `json:"messages"`
}

// SmartReplyResult is what callers get back regardless of which generator ran.
// Model is set only when IsAI is true.
type SmartReplyResult struct {
	Replies []string `json:"replies"`
	IsAI    bool     `json:"isAI"`
	Model   string   `json:"model,omitempty"`
}
