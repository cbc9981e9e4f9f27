package models

const (
	WSTypeSuggest      = "suggest"
	WSTypeSmartReplies = "smart_replies"
	WSTypeError        = "error"
)

// WebSocket message types
type WSMessage struct {
	Type      string      `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
}

// WSSuggestRequest is sent by a client that wants fresh suggestions for its window.
type WSSuggestRequest struct {
	Type      string                `json:"type"`
	RequestID string                `json:"request_id"`
	Messages  []ConversationMessage `json:"messages"`
}

type ErrorEvent struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
