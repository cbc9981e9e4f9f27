package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"smartreply-backend/internal/models"
)

const (
	SyntheticModel          = "hf:meta-llama/Llama-3.3-70B-Instruct"
	DefaultSyntheticBaseURL = "https://api.synthetic.new/openai/v1"

	maxErrorBodyBytes = 4 << 10
)

// ParsedReplies is a validated remote answer: 1..3 non-empty replies.
type ParsedReplies struct {
	Replies []string
	Model   string
}

// InferenceClient performs exactly one remote generation attempt.
// Failures are *InferenceError.
type InferenceClient interface {
	RequestReplies(ctx context.Context, messages []models.ConversationMessage, apiKey string) (*ParsedReplies, error)
}

type chatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string                  `json:"model"`
	Messages    []chatCompletionMessage `json:"messages"`
	Temperature float64                 `json:"temperature"`
	MaxTokens   int                     `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatCompletionsClient talks to an OpenAI-compatible chat-completions endpoint.
// It never retries.
type ChatCompletionsClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewChatCompletionsClient(baseURL string, httpClient *http.Client) *ChatCompletionsClient {
	if baseURL == "" {
		baseURL = DefaultSyntheticBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &ChatCompletionsClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      SyntheticModel,
		httpClient: httpClient,
	}
}

func (c *ChatCompletionsClient) Model() string { return c.model }

func (c *ChatCompletionsClient) RequestReplies(ctx context.Context, messages []models.ConversationMessage, apiKey string) (*ParsedReplies, error) {
	if apiKey == "" {
		return nil, newInferenceError(FailureUnconfigured, errors.New("no API key configured"))
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model: c.model,
		Messages: []chatCompletionMessage{
			{Role: "system", Content: smartReplySystemPrompt},
			{Role: "user", Content: buildUserPrompt(messages)},
		},
		Temperature: replyTemperature,
		MaxTokens:   replyMaxTokens,
	})
	if err != nil {
		return nil, newInferenceError(FailureNetwork, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, newInferenceError(FailureNetwork, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newInferenceError(FailureNetwork, fmt.Errorf("chat completion request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &InferenceError{
			Kind:       FailureRemoteRejected,
			StatusCode: resp.StatusCode,
			Detail:     strings.TrimSpace(string(detail)),
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	var decoded chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, classifyDecodeError(err)
	}

	if len(decoded.Choices) == 0 || decoded.Choices[0].Message.Content == nil || *decoded.Choices[0].Message.Content == "" {
		return nil, newInferenceError(FailureEmptyResponse, errors.New("response has no choices[0].message.content"))
	}

	replies, err := parseReplyContent(*decoded.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	return &ParsedReplies{Replies: replies, Model: c.model}, nil
}

// classifyDecodeError separates a body that is not a completion object from a
// connection that died while the body was being read.
func classifyDecodeError(err error) *InferenceError {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.EOF) {
		return newInferenceError(FailureEmptyResponse, fmt.Errorf("failed to decode response: %w", err))
	}
	return newInferenceError(FailureNetwork, fmt.Errorf("failed to read response: %w", err))
}
