package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"smartreply-backend/internal/models"
)

const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiClient is an alternate InferenceClient backed by the Gemini SDK.
// A client is built per call because the key is resolved per call.
type GeminiClient struct {
	modelName string
	opts      []option.ClientOption
}

func NewGeminiClient(modelName string, opts ...option.ClientOption) *GeminiClient {
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	return &GeminiClient{modelName: modelName, opts: opts}
}

func (c *GeminiClient) Model() string { return c.modelName }

func (c *GeminiClient) RequestReplies(ctx context.Context, messages []models.ConversationMessage, apiKey string) (*ParsedReplies, error) {
	if apiKey == "" {
		return nil, newInferenceError(FailureUnconfigured, errors.New("no API key configured"))
	}

	opts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, c.opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, newInferenceError(FailureNetwork, fmt.Errorf("failed to create Gemini client: %w", err))
	}
	defer client.Close()

	model := client.GenerativeModel(c.modelName)
	model.SetTemperature(replyTemperature)
	model.SetMaxOutputTokens(replyMaxTokens)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = genai.NewUserContent(genai.Text(smartReplySystemPrompt))

	resp, err := model.GenerateContent(ctx, genai.Text(buildUserPrompt(messages)))
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		return nil, newInferenceError(FailureEmptyResponse, errors.New("Gemini returned no text"))
	}

	replies, err := parseReplyContent(text)
	if err != nil {
		return nil, err
	}

	return &ParsedReplies{Replies: replies, Model: c.modelName}, nil
}

func classifyGeminiError(err error) *InferenceError {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return &InferenceError{
			Kind:       FailureRemoteRejected,
			StatusCode: apiErr.Code,
			Detail:     apiErr.Message,
			Err:        err,
		}
	}
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return newInferenceError(FailureEmptyResponse, fmt.Errorf("Gemini blocked the response: %w", err))
	}
	return newInferenceError(FailureNetwork, fmt.Errorf("Gemini API error: %w", err))
}

// extractText reads the first candidate only.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return text.String()
}
