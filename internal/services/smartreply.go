package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"smartreply-backend/internal/models"
)

const DefaultInferenceTimeout = 8 * time.Second

// KeyProvider resolves the inference API key. It is consulted on every call;
// an empty key routes straight to the heuristic path.
type KeyProvider interface {
	APIKey() string
}

// EnvKeyProvider reads the key from the named environment variable.
type EnvKeyProvider struct {
	Name string
}

func (p EnvKeyProvider) APIKey() string {
	return strings.TrimSpace(os.Getenv(p.Name))
}

// StaticKeyProvider always returns the same key.
type StaticKeyProvider string

func (p StaticKeyProvider) APIKey() string { return string(p) }

// SmartReplyService arbitrates between remote inference and the heuristic
// classifier. It holds no per-request state and is safe for concurrent use.
type SmartReplyService struct {
	keys      KeyProvider
	client    InferenceClient
	heuristic *HeuristicClassifier
	timeout   time.Duration
	log       *zap.Logger
}

func NewSmartReplyService(
	keys KeyProvider,
	client InferenceClient,
	heuristic *HeuristicClassifier,
	timeout time.Duration,
	logger *zap.Logger,
) *SmartReplyService {
	if heuristic == nil {
		heuristic = NewHeuristicClassifier(nil)
	}
	if timeout <= 0 {
		timeout = DefaultInferenceTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SmartReplyService{
		keys:      keys,
		client:    client,
		heuristic: heuristic,
		timeout:   timeout,
		log:       logger,
	}
}

// Configured reports whether an API key is currently available.
func (s *SmartReplyService) Configured() bool {
	return s.apiKey() != "" && s.client != nil
}

// Generate always returns a valid result. At most one remote request is made,
// bounded by the service timeout and by ctx.
func (s *SmartReplyService) Generate(ctx context.Context, messages []models.ConversationMessage) models.SmartReplyResult {
	apiKey := s.apiKey()
	if apiKey == "" || s.client == nil {
		return s.fallback(messages)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	parsed, err := s.requestReplies(ctx, messages, apiKey)
	if err != nil {
		s.logFailure(err)
		return s.fallback(messages)
	}

	return models.SmartReplyResult{
		Replies: parsed.Replies,
		IsAI:    true,
		Model:   parsed.Model,
	}
}

// requestReplies shields Generate from panics in the client and re-checks
// the client's output so a misbehaving implementation cannot break the
// result invariants.
func (s *SmartReplyService) requestReplies(ctx context.Context, messages []models.ConversationMessage, apiKey string) (parsed *ParsedReplies, err error) {
	defer func() {
		if r := recover(); r != nil {
			parsed = nil
			err = newInferenceError(FailureNetwork, fmt.Errorf("inference client panicked: %v", r))
		}
	}()

	parsed, err = s.client.RequestReplies(ctx, messages, apiKey)
	if err != nil {
		return nil, err
	}
	if parsed == nil || parsed.Model == "" {
		return nil, newInferenceError(FailureEmptyResponse, errors.New("client returned no model identifier"))
	}

	replies := make([]string, 0, maxReplies)
	for _, r := range parsed.Replies {
		if strings.TrimSpace(r) == "" {
			continue
		}
		replies = append(replies, r)
		if len(replies) == maxReplies {
			break
		}
	}
	if len(replies) == 0 {
		return nil, newInferenceError(FailureMalformedContent, errNoReplies)
	}

	return &ParsedReplies{Replies: replies, Model: parsed.Model}, nil
}

func (s *SmartReplyService) fallback(messages []models.ConversationMessage) models.SmartReplyResult {
	return models.SmartReplyResult{
		Replies: s.heuristic.Classify(messages),
		IsAI:    false,
	}
}

func (s *SmartReplyService) apiKey() string {
	if s.keys == nil {
		return ""
	}
	return s.keys.APIKey()
}

func (s *SmartReplyService) logFailure(err error) {
	fields := []zap.Field{
		zap.String("kind", string(FailureKindOf(err))),
		zap.Error(err),
	}

	var ie *InferenceError
	ok := errors.As(err, &ie)
	if !ok || ie.Kind != FailureRemoteRejected {
		if ok && ie.Detail != "" {
			fields = append(fields, zap.String("detail", ie.Detail))
		}
		s.log.Warn("Smart reply inference failed, using heuristic replies", fields...)
		return
	}

	fields = append(fields, zap.Int("status", ie.StatusCode), zap.String("body", ie.Detail))
	switch ie.Status() {
	case "unauthorized":
		s.log.Error("Inference authentication failed, verify the API key", fields...)
	case "rate_limited":
		s.log.Warn("Inference rate limit exceeded", fields...)
	case "server_error":
		s.log.Warn("Inference server error", fields...)
	default:
		s.log.Warn("Inference request rejected", fields...)
	}
}
