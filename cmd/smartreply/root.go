package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"smartreply-backend/internal/config"
	"smartreply-backend/internal/logging"
	"smartreply-backend/internal/models"
	"smartreply-backend/internal/services"
)

type suggestOptions struct {
	messages []string
	provider string
	timeout  time.Duration
	verbose  bool
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "smartreply",
		Short:        "Generate chat smart-reply suggestions from the command line",
		SilenceUsage: true,
	}
	root.AddCommand(newSuggestCmd())
	return root
}

func newSuggestCmd() *cobra.Command {
	opts := &suggestOptions{}

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest up to 3 replies for a conversation",
		Long: `Suggest up to 3 replies for a conversation.

Messages are given oldest first, either as repeated --message "user: text"
flags or on stdin as a JSON array of {"user","text"} objects (or the
{"messages":[...]} body accepted by POST /api/smart-replies). The inference
API key is read from SYNTHETIC_API_KEY (or GEMINI_API_KEY with
--provider gemini); without it the heuristic suggestions are printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuggest(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.messages, "message", "m", nil, `conversation line as "user: text" (repeatable)`)
	cmd.Flags().StringVar(&opts.provider, "provider", "", "inference provider: synthetic or gemini (default from SMART_REPLY_PROVIDER)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "inference timeout (default from SMART_REPLY_TIMEOUT)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log inference diagnostics to stderr")

	return cmd
}

func runSuggest(ctx context.Context, stdin io.Reader, stdout io.Writer, opts *suggestOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := config.Load()
	if opts.provider != "" {
		cfg.Provider = strings.ToLower(opts.provider)
	}
	if opts.timeout > 0 {
		cfg.InferenceTimeout = opts.timeout
	}

	messages, err := readConversation(stdin, opts.messages)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if opts.verbose {
		if logger, err = logging.New(cfg.Env); err != nil {
			return err
		}
		defer logger.Sync()
	}

	var client services.InferenceClient
	keyEnv := "SYNTHETIC_API_KEY"
	switch cfg.Provider {
	case config.ProviderGemini:
		client = services.NewGeminiClient(cfg.GeminiModel)
		keyEnv = "GEMINI_API_KEY"
	case config.ProviderSynthetic:
		client = services.NewChatCompletionsClient(cfg.SyntheticBaseURL, &http.Client{Timeout: cfg.InferenceTimeout + 2*time.Second})
	default:
		return fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	svc := services.NewSmartReplyService(
		services.EnvKeyProvider{Name: keyEnv},
		client,
		services.NewHeuristicClassifier(nil),
		cfg.InferenceTimeout,
		logger,
	)

	result := svc.Generate(ctx, messages)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// readConversation prefers --message flags; otherwise it decodes stdin.
func readConversation(stdin io.Reader, lines []string) ([]models.ConversationMessage, error) {
	if len(lines) > 0 {
		messages := make([]models.ConversationMessage, 0, len(lines))
		for _, line := range lines {
			user, text, ok := strings.Cut(line, ":")
			if !ok || strings.TrimSpace(user) == "" {
				return nil, fmt.Errorf("invalid --message %q, want \"user: text\"", line)
			}
			messages = append(messages, models.ConversationMessage{
				User: strings.TrimSpace(user),
				Text: strings.TrimSpace(text),
			})
		}
		return messages, nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	// Accept the HTTP request body as well as a bare array.
	if trimmed := strings.TrimSpace(string(data)); strings.HasPrefix(trimmed, "{") {
		var req models.SmartReplyRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("stdin is not a smart-replies request: %w", err)
		}
		return req.Messages, nil
	}

	var messages []models.ConversationMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("stdin is not a JSON array of messages: %w", err)
	}
	return messages, nil
}
