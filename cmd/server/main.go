package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"smartreply-backend/internal/config"
	"smartreply-backend/internal/database"
	"smartreply-backend/internal/handlers"
	"smartreply-backend/internal/logging"
	"smartreply-backend/internal/middleware"
	"smartreply-backend/internal/router"
	"smartreply-backend/internal/services"
	"smartreply-backend/internal/websocket"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("✗ Logger initialization failed: %v", err)
	}
	defer logger.Sync()
	logger.Info("🚀 Starting smart reply backend", zap.String("env", cfg.Env))

	// ──── Step 2: Optional Redis for cross-instance fan-out ────
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Fatal("✗ Redis connection failed", zap.Error(err))
		}
		defer redisClient.Close()
		logger.Info("✓ Redis connected")
	} else {
		logger.Info("Redis not configured, suggestions are delivered per instance")
	}

	// ──── Step 3: Smart reply service ────
	smartReplies := services.NewSmartReplyService(
		services.EnvKeyProvider{Name: cfg.APIKeyEnv},
		newInferenceClient(cfg),
		services.NewHeuristicClassifier(nil),
		cfg.InferenceTimeout,
		logger.Named("smartreply"),
	)
	if smartReplies.Configured() {
		logger.Info("✓ Inference provider configured", zap.String("provider", cfg.Provider))
	} else {
		logger.Warn("Inference API key not set, serving heuristic replies only", zap.String("env_var", cfg.APIKeyEnv))
	}

	// ──── Step 4: HTTP + WebSocket ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	smartReplyHandler := handlers.NewSmartReplyHandler(smartReplies, cfg.Provider, logger.Named("http"))
	wsHub := websocket.NewHub(smartReplies, redisClient, jwtAuth, logger.Named("ws"))

	r := router.New(jwtAuth, smartReplyHandler, wsHub, cfg.FrontendURL, cfg.RequestsPerMinute)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("✓ Smart reply backend ready",
			zap.String("api", fmt.Sprintf("http://localhost:%s/api/smart-replies", cfg.Port)),
			zap.String("ws", fmt.Sprintf("ws://localhost:%s/api/ws", cfg.Port)),
		)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}

func newInferenceClient(cfg *config.Config) services.InferenceClient {
	if cfg.Provider == config.ProviderGemini {
		return services.NewGeminiClient(cfg.GeminiModel)
	}
	return services.NewChatCompletionsClient(cfg.SyntheticBaseURL, &http.Client{Timeout: cfg.InferenceTimeout + 2*time.Second})
}
