package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/clearbook-ai/dental-voice-platform/cmd/mainconfig"
	"github.com/clearbook-ai/dental-voice-platform/internal/api/router"
	appconfig "github.com/clearbook-ai/dental-voice-platform/internal/config"
	"github.com/clearbook-ai/dental-voice-platform/internal/conversation"
	"github.com/clearbook-ai/dental-voice-platform/internal/http/handlers"
	"github.com/clearbook-ai/dental-voice-platform/internal/matching"
	"github.com/clearbook-ai/dental-voice-platform/internal/nexhealth"
	"github.com/clearbook-ai/dental-voice-platform/internal/notify"
	"github.com/clearbook-ai/dental-voice-platform/internal/observability/metrics"
	"github.com/clearbook-ai/dental-voice-platform/internal/practice"
	"github.com/clearbook-ai/dental-voice-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting dental-voice-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// Postgres: practice configuration and call archive.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	archiveDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open archive db", "error", err)
		os.Exit(1)
	}
	defer func() { _ = archiveDB.Close() }()

	practiceRepo := practice.NewRepository(pool)
	directory := practice.NewLoader(practiceRepo, cfg.NexHealthSubdomain)

	// Redis: live call state.
	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	stateStore := conversation.NewStateStore(redisClient, cfg.CallStateTTL, nil)

	// AWS: idempotency ledger, LLM matching, staff email.
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	ledger := conversation.NewToolCallLedger(dynamoClient, cfg.ToolCallLedgerTable, logger)

	bedrockClient := matching.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
	var fallback matching.LLMClient
	if cfg.GeminiAPIKey != "" {
		gemini, err := matching.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Warn("gemini fallback unavailable", "error", err)
		} else {
			defer func() { _ = gemini.Close() }()
			fallback = gemini
		}
	}
	llm := matching.NewFallbackLLMClient(bedrockClient, fallback, logger)
	matcher := matching.NewLLMMatcher(llm, cfg.BedrockModelID, cfg.MatchTimeout, logger)

	sesSender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
		FromEmail: cfg.NotifyFromEmail,
		FromName:  cfg.NotifyFromName,
	}, logger)
	notifier := notify.NewFollowUpNotifier(sesSender, cfg.NotifyFromEmail, logger)

	// External scheduling system.
	nexClient := nexhealth.NewClient(cfg.NexHealthAPIKey, cfg.NexHealthSubdomain, logger,
		nexhealth.WithBaseURL(cfg.NexHealthBaseURL),
		nexhealth.WithTimeout(cfg.NexHealthTimeout),
	)

	callMetrics := metrics.NewCallMetrics(nil)

	service := conversation.NewService(conversation.ServiceDeps{
		Store:      stateStore,
		Ledger:     ledger,
		Archive:    conversation.NewCallArchive(archiveDB),
		Directory:  directory,
		Scheduling: nexClient,
		Matcher:    matcher,
		Notifier:   notifier,
		Metrics:    callMetrics,
		Rules: conversation.SlotSearchRules{
			ScanDays:     cfg.SlotScanDays,
			MinUseful:    cfg.SlotMinUseful,
			LunchStart:   cfg.LunchWindowStart,
			LunchEnd:     cfg.LunchWindowEnd,
			MaxPresented: cfg.MaxPresentedSlots,
		},
		Logger: logger,
	})

	toolCallHandler := handlers.NewToolCallHandler(service, logger)

	r := router.New(&router.Config{
		Logger:           logger,
		ToolCallHandler:  toolCallHandler,
		WebhookJWTSecret: cfg.WebhookJWTSecret,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
