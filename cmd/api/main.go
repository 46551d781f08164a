package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/propchat/propchat/internal/api/router"
	appconfig "github.com/propchat/propchat/internal/config"
	"github.com/propchat/propchat/internal/conversation"
	"github.com/propchat/propchat/internal/http/handlers"
	"github.com/propchat/propchat/internal/messaging"
	observemetrics "github.com/propchat/propchat/internal/observability/metrics"
	"github.com/propchat/propchat/internal/property"
	"github.com/propchat/propchat/internal/users"
	"github.com/propchat/propchat/internal/viewings"
	"github.com/propchat/propchat/pkg/logging"
)

func main() {
	// Load .env if present; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting propchat API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		os.Exit(1)
	}

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to ping redis", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	viewingMetrics := observemetrics.NewViewingMetrics(registry)

	var llm conversation.LLMClient
	if cfg.OpenAIAPIKey != "" {
		llm = conversation.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	} else {
		logger.Warn("OPENAI_API_KEY not set, message parsing runs on heuristics only")
	}
	intent := conversation.NewIntentClassifier(llm, logger)
	confirmation := conversation.NewConfirmationClassifier(llm, logger)
	preferences := conversation.NewPreferenceParser(llm, logger)
	ownerParser := conversation.NewOwnerResponseParser(llm, logger)

	propertyRepo := property.NewRepository(pool)
	userRepo := users.NewRepository(pool)
	viewingRepo := viewings.NewRepository(pool)

	resolver := viewings.NewResolver(viewingRepo, viewings.ResolverConfig{
		LookaheadDays: cfg.LookaheadDays,
		MaxSlots:      cfg.MaxOfferedSlots,
		Granularity:   cfg.SlotGranularity,
	})
	pendingStore := viewings.NewPendingStore(redisClient, cfg.PendingRequestTTL)

	var messenger conversation.ReplyMessenger
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioWhatsAppNumber != "" {
		messenger = messaging.NewTwilioWhatsAppSender(
			cfg.TwilioAccountSID,
			cfg.TwilioAuthToken,
			cfg.TwilioWhatsAppNumber,
			logger,
		)
	} else {
		logger.Warn("Twilio credentials not set, outbound messages go to the in-memory sender")
		messenger = messaging.NewMemorySender()
	}

	service := viewings.NewService(viewings.ServiceConfig{
		Properties:   propertyRepo,
		Users:        userRepo,
		Appointments: viewingRepo,
		Pending:      pendingStore,
		Resolver:     resolver,
		Messenger:    messenger,
		Intent:       intent,
		Confirmation: confirmation,
		Preferences:  preferences,
		OwnerParser:  ownerParser,
		Logger:       logger,
		Metrics:      viewingMetrics,
	})

	if cfg.StaleSweepEnabled {
		sweeper := viewings.NewSweeper(viewingRepo, cfg.StaleApprovalMaxAge, cfg.StaleSweepInterval, logger, viewingMetrics)
		go sweeper.Run(ctx)
	}

	webhookURL := ""
	if cfg.PublicBaseURL != "" {
		webhookURL = strings.TrimRight(cfg.PublicBaseURL, "/") + "/webhooks/whatsapp"
	}
	webhook := handlers.NewWhatsAppWebhookHandler(handlers.WhatsAppWebhookConfig{
		AuthToken:          cfg.TwilioAuthToken,
		WebhookURL:         webhookURL,
		SkipSignatureCheck: cfg.Env == "development" && cfg.TwilioAuthToken == "",
		Users:              userRepo,
		Properties:         propertyRepo,
		Flow:               service,
		Context:            pendingStore,
		Messenger:          messenger,
		Logger:             logger,
		Metrics:            viewingMetrics,
	})

	r := router.New(&router.Config{
		Logger:          logger,
		WhatsAppWebhook: webhook,
		MetricsHandler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
