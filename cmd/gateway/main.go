package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/or-gateway-go/internal/config"
	"github.com/or-gateway-go/internal/handlers"
	"github.com/or-gateway-go/internal/i18n"
	"github.com/or-gateway-go/internal/middleware"
	"github.com/or-gateway-go/internal/services/catalog"
	"github.com/or-gateway-go/internal/services/conversation"
	"github.com/or-gateway-go/internal/services/provider"
	"github.com/or-gateway-go/pkg/logger"
	"github.com/sirupsen/logrus"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	// Load .env file if exists
	if err := godotenv.Load(*envFile); err != nil {
		// It's okay if .env doesn't exist
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting OpenRouter tool gateway...")
	log.WithField("key_length", len(cfg.Provider.APIKey)).Info("Provider credentials loaded")

	// Initialize conversation store
	store, err := conversation.NewManager(&cfg.Conversation, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize conversation store")
	}

	// Initialize provider client with its rate-limit tracker
	tracker := provider.NewTracker(log)
	client := provider.NewClient(&cfg.Provider, tracker, log)

	// Initialize catalog cache
	catalogCache := catalog.NewCache(cfg.Catalog.TTL, log)

	// Initialize caller rate limiter
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	// Initialize i18n
	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}

	// Initialize metrics
	metrics := middleware.NewMetrics()

	// Start metrics server if enabled
	if cfg.Monitoring.Metrics.Enabled {
		go func() {
			log.WithFields(logrus.Fields{
				"port": cfg.Monitoring.Metrics.Port,
				"path": cfg.Monitoring.Metrics.Path,
			}).Info("Starting metrics server")

			if err := middleware.StartMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	// Initialize tool handlers
	toolHandler := handlers.NewToolHandler(
		cfg,
		client,
		catalogCache,
		store,
		rateLimiter,
		metrics,
		localizer,
		log,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      toolHandler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // provider waits can be long
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.WithField("port", cfg.Server.Port).Info("Tool gateway listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}

	log.Info("Gateway stopped")
}
